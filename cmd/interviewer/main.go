// Command interviewer runs LLM-driven requirements interviews from the
// terminal: create a session, answer questions until the engine decides the
// picture is complete, and get a prioritized requirements document back.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"interviewer/pkg/config"
	"interviewer/pkg/interview"
	"interviewer/pkg/metrics"
	"interviewer/pkg/persistence"
	"interviewer/pkg/provider"
	"interviewer/pkg/provider/middleware/ratelimit"
	"interviewer/pkg/session"
	"interviewer/pkg/usage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	flagSet := flag.NewFlagSet("interviewer "+command, flag.ExitOnError)
	configPath := flagSet.String("config", config.DefaultConfigFile, "Path to config file")
	project := flagSet.String("project", "", "Project name for a new session")
	userID := flagSet.String("user", defaultUser(), "User id for quota accounting and listing")
	if err := flagSet.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	var runErr error
	switch command {
	case "new":
		runErr = runNew(ctx, cfg, *project, *userID)
	case "resume":
		runErr = withArg(flagSet, func(id string) error { return runResume(ctx, cfg, id) })
	case "list":
		runErr = runList(ctx, cfg, *userID)
	case "show":
		runErr = withArg(flagSet, func(id string) error { return runShow(ctx, cfg, id) })
	case "retry":
		runErr = withArg(flagSet, func(id string) error { return runRetry(ctx, cfg, id) })
	case "spend":
		runErr = withArg(flagSet, func(id string) error { return runSpend(ctx, cfg, id) })
	case "secrets":
		runErr = runSecrets(flagSet.Args())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if runErr != nil {
		log.Fatalf("Error: %v", runErr)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Interviewer - LLM-driven requirements interviews\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s new --project <name> [--user <id>] [--config <file>]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s resume <session-id>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s list [--user <id>]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s show <session-id>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s retry <session-id>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s spend <session-id>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s secrets set <vendor>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  new      Start a new interview and answer questions interactively\n")
	fmt.Fprintf(os.Stderr, "  resume   Recover and continue an existing interview\n")
	fmt.Fprintf(os.Stderr, "  list     List sessions with their state and progress\n")
	fmt.Fprintf(os.Stderr, "  show     Print a session's transcript and requirements\n")
	fmt.Fprintf(os.Stderr, "  retry    Re-run requirements synthesis for a failed session\n")
	fmt.Fprintf(os.Stderr, "  spend    Show token spend for a session (needs Prometheus)\n")
	fmt.Fprintf(os.Stderr, "  secrets  Store an API key in the encrypted secrets file\n")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// withArg runs fn with the first positional argument after the flags.
func withArg(flagSet *flag.FlagSet, fn func(string) error) error {
	if flagSet.NArg() < 1 {
		return fmt.Errorf("missing session id argument")
	}
	return fn(flagSet.Arg(0))
}

// =============================================================================
// Wiring
// =============================================================================

type app struct {
	store    *persistence.Store
	pipeline *interview.Pipeline
}

func buildApp(cfg config.Config) (*app, error) {
	if err := unlockSecrets(); err != nil {
		return nil, err
	}

	store, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	tracker, err := usage.NewTracker(store.DB(), cfg.Quota.DailyQuestionLimit)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize usage tracking: %w", err)
	}

	vendor, _, err := provider.ParseModelSpec(cfg.Provider.ModelSpec)
	if err != nil {
		store.Close()
		return nil, err
	}
	apiKey, err := config.GetAPIKey(vendor)
	if err != nil {
		store.Close()
		return nil, err
	}

	factory := provider.NewFactory(resilienceFromConfig(cfg))
	prov, err := factory.NewProvider(cfg.Provider.ModelSpec, apiKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return &app{
		store:    store,
		pipeline: interview.NewPipeline(store, prov, tracker),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	}
}

// unlockSecrets decrypts the secrets file into memory when one exists.
// Environment variables still work without it.
func unlockSecrets() error {
	home, err := os.UserHomeDir()
	if err != nil || !config.SecretsFileExists(home) {
		return nil
	}
	password, err := readPassword("Secrets password: ")
	if err != nil {
		return err
	}
	secrets, err := config.DecryptSecretsFile(home, password)
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func resilienceFromConfig(cfg config.Config) provider.ResilienceConfig {
	resilience := provider.DefaultResilienceConfig()
	resilience.Retry.MaxAttempts = cfg.Resilience.Retry.MaxAttempts
	resilience.Retry.InitialDelay = cfg.Resilience.Retry.InitialDelay
	resilience.Retry.MaxDelay = cfg.Resilience.Retry.MaxDelay
	resilience.Retry.BackoffFactor = cfg.Resilience.Retry.BackoffFactor
	resilience.Retry.Jitter = cfg.Resilience.Retry.Jitter
	resilience.Circuit.FailureThreshold = cfg.Resilience.Circuit.FailureThreshold
	resilience.Circuit.SuccessThreshold = cfg.Resilience.Circuit.SuccessThreshold
	resilience.Circuit.Timeout = cfg.Resilience.Circuit.Timeout
	resilience.Timeout = cfg.Resilience.Timeout
	for vendor, rl := range cfg.Resilience.RateLimit {
		resilience.RateLimit[vendor] = ratelimit.Config{
			TokensPerMinute: rl.TokensPerMinute,
			Burst:           rl.Burst,
			MaxConcurrency:  rl.MaxConcurrency,
		}
	}
	return resilience
}

// =============================================================================
// Commands
// =============================================================================

func runNew(ctx context.Context, cfg config.Config, project, userID string) error {
	if project == "" {
		return fmt.Errorf("--project is required")
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.pipeline.SetupSession(ctx, project, userID)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s created for project %q\n\n", sess.ID, project)

	question, _ := sess.CurrentQuestion()
	return answerLoop(ctx, a.pipeline, sess.ID, question)
}

func runResume(ctx context.Context, cfg config.Config, sessionID string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.pipeline.Recovery().AttemptRecovery(ctx, sessionID) {
		return fmt.Errorf("could not recover session %s", sessionID)
	}
	sess, err := a.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.ConversationState == session.StateCompleted {
		printRequirements(sess)
		return nil
	}

	question, _ := sess.CurrentQuestion()
	return answerLoop(ctx, a.pipeline, sess.ID, question)
}

// answerLoop reads answers from stdin one turn at a time until the interview
// completes, the quota runs out, or input ends.
func answerLoop(ctx context.Context, pipeline *interview.Pipeline, sessionID string, question *session.Question) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if question == nil {
			// No pending question: one empty turn drives assessment or
			// generation forward.
			result, err := pipeline.ProcessAnswer(ctx, sessionID, "")
			if err != nil {
				return err
			}
			if done := reportTurn(result); done {
				return nil
			}
			if result.NextQuestion == nil {
				// The turn produced nothing; retrying immediately would just
				// hammer the provider.
				fmt.Printf("\nNo question could be generated right now. Resume with: %s resume %s\n",
					os.Args[0], sessionID)
				return nil
			}
			question = result.NextQuestion
			continue
		}

		fmt.Printf("[%s] %s\n> ", question.Category, question.Text)
		if !scanner.Scan() {
			fmt.Printf("\nPaused. Resume with: %s resume %s\n", os.Args[0], sessionID)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Println("(empty answer, try again)")
			continue
		}

		result, err := pipeline.ProcessAnswer(ctx, sessionID, text)
		if err != nil {
			return err
		}
		if done := reportTurn(result); done {
			return nil
		}
		question = result.NextQuestion
	}
}

// reportTurn prints the turn outcome and reports whether the loop should end.
func reportTurn(result *interview.TurnResult) bool {
	if result.Completed {
		if result.ForcedCompletion {
			fmt.Println("\nNo further questions were possible; finalizing with what we have.")
		}
		printRequirements(result.Session)
		return true
	}
	if result.QuotaExhausted && result.NextQuestion == nil {
		fmt.Printf("\nDaily question quota reached. Resume tomorrow with: %s resume %s\n",
			os.Args[0], result.Session.ID)
		return true
	}
	return false
}

func printRequirements(sess *session.Session) {
	fmt.Printf("\nInterview complete: %d requirements for %q\n\n", len(sess.Requirements), sess.Project)
	for i := range sess.Requirements {
		req := &sess.Requirements[i]
		fmt.Printf("%2d. [%s] %s\n", req.OrderIndex+1, req.Priority, req.Title)
		if req.Rationale != "" {
			fmt.Printf("      %s\n", req.Rationale)
		}
	}
}

func runList(ctx context.Context, cfg config.Config, userID string) error {
	store, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.ListSessions(ctx, userID)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-24s %-24s %3d answered  %s\n",
			s.ID, truncate(s.Project, 24), s.ConversationState, s.AnsweredCount,
			s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runShow(ctx context.Context, cfg config.Config, sessionID string) error {
	store, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s  project=%q  state=%s\n\n", sess.ID, sess.Project, sess.ConversationState)
	for _, pair := range sess.AnsweredPairs() {
		fmt.Printf("Q [%s]: %s\nA: %s\n\n", pair.Question.Category, pair.Question.Text, pair.Answer.Text)
	}
	if len(sess.Requirements) > 0 {
		printRequirements(sess)
	}
	return nil
}

func runRetry(ctx context.Context, cfg config.Config, sessionID string) error {
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.pipeline.RetryFinalization(ctx, sessionID); err != nil {
		return err
	}
	sess, err := a.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	printRequirements(sess)
	return nil
}

func runSpend(ctx context.Context, cfg config.Config, sessionID string) error {
	if cfg.Metrics.PrometheusURL == "" {
		return fmt.Errorf("metrics.prometheus_url is not configured")
	}
	query, err := metrics.NewQueryService(cfg.Metrics.PrometheusURL)
	if err != nil {
		return err
	}

	spend, err := query.GetSessionSpend(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s\n", sessionID)
	fmt.Printf("  Requests: %d (%d errors)\n", spend.Requests, spend.Errors)
	fmt.Printf("  Tokens:   %d prompt + %d completion = %d\n",
		spend.PromptTokens, spend.CompletionTokens, spend.TotalTokens)

	byOp, err := query.GetSessionSpendByOperation(ctx, sessionID)
	if err != nil {
		return err
	}
	for op, s := range byOp {
		fmt.Printf("  %-20s %d tokens over %d requests\n", op, s.TotalTokens, s.Requests)
	}
	return nil
}

func runSecrets(args []string) error {
	if len(args) < 2 || args[0] != "set" {
		return fmt.Errorf("usage: secrets set <vendor>")
	}
	vendor := args[1]
	envVar, ok := config.APIKeyEnvVar(vendor)
	if !ok {
		return fmt.Errorf("unknown provider vendor %q", vendor)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	key, err := readPassword(fmt.Sprintf("API key for %s: ", vendor))
	if err != nil {
		return err
	}
	password, err := readPassword("Secrets password: ")
	if err != nil {
		return err
	}

	secrets := map[string]string{}
	if config.SecretsFileExists(home) {
		existing, err := config.DecryptSecretsFile(home, password)
		if err != nil {
			return err
		}
		secrets = existing
	}
	secrets[envVar] = key

	if err := config.EncryptSecretsFile(home, password, secrets); err != nil {
		return err
	}
	fmt.Printf("Stored %s in encrypted secrets file\n", envVar)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
