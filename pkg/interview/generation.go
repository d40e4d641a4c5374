package interview

import (
	"context"
	"fmt"
	"strings"

	"interviewer/pkg/logx"
	"interviewer/pkg/provider"
	"interviewer/pkg/provider/middleware/metrics"
	"interviewer/pkg/session"
	"interviewer/pkg/utils"
)

// contextTokenBudget bounds the recent-context portion of a generation prompt.
const contextTokenBudget = 1500

// fallbackScopeQuestion seeds a new session when generation fails; a
// brand-new session must never be empty.
const fallbackScopeQuestion = "What problem should this project solve, and what is explicitly out of scope?"

// GenerationService produces just-in-time questions through the Provider,
// guarded by the quota tracker and the duplicate-id idempotence check.
type GenerationService struct {
	provider provider.Provider
	queue    *QueueManager
	usage    UsageTracker // nil disables quota enforcement
	logger   *logx.Logger
}

// NewGenerationService creates a generation service.
func NewGenerationService(prov provider.Provider, queue *QueueManager, usage UsageTracker) *GenerationService {
	return &GenerationService{
		provider: prov,
		queue:    queue,
		usage:    usage,
		logger:   logx.NewLogger("generation"),
	}
}

// GenerateNextQuestionIfNeeded generates and appends one question when the
// queue signals need. It returns (nil, nil) when no question is needed or
// when the Provider fails; callers treat nil as "try again later". Quota
// exhaustion is the one reported error, wrapped around the tracker's
// sentinel.
func (g *GenerationService) GenerateNextQuestionIfNeeded(ctx context.Context, sess *session.Session) (*session.Question, error) {
	if !g.queue.ShouldGenerateMore(sess) {
		return nil, nil
	}
	target, ok := g.queue.NextTargetArea(sess)
	if !ok {
		return nil, nil
	}

	if g.usage != nil {
		if err := g.usage.CheckQuotaAvailable(ctx, sess.UserID); err != nil {
			return nil, fmt.Errorf("generation blocked: %w", err)
		}
	}

	prompt := buildGenerationPrompt(sess, target)
	ctx = metrics.WithCallInfo(ctx, sess.ID, "question_generation")
	question, err := g.provider.GenerateSingleQuestion(ctx, prompt)
	if err != nil {
		g.logger.Warn("question generation failed for session %s (area %s): %v", sess.ID, target, err)
		return nil, nil
	}
	if question == nil {
		return nil, nil
	}

	// Idempotence guard: a racing turn may have inserted the same id.
	if sess.HasQuestion(question.ID) {
		g.logger.Warn("question id %s already present in session %s, dropping", question.ID, sess.ID)
		return nil, nil
	}

	sess.Questions = append(sess.Questions, *question)
	sess.Touch()

	if g.usage != nil {
		if err := g.usage.RecordGeneration(ctx, sess.UserID); err != nil {
			g.logger.Warn("failed to record generation for user %s: %v", sess.UserID, err)
		}
	}

	g.logger.Debug("generated question %s for area %s in session %s", question.ID, question.Category, sess.ID)
	return question, nil
}

// SetupInitialSessionQuestions seeds exactly one scope question. Quota
// exhaustion and Provider failure both fall back to the fixed deterministic
// question, so a new session is never left empty.
func (g *GenerationService) SetupInitialSessionQuestions(ctx context.Context, sess *session.Session) *session.Question {
	question := g.generateOpeningQuestion(ctx, sess)
	if question == nil {
		question = &session.Question{
			ID:   session.NewQuestionID(),
			Text: fallbackScopeQuestion,
		}
	}
	// The opening question is always a scope question, whatever the model
	// labeled it.
	question.Category = session.AreaScope
	question.Required = true

	if !sess.HasQuestion(question.ID) {
		sess.Questions = append(sess.Questions, *question)
		sess.Touch()
	}
	return question
}

// generateOpeningQuestion asks the Provider for the opening question, gated
// by the quota tracker like every other generation. Returns nil when the
// quota is spent or the Provider fails.
func (g *GenerationService) generateOpeningQuestion(ctx context.Context, sess *session.Session) *session.Question {
	if g.usage != nil {
		if err := g.usage.CheckQuotaAvailable(ctx, sess.UserID); err != nil {
			g.logger.Warn("quota exhausted for user %s, seeding fallback question: %v", sess.UserID, err)
			return nil
		}
	}

	prompt := fmt.Sprintf(
		"Project: %s\nTarget area: %s\nThis is the opening question of the interview. Ask what the project is fundamentally about.",
		sess.Project, session.AreaScope,
	)
	ctx = metrics.WithCallInfo(ctx, sess.ID, "question_generation")

	question, err := g.provider.GenerateSingleQuestion(ctx, prompt)
	if err != nil || question == nil {
		g.logger.Warn("initial question generation failed for session %s, using fallback: %v", sess.ID, err)
		return nil
	}

	if g.usage != nil {
		if recordErr := g.usage.RecordGeneration(ctx, sess.UserID); recordErr != nil {
			g.logger.Warn("failed to record generation for user %s: %v", sess.UserID, recordErr)
		}
	}
	return question
}

// buildGenerationPrompt renders the target area plus the most recent
// answered pairs, truncated to the context token budget.
func buildGenerationPrompt(sess *session.Session, target session.Area) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\nTarget area: %s\n", sess.Project, target)

	pairs := sess.AnsweredPairs()
	if len(pairs) > RecentContextPairs {
		pairs = pairs[len(pairs)-RecentContextPairs:]
	}
	if len(pairs) > 0 {
		var context strings.Builder
		context.WriteString("\nRecent conversation:\n")
		for i := range pairs {
			fmt.Fprintf(&context, "Q (%s): %s\nA: %s\n", pairs[i].Question.Category, pairs[i].Question.Text, pairs[i].Answer.Text)
		}
		sb.WriteString(utils.TruncateSimple(context.String(), contextTokenBudget))
	}

	fmt.Fprintf(&sb, "\nAsk one new question about the %s of this project that the conversation has not covered yet.", target)
	return sb.String()
}
