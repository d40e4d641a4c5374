package interview

import (
	"context"
	"errors"
	"fmt"

	"interviewer/pkg/logx"
	"interviewer/pkg/provider"
	"interviewer/pkg/provider/middleware/metrics"
	"interviewer/pkg/session"
	"interviewer/pkg/state"
	"interviewer/pkg/usage"
)

// TurnResult describes the outcome of one interview turn.
type TurnResult struct {
	Session          *session.Session
	NextQuestion     *session.Question // nil when the turn produced no question
	Followups        []session.Question
	Completed        bool
	ForcedCompletion bool
	QuotaExhausted   bool
}

// Pipeline is the top-level orchestrator. One call processes one
// session-turn to completion synchronously; turns on the same session id
// serialize through the lock arena.
type Pipeline struct {
	storage    Storage
	provider   provider.Provider
	usage      UsageTracker // nil disables quota enforcement
	states     *state.Manager
	queue      *QueueManager
	generation *GenerationService
	conductor  *Conductor
	assessment *AssessmentService
	locks      *session.LockArena
	logger     *logx.Logger
}

// NewPipeline wires the engine's components over the given capabilities.
func NewPipeline(storage Storage, prov provider.Provider, tracker UsageTracker) *Pipeline {
	states := state.NewManager()
	queue := NewQueueManager()
	return &Pipeline{
		storage:    storage,
		provider:   prov,
		usage:      tracker,
		states:     states,
		queue:      queue,
		generation: NewGenerationService(prov, queue, tracker),
		conductor:  NewConductor(prov),
		assessment: NewAssessmentService(prov, states),
		locks:      session.NewLockArena(),
		logger:     logx.NewLogger("pipeline"),
	}
}

// Recovery returns the recovery manager bound to this pipeline.
func (p *Pipeline) Recovery() *RecoveryManager {
	return NewRecoveryManager(p)
}

// SetupSession creates a session with exactly one scope question and leaves
// it waiting for input.
func (p *Pipeline) SetupSession(ctx context.Context, project, userID string) (*session.Session, error) {
	sess := session.New(project, userID)

	if err := p.states.TransitionTo(sess, session.StateGeneratingQuestions, nil); err != nil {
		return nil, fmt.Errorf("setup transition failed: %w", err)
	}
	p.generation.SetupInitialSessionQuestions(ctx, sess)
	if err := p.states.TransitionTo(sess, session.StateWaitingForInput, nil); err != nil {
		return nil, fmt.Errorf("setup transition failed: %w", err)
	}

	if _, err := p.storage.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}
	p.logger.Info("session %s created for project %q", sess.ID, sess.Project)
	return sess, nil
}

// ProcessAnswer runs one turn: record and analyze the answer to the current
// question, then either insert follow-ups or generate the next just-in-time
// question, persisting at each commit point, and finally assess completeness
// when the queue has drained.
//
//nolint:cyclop // the turn is one linear decision sequence; splitting it obscures the commit points
func (p *Pipeline) ProcessAnswer(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	lock := p.locks.Get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := p.storage.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.ConversationComplete && sess.ConversationState == session.StateCompleted {
		return nil, fmt.Errorf("%w: %s", ErrSessionComplete, sessionID)
	}

	result := &TurnResult{Session: sess}

	current, ok := sess.CurrentQuestion()
	if !ok {
		// Nothing to answer: go straight to assessment / finalization.
		return p.finishTurn(ctx, sess, result)
	}

	if err := p.ensureSafeState(sess); err != nil {
		return nil, err
	}
	if err := p.states.TransitionTo(sess, session.StateProcessingAnswer, nil); err != nil {
		return nil, fmt.Errorf("cannot start turn: %w", err)
	}

	if err := p.conductor.RecordAnswer(sess, current, text); err != nil {
		// Leave the session answerable before reporting the rejection.
		_ = p.states.TransitionTo(sess, session.StateWaitingForInput, nil)
		return nil, err
	}
	if _, err := p.storage.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist answer: %w", err)
	}

	answer := &sess.Answers[len(sess.Answers)-1]
	analysis := p.conductor.AnalyzeResponse(ctx, sess, current, answer)

	if len(analysis.FollowUpQuestions) > 0 {
		if err := p.states.TransitionTo(sess, session.StateGeneratingFollowups, nil); err != nil {
			return nil, fmt.Errorf("cannot enter follow-up generation: %w", err)
		}
		if p.quotaAvailable(ctx, sess, result) {
			result.Followups = p.conductor.ProcessFollowups(analysis, current, sess, p.queue)
		}
		if err := p.states.TransitionTo(sess, session.StateWaitingForInput, nil); err != nil {
			return nil, fmt.Errorf("cannot leave follow-up generation: %w", err)
		}
	} else if err := p.states.TransitionTo(sess, session.StateWaitingForInput, nil); err != nil {
		return nil, fmt.Errorf("cannot resume waiting: %w", err)
	}

	if _, err := p.storage.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist turn state: %w", err)
	}

	return p.finishTurn(ctx, sess, result)
}

// finishTurn assesses completeness when due, finalizes when complete, and
// applies the forced-completion fallback when the interview can make no
// further progress.
func (p *Pipeline) finishTurn(ctx context.Context, sess *session.Session, result *TurnResult) (*TurnResult, error) {
	if next, ok := sess.CurrentQuestion(); ok {
		result.NextQuestion = next
		return result, nil
	}

	if p.assessment.ShouldCheckCompleteness(len(sess.Answers), sess.PendingCount()) {
		if p.assessment.AssessAndHandleCompleteness(ctx, sess) {
			if err := p.FinalizeSession(ctx, sess); err != nil {
				return nil, err
			}
			result.Completed = true
			return result, nil
		}
		// Incomplete: missing areas are now recorded for generation to
		// prioritize.
	}

	question, err := p.tryGenerate(ctx, sess, result)
	if err != nil {
		return nil, err
	}
	if question != nil {
		result.NextQuestion = question
		return result, nil
	}

	// Neither a next question nor a completeness-driven finalization could
	// be produced. Quota pauses and young sessions stay answerable; a
	// mature session is forced to a terminal state rather than stalling
	// forever.
	if result.QuotaExhausted || len(sess.Answers) < MinAnswersForAssessment {
		if _, err := p.storage.SaveSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
		return result, nil
	}

	p.logger.Warn("session %s: forcing completion, no further progress possible", sess.ID)
	sess.ConversationComplete = true
	sess.Touch()
	result.ForcedCompletion = true
	if err := p.FinalizeSession(ctx, sess); err != nil {
		return nil, err
	}
	result.Completed = true
	return result, nil
}

// tryGenerate runs just-in-time generation, persisting on success and
// flagging quota exhaustion on the result.
func (p *Pipeline) tryGenerate(ctx context.Context, sess *session.Session, result *TurnResult) (*session.Question, error) {
	question, err := p.generation.GenerateNextQuestionIfNeeded(ctx, sess)
	if err != nil {
		if errors.Is(err, usage.ErrQuotaExceeded) {
			result.QuotaExhausted = true
			p.logger.Info("quota exhausted for user %s, generation paused", sess.UserID)
			return nil, nil
		}
		return nil, err
	}
	if question == nil {
		return nil, nil
	}
	if _, err := p.storage.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist question insertion: %w", err)
	}
	return question, nil
}

// quotaAvailable checks quota before follow-up generation and records the
// exhaustion on the result.
func (p *Pipeline) quotaAvailable(ctx context.Context, sess *session.Session, result *TurnResult) bool {
	if p.usage == nil {
		return true
	}
	if err := p.usage.CheckQuotaAvailable(ctx, sess.UserID); err != nil {
		result.QuotaExhausted = true
		p.logger.Info("quota exhausted for user %s, skipping follow-ups", sess.UserID)
		return false
	}
	return true
}

// ensureSafeState brings a session back to WAITING_FOR_INPUT before a turn.
// A session stranded mid-turn by a crash is routed through FAILED, which has
// recovery edges back to an answerable state.
func (p *Pipeline) ensureSafeState(sess *session.Session) error {
	if sess.ConversationState == session.StateWaitingForInput {
		return nil
	}
	if state.IsValidTransition(sess.ConversationState, session.StateWaitingForInput) {
		return p.states.TransitionTo(sess, session.StateWaitingForInput, map[string]any{"reason": "auto_resume"})
	}
	if err := p.states.TransitionTo(sess, session.StateFailed, map[string]any{"reason": "stranded_state"}); err != nil {
		return fmt.Errorf("cannot recover stranded session %s: %w", sess.ID, err)
	}
	return p.states.TransitionTo(sess, session.StateWaitingForInput, map[string]any{"reason": "auto_resume"})
}

// FinalizeSession synthesizes requirements and completes the session. The
// caller holds the session lock. Failure transitions to FAILED, persists,
// and propagates.
func (p *Pipeline) FinalizeSession(ctx context.Context, sess *session.Session) error {
	if sess.ConversationState != session.StateGeneratingRequirements {
		if !state.IsValidTransition(sess.ConversationState, session.StateGeneratingRequirements) {
			// Forced completion can arrive from WAITING_FOR_INPUT, which has
			// no direct edge; route through assessment.
			if err := p.states.TransitionTo(sess, session.StateAssessingCompleteness, map[string]any{"reason": "finalization"}); err != nil {
				return fmt.Errorf("cannot reach finalization: %w", err)
			}
		}
		if err := p.states.TransitionTo(sess, session.StateGeneratingRequirements, nil); err != nil {
			return fmt.Errorf("cannot enter requirements generation: %w", err)
		}
	}
	if err := p.states.CreateCheckpoint(sess, "pre_finalization", map[string]any{
		"answered": len(sess.Answers),
	}); err != nil {
		p.logger.Warn("checkpoint before finalization failed: %v", err)
	}

	ctx = metrics.WithCallInfo(ctx, sess.ID, "requirements")
	requirements, err := p.provider.SummarizeRequirements(ctx, sess.Project, sess.Questions, sess.Answers)
	if err != nil {
		p.logger.Error("requirements synthesis failed for session %s: %v", sess.ID, err)
		if terr := p.states.TransitionTo(sess, session.StateFailed, map[string]any{"reason": "finalization_error"}); terr != nil {
			p.logger.Error("failed to mark session failed: %v", terr)
		}
		if _, serr := p.storage.SaveSession(ctx, sess); serr != nil {
			p.logger.Error("failed to persist failed session: %v", serr)
		}
		return fmt.Errorf("finalization failed: %w", err)
	}

	sess.Requirements = requirements
	sess.ConversationComplete = true
	p.states.ClearCheckpoint(sess)
	if err := p.states.TransitionTo(sess, session.StateCompleted, nil); err != nil {
		return fmt.Errorf("cannot complete session: %w", err)
	}
	if _, err := p.storage.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist finalized session: %w", err)
	}
	p.logger.Info("session %s finalized with %d requirements", sess.ID, len(requirements))
	return nil
}

// RetryFinalization re-runs finalization. Permitted only from FAILED,
// GENERATING_REQUIREMENTS, or COMPLETED with zero requirements.
func (p *Pipeline) RetryFinalization(ctx context.Context, sessionID string) error {
	lock := p.locks.Get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := p.storage.LoadSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	switch sess.ConversationState {
	case session.StateFailed, session.StateGeneratingRequirements:
	case session.StateCompleted:
		if len(sess.Requirements) > 0 {
			return fmt.Errorf("session %s already has %d requirements", sessionID, len(sess.Requirements))
		}
	default:
		return fmt.Errorf("finalization retry not permitted from state %s", sess.ConversationState)
	}

	sess.ConversationComplete = false
	return p.FinalizeSession(ctx, sess)
}
