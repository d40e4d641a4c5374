package interview

import (
	"context"

	"interviewer/pkg/logx"
	"interviewer/pkg/session"
	"interviewer/pkg/state"
)

// RecoveryManager brings interrupted sessions back to a workable state. Each
// recovery attempt serializes on the session's lock, and any panic or error
// inside recovery is caught and reported as failure rather than propagated.
type RecoveryManager struct {
	pipeline *Pipeline
	logger   *logx.Logger
}

// NewRecoveryManager creates a recovery manager over a pipeline.
func NewRecoveryManager(pipeline *Pipeline) *RecoveryManager {
	return &RecoveryManager{
		pipeline: pipeline,
		logger:   logx.NewLogger("recovery"),
	}
}

// AttemptRecovery loads the session, determines the recovery action for its
// state, and executes it. Returns true when the session was left in a
// workable state and persisted.
func (r *RecoveryManager) AttemptRecovery(ctx context.Context, sessionID string) (recovered bool) {
	lock := r.pipeline.locks.Get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic during recovery of session %s: %v", sessionID, rec)
			recovered = false
		}
	}()

	sess, err := r.pipeline.storage.LoadSession(ctx, sessionID)
	if err != nil {
		r.logger.Error("recovery cannot load session %s: %v", sessionID, err)
		return false
	}

	action := state.DetermineRecoveryAction(sess)
	r.logger.Info("recovering session %s from state %s with action %s", sessionID, sess.ConversationState, action)

	if err := r.execute(ctx, sess, action); err != nil {
		r.logger.Error("recovery action %s failed for session %s: %v", action, sessionID, err)
		return false
	}

	if _, err := r.pipeline.storage.SaveSession(ctx, sess); err != nil {
		r.logger.Error("recovery cannot persist session %s: %v", sessionID, err)
		return false
	}
	return true
}

//nolint:cyclop // one branch per recovery action
func (r *RecoveryManager) execute(ctx context.Context, sess *session.Session, action state.RecoveryAction) error {
	states := r.pipeline.states

	switch action {
	case state.RestartInitialization:
		return r.reseed(ctx, sess)

	case state.RetryQuestionGeneration:
		// Stuck generating the opening question: make sure one exists
		// (the fallback covers Provider failure) and resume.
		if _, ok := sess.CurrentQuestion(); !ok {
			r.pipeline.generation.SetupInitialSessionQuestions(ctx, sess)
		}
		return states.TransitionTo(sess, session.StateWaitingForInput, recoveryMeta(action))

	case state.ContinueFromQuestion:
		if sess.ConversationState == session.StateWaitingForInput ||
			sess.ConversationState == session.StateCompleted {
			return nil
		}
		return states.TransitionTo(sess, session.StateWaitingForInput, recoveryMeta(action))

	case state.ReprocessLastAnswer:
		// The answer was mid-processing when the session died; discard it
		// so the user can answer again.
		if len(sess.Answers) > 0 {
			sess.Answers = sess.Answers[:len(sess.Answers)-1]
			sess.Touch()
		}
		return states.TransitionTo(sess, session.StateWaitingForInput, recoveryMeta(action))

	case state.SkipFollowupsContinue:
		return states.TransitionTo(sess, session.StateWaitingForInput, recoveryMeta(action))

	case state.AssumeIncompleteContinue:
		sess.ConversationComplete = false
		sess.Touch()
		return states.TransitionTo(sess, session.StateWaitingForInput, recoveryMeta(action))

	case state.RetryRequirementsGeneration:
		sess.ConversationComplete = false
		return r.pipeline.FinalizeSession(ctx, sess)

	case state.RestartFromBeginning:
		return r.restartFromBeginning(ctx, sess)

	default:
		return r.restartFromBeginning(ctx, sess)
	}
}

// restartFromBeginning is the destructive last resort: answers and
// requirements are cleared and the session reseeded.
func (r *RecoveryManager) restartFromBeginning(ctx context.Context, sess *session.Session) error {
	states := r.pipeline.states

	if sess.ConversationState != session.StateFailed {
		if err := states.TransitionTo(sess, session.StateFailed, map[string]any{"reason": "restart_from_beginning"}); err != nil {
			// A corrupted state value has no edges at all; the destructive
			// restart overwrites it.
			r.logger.Warn("session %s has unrecognized state %q, resetting", sess.ID, sess.ConversationState)
			sess.ConversationState = session.StateFailed
		}
	}
	if err := states.TransitionTo(sess, session.StateInitializing, nil); err != nil {
		return err
	}

	sess.Answers = nil
	sess.Requirements = nil
	sess.Questions = nil
	sess.ConversationComplete = false
	sess.MissingAreas = nil
	sess.StateContext = ""
	sess.Touch()

	return r.reseed(ctx, sess)
}

// reseed runs the initial-question setup from INITIALIZING and leaves the
// session waiting for input.
func (r *RecoveryManager) reseed(ctx context.Context, sess *session.Session) error {
	states := r.pipeline.states

	if err := states.TransitionTo(sess, session.StateGeneratingQuestions, nil); err != nil {
		return err
	}
	if _, ok := sess.CurrentQuestion(); !ok {
		r.pipeline.generation.SetupInitialSessionQuestions(ctx, sess)
	}
	return states.TransitionTo(sess, session.StateWaitingForInput, nil)
}

func recoveryMeta(action state.RecoveryAction) map[string]any {
	return map[string]any{"recovery_action": action.String()}
}
