package state

import "interviewer/pkg/session"

// RecoveryAction names a remediation applied to a session stuck mid-step.
// The set is closed: DetermineRecoveryAction is a total switch over the state
// enum, so an unmapped state is an auditable RestartFromBeginning branch
// rather than a silent fallback.
type RecoveryAction int

const (
	// RestartInitialization re-runs initial question setup.
	RestartInitialization RecoveryAction = iota
	// RetryQuestionGeneration regenerates the pending question, falling back
	// to a fixed question text on repeated failure.
	RetryQuestionGeneration
	// ContinueFromQuestion returns the session to WAITING_FOR_INPUT as-is.
	ContinueFromQuestion
	// ReprocessLastAnswer discards the most recent answer and waits for input.
	ReprocessLastAnswer
	// SkipFollowupsContinue abandons follow-up generation and waits for input.
	SkipFollowupsContinue
	// AssumeIncompleteContinue forces conversation_complete=false and resumes.
	AssumeIncompleteContinue
	// RetryRequirementsGeneration re-attempts finalization.
	RetryRequirementsGeneration
	// RestartFromBeginning clears answers and requirements and re-initializes.
	// Destructive; the default when no narrower action applies.
	RestartFromBeginning
)

// String returns the action name.
func (a RecoveryAction) String() string {
	switch a {
	case RestartInitialization:
		return "restart_initialization"
	case RetryQuestionGeneration:
		return "retry_question_generation"
	case ContinueFromQuestion:
		return "continue_from_question"
	case ReprocessLastAnswer:
		return "reprocess_last_answer"
	case SkipFollowupsContinue:
		return "skip_followups_continue"
	case AssumeIncompleteContinue:
		return "assume_incomplete_continue"
	case RetryRequirementsGeneration:
		return "retry_requirements_generation"
	case RestartFromBeginning:
		return "restart_from_beginning"
	default:
		return "unknown"
	}
}

// DetermineRecoveryAction maps an interrupted session's state to the recovery
// action that repairs it. Pure function: no session mutation, no I/O.
func DetermineRecoveryAction(sess *session.Session) RecoveryAction {
	switch sess.ConversationState {
	case session.StateInitializing:
		return RestartInitialization
	case session.StateGeneratingQuestions:
		return RetryQuestionGeneration
	case session.StateWaitingForInput:
		return ContinueFromQuestion
	case session.StateProcessingAnswer:
		return ReprocessLastAnswer
	case session.StateGeneratingFollowups:
		return SkipFollowupsContinue
	case session.StateAssessingCompleteness:
		return AssumeIncompleteContinue
	case session.StateGeneratingRequirements:
		return RetryRequirementsGeneration
	case session.StateFailed:
		return RetryRequirementsGeneration
	case session.StateCompleted:
		// A completed session with no requirements was interrupted between
		// completion and synthesis; otherwise there is nothing to repair.
		if len(sess.Requirements) == 0 {
			return RetryRequirementsGeneration
		}
		return ContinueFromQuestion
	default:
		return RestartFromBeginning
	}
}
