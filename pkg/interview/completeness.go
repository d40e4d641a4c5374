package interview

import (
	"context"

	"interviewer/pkg/logx"
	"interviewer/pkg/provider"
	"interviewer/pkg/provider/middleware/metrics"
	"interviewer/pkg/session"
	"interviewer/pkg/state"
)

// AssessmentService decides when and whether the interview has gathered
// enough material to synthesize requirements.
type AssessmentService struct {
	provider provider.Provider
	states   *state.Manager
	logger   *logx.Logger
}

// NewAssessmentService creates an assessment service.
func NewAssessmentService(prov provider.Provider, states *state.Manager) *AssessmentService {
	return &AssessmentService{
		provider: prov,
		states:   states,
		logger:   logx.NewLogger("completeness"),
	}
}

// ShouldCheckCompleteness is true only when the pending queue is fully
// drained and enough questions have been answered. Completeness is never
// evaluated while queued work remains.
func (a *AssessmentService) ShouldCheckCompleteness(answeredCount, remainingCount int) bool {
	return remainingCount == 0 && answeredCount >= MinAnswersForAssessment
}

// AssessAndHandleCompleteness runs one assessment. Complete sessions get
// ConversationComplete set and stay in ASSESSING_COMPLETENESS, ready for
// finalization. Incomplete sessions record their missing areas and return to
// WAITING_FOR_INPUT. A Provider failure degrades to "assume incomplete, keep
// interviewing" and always leaves ASSESSING_COMPLETENESS.
func (a *AssessmentService) AssessAndHandleCompleteness(ctx context.Context, sess *session.Session) bool {
	if err := a.states.TransitionTo(sess, session.StateAssessingCompleteness, nil); err != nil {
		a.logger.Error("cannot enter assessment from %s: %v", sess.ConversationState, err)
		return false
	}
	if err := a.states.CreateCheckpoint(sess, "pre_assessment", map[string]any{
		"answered": len(sess.Answers),
	}); err != nil {
		a.logger.Warn("checkpoint before assessment failed: %v", err)
	}

	ctx = metrics.WithCallInfo(ctx, sess.ID, "completeness")
	assessment, err := a.provider.AssessCompleteness(ctx, sess)
	if err != nil {
		a.logger.Warn("completeness assessment failed for session %s, assuming incomplete: %v", sess.ID, err)
		a.returnToWaiting(sess, "assessment_error")
		return false
	}

	if assessment.IsComplete {
		a.logger.Info("session %s judged complete (confidence %.2f): %s", sess.ID, assessment.ConfidenceScore, assessment.Reasoning)
		sess.ConversationComplete = true
		sess.MissingAreas = nil
		sess.Touch()
		return true
	}

	a.logger.Info("session %s judged incomplete, missing areas: %v", sess.ID, assessment.MissingAreas)
	sess.MissingAreas = assessment.MissingAreas
	sess.Touch()
	a.returnToWaiting(sess, "assessment_incomplete")
	return false
}

func (a *AssessmentService) returnToWaiting(sess *session.Session, reason string) {
	if err := a.states.TransitionTo(sess, session.StateWaitingForInput, map[string]any{"reason": reason}); err != nil {
		a.logger.Error("failed to leave assessment state: %v", err)
	}
}
