package interview

import (
	"context"
	"fmt"

	"interviewer/pkg/logx"
	"interviewer/pkg/provider"
	"interviewer/pkg/provider/middleware/metrics"
	"interviewer/pkg/session"
)

// Conductor records answers and decides whether they warrant follow-ups.
type Conductor struct {
	provider provider.Provider
	logger   *logx.Logger
}

// NewConductor creates a conductor.
func NewConductor(prov provider.Provider) *Conductor {
	return &Conductor{
		provider: prov,
		logger:   logx.NewLogger("conductor"),
	}
}

// RecordAnswer appends an answer keyed by the question id. A completed
// session and an already-answered question are both rejected.
func (c *Conductor) RecordAnswer(sess *session.Session, question *session.Question, text string) error {
	if sess.ConversationComplete {
		return fmt.Errorf("%w: %s", ErrSessionComplete, sess.ID)
	}
	if !sess.HasQuestion(question.ID) {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, question.ID)
	}
	if sess.IsAnswered(question.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateAnswer, question.ID)
	}

	sess.Answers = append(sess.Answers, session.Answer{
		QuestionID: question.ID,
		Text:       text,
	})
	sess.Touch()
	return nil
}

// AnalyzeResponse asks the Provider whether the just-recorded answer needs
// follow-ups. A Provider failure substitutes the zero-followup default so a
// single bad call never blocks progress; this method does not fail.
func (c *Conductor) AnalyzeResponse(ctx context.Context, sess *session.Session, question *session.Question, answer *session.Answer) provider.AnswerAnalysis {
	recent := sess.AnsweredPairs()
	if len(recent) > RecentContextPairs {
		recent = recent[len(recent)-RecentContextPairs:]
	}

	ctx = metrics.WithCallInfo(ctx, sess.ID, "answer_analysis")
	analysis, err := c.provider.AnalyzeAnswer(ctx, *question, *answer, recent)
	if err != nil {
		c.logger.Warn("answer analysis failed for question %s, assuming no follow-up: %v", question.ID, err)
		return provider.NoFollowupAnalysis()
	}

	if len(analysis.FollowUpQuestions) > 0 {
		answer.IsVague = true
		answer.NeedsFollowup = true
		c.updateRecordedAnswer(sess, answer)
	}
	return analysis
}

// ProcessFollowups inserts up to MaxFollowupsPerAnswer follow-up questions at
// the head of the pending queue. An empty analysis leaves the queue
// untouched and defers to just-in-time generation.
func (c *Conductor) ProcessFollowups(analysis provider.AnswerAnalysis, parent *session.Question, sess *session.Session, queue *QueueManager) []session.Question {
	if len(analysis.FollowUpQuestions) == 0 {
		return nil
	}
	return queue.InsertFollowups(analysis.FollowUpQuestions, parent, sess)
}

// updateRecordedAnswer writes flag changes back to the stored answer slice.
func (c *Conductor) updateRecordedAnswer(sess *session.Session, answer *session.Answer) {
	for i := range sess.Answers {
		if sess.Answers[i].QuestionID == answer.QuestionID {
			sess.Answers[i] = *answer
			return
		}
	}
}
