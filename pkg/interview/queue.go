package interview

import (
	"interviewer/pkg/logx"
	"interviewer/pkg/session"
)

// QueueManager owns the just-in-time question scheduling policy: never more
// than MaxQueuedQuestions unanswered questions, and the 8 requirement areas
// covered toward QuestionsPerArea each before cycling back.
type QueueManager struct {
	logger *logx.Logger
}

// NewQueueManager creates a queue manager.
func NewQueueManager() *QueueManager {
	return &QueueManager{logger: logx.NewLogger("queue")}
}

// ShouldGenerateMore reports whether a new just-in-time question is needed:
// the pending queue has drained below MinQueueSize and at least one area is
// still under its per-area target.
func (q *QueueManager) ShouldGenerateMore(sess *session.Session) bool {
	if sess.ConversationComplete {
		return false
	}
	if sess.PendingCount() >= session.MinQueueSize {
		return false
	}
	_, ok := q.NextTargetArea(sess)
	return ok
}

// NextTargetArea picks the area the next question should cover. Areas a
// failed completeness assessment flagged as missing take priority; otherwise
// the least-covered under-target area wins, ties broken by the fixed area
// ordering (scope first). Returns false when every area is saturated.
func (q *QueueManager) NextTargetArea(sess *session.Session) (session.Area, bool) {
	counts := sess.AreaCounts()

	for _, area := range session.Areas {
		if !containsArea(sess.MissingAreas, area) {
			continue
		}
		if counts[area] < session.QuestionsPerArea {
			return area, true
		}
	}

	best := session.Area("")
	bestCount := session.QuestionsPerArea
	for _, area := range session.Areas {
		if counts[area] < bestCount {
			best = area
			bestCount = counts[area]
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// InsertFollowups builds Question records for the follow-up texts, tagged
// with the parent's category, and inserts them ahead of the pending
// just-in-time questions so they are answered first. The follow-up cap, the
// queue cap, and the duplicate-id guard all apply. Returns the questions
// inserted.
func (q *QueueManager) InsertFollowups(texts []string, parent *session.Question, sess *session.Session) []session.Question {
	if len(texts) > session.MaxFollowupsPerAnswer {
		texts = texts[:session.MaxFollowupsPerAnswer]
	}

	// The unanswered count must stay within MaxQueuedQuestions even when
	// pending just-in-time questions already occupy part of the queue.
	headroom := session.MaxQueuedQuestions - sess.PendingCount()
	if headroom <= 0 {
		q.logger.Debug("queue full, dropping %d follow-ups for question %s", len(texts), parent.ID)
		return nil
	}
	if len(texts) > headroom {
		q.logger.Debug("queue headroom %d, trimming %d follow-ups for question %s", headroom, len(texts)-headroom, parent.ID)
		texts = texts[:headroom]
	}

	followups := make([]session.Question, 0, len(texts))
	for _, text := range texts {
		if text == "" {
			continue
		}
		question := session.Question{
			ID:       session.NewQuestionID(),
			Text:     text,
			Category: parent.Category,
			Required: false,
		}
		if sess.HasQuestion(question.ID) {
			q.logger.Warn("duplicate question id %s, skipping insert", question.ID)
			continue
		}
		followups = append(followups, question)
	}
	if len(followups) == 0 {
		return nil
	}

	// Insert before the first unanswered question so the follow-ups come up
	// next; append when nothing is pending.
	insertAt := len(sess.Questions)
	for i := range sess.Questions {
		if !sess.IsAnswered(sess.Questions[i].ID) {
			insertAt = i
			break
		}
	}

	updated := make([]session.Question, 0, len(sess.Questions)+len(followups))
	updated = append(updated, sess.Questions[:insertAt]...)
	updated = append(updated, followups...)
	updated = append(updated, sess.Questions[insertAt:]...)
	sess.Questions = updated

	q.logger.Debug("inserted %d follow-ups for question %s at position %d", len(followups), parent.ID, insertAt)
	return followups
}

func containsArea(areas []session.Area, area session.Area) bool {
	for _, a := range areas {
		if a == area {
			return true
		}
	}
	return false
}
