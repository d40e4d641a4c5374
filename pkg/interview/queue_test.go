package interview

import (
	"testing"

	"interviewer/pkg/session"
)

func sessionWithQuestions(areas ...session.Area) *session.Session {
	sess := session.New("test", "user-1")
	for i, area := range areas {
		q := session.Question{
			ID:       session.NewQuestionID(),
			Text:     "question",
			Category: area,
		}
		sess.Questions = append(sess.Questions, q)
		// All but the last question are answered.
		if i < len(areas)-1 {
			sess.Answers = append(sess.Answers, session.Answer{QuestionID: q.ID, Text: "answer"})
		}
	}
	return sess
}

// =============================================================================
// ShouldGenerateMore
// =============================================================================

func TestShouldGenerateMore_EmptyQueueNeedsWork(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	if !q.ShouldGenerateMore(sess) {
		t.Error("Empty session should need generation")
	}
}

func TestShouldGenerateMore_PendingQuestionSuppresses(t *testing.T) {
	q := NewQueueManager()
	sess := sessionWithQuestions(session.AreaScope) // one unanswered
	if q.ShouldGenerateMore(sess) {
		t.Error("Queue at MinQueueSize should not need generation")
	}
}

func TestShouldGenerateMore_CompleteSessionNever(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	sess.ConversationComplete = true
	if q.ShouldGenerateMore(sess) {
		t.Error("Completed session should never need generation")
	}
}

func TestShouldGenerateMore_SaturatedAreas(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	for _, area := range session.Areas {
		for range session.QuestionsPerArea {
			qid := session.NewQuestionID()
			sess.Questions = append(sess.Questions, session.Question{ID: qid, Text: "q", Category: area})
			sess.Answers = append(sess.Answers, session.Answer{QuestionID: qid, Text: "a"})
		}
	}
	if q.ShouldGenerateMore(sess) {
		t.Error("Fully saturated session should not need generation")
	}
}

// =============================================================================
// NextTargetArea
// =============================================================================

func TestNextTargetArea_ScopeFirstOnFreshSession(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	area, ok := q.NextTargetArea(sess)
	if !ok || area != session.AreaScope {
		t.Errorf("Fresh session should target scope first, got %s (ok=%v)", area, ok)
	}
}

func TestNextTargetArea_LeastCoveredWins(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	// scope has one question, everything else zero: users is the first
	// zero-coverage area in order.
	sess.Questions = append(sess.Questions, session.Question{
		ID: "q1", Text: "q", Category: session.AreaScope,
	})

	area, ok := q.NextTargetArea(sess)
	if !ok || area != session.AreaUsers {
		t.Errorf("Expected users (least covered, earliest), got %s", area)
	}
}

func TestNextTargetArea_MissingAreasTakePriority(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	sess.MissingAreas = []session.Area{session.AreaRisks}

	area, ok := q.NextTargetArea(sess)
	if !ok || area != session.AreaRisks {
		t.Errorf("Missing area should be targeted first, got %s", area)
	}
}

func TestNextTargetArea_SaturatedReturnsFalse(t *testing.T) {
	q := NewQueueManager()
	sess := session.New("test", "user-1")
	for _, area := range session.Areas {
		for range session.QuestionsPerArea {
			sess.Questions = append(sess.Questions, session.Question{
				ID: session.NewQuestionID(), Text: "q", Category: area,
			})
		}
	}
	if _, ok := q.NextTargetArea(sess); ok {
		t.Error("Saturated session should yield no target area")
	}
}

// =============================================================================
// InsertFollowups
// =============================================================================

func TestInsertFollowups_AheadOfPendingQuestions(t *testing.T) {
	q := NewQueueManager()
	sess := sessionWithQuestions(session.AreaScope, session.AreaUsers) // first answered, second pending
	parent := &sess.Questions[0]

	inserted := q.InsertFollowups([]string{"follow up?"}, parent, sess)
	if len(inserted) != 1 {
		t.Fatalf("Expected 1 inserted follow-up, got %d", len(inserted))
	}

	current, ok := sess.CurrentQuestion()
	if !ok {
		t.Fatal("Expected a current question")
	}
	if current.ID != inserted[0].ID {
		t.Error("Follow-up should be the next question to answer")
	}
	if current.Category != session.AreaScope {
		t.Errorf("Follow-up should inherit parent category, got %s", current.Category)
	}
}

func TestInsertFollowups_CapAtTwo(t *testing.T) {
	q := NewQueueManager()
	sess := sessionWithQuestions(session.AreaScope)
	parent := &sess.Questions[0]
	sess.Answers = append(sess.Answers, session.Answer{QuestionID: parent.ID, Text: "a"})

	inserted := q.InsertFollowups([]string{"a?", "b?", "c?"}, parent, sess)
	if len(inserted) != session.MaxFollowupsPerAnswer {
		t.Errorf("Expected %d follow-ups, got %d", session.MaxFollowupsPerAnswer, len(inserted))
	}
}

func TestInsertFollowups_TrimmedToQueueHeadroom(t *testing.T) {
	q := NewQueueManager()
	// One answered question plus one pending just-in-time question: only one
	// follow-up slot is left.
	sess := sessionWithQuestions(session.AreaScope, session.AreaUsers)
	parent := &sess.Questions[0]

	inserted := q.InsertFollowups([]string{"a?", "b?"}, parent, sess)
	if len(inserted) != 1 {
		t.Fatalf("Expected 1 follow-up with headroom 1, got %d", len(inserted))
	}
	if got := sess.PendingCount(); got != session.MaxQueuedQuestions {
		t.Errorf("Pending count %d exceeds cap %d", got, session.MaxQueuedQuestions)
	}
}

func TestInsertFollowups_DroppedWhenQueueFull(t *testing.T) {
	q := NewQueueManager()
	sess := sessionWithQuestions(session.AreaScope, session.AreaUsers, session.AreaData)
	// Answer only the first question, leaving the queue at capacity.
	sess.Answers = sess.Answers[:1]
	parent := &sess.Questions[0]

	inserted := q.InsertFollowups([]string{"a?", "b?"}, parent, sess)
	if inserted != nil {
		t.Errorf("Expected no insertions with a full queue, got %d", len(inserted))
	}
	if got := sess.PendingCount(); got != session.MaxQueuedQuestions {
		t.Errorf("Pending count %d exceeds cap %d", got, session.MaxQueuedQuestions)
	}
}

func TestInsertFollowups_EmptyTextsSkipped(t *testing.T) {
	q := NewQueueManager()
	sess := sessionWithQuestions(session.AreaScope)
	parent := &sess.Questions[0]

	inserted := q.InsertFollowups([]string{"", ""}, parent, sess)
	if inserted != nil {
		t.Errorf("Expected no insertions for empty texts, got %d", len(inserted))
	}
}
