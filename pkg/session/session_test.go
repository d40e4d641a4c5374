package session

import (
	"sync"
	"testing"
)

func TestNew_StartsInitializing(t *testing.T) {
	s := New("Acme CRM", "user-1")

	if s.ConversationState != StateInitializing {
		t.Errorf("Expected INITIALIZING, got %s", s.ConversationState)
	}
	if s.ID == "" {
		t.Error("Expected non-empty session id")
	}
	if s.ConversationComplete {
		t.Error("New session must not be complete")
	}
}

func TestPendingQuestions_OrderAndCount(t *testing.T) {
	s := New("p", "u")
	s.Questions = []Question{
		{ID: "q1", Text: "first", Category: AreaScope},
		{ID: "q2", Text: "second", Category: AreaUsers},
		{ID: "q3", Text: "third", Category: AreaData},
	}
	s.Answers = []Answer{{QuestionID: "q2", Text: "done"}}

	pending := s.PendingQuestions()
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending, got %d", len(pending))
	}
	if pending[0].ID != "q1" || pending[1].ID != "q3" {
		t.Errorf("Pending order wrong: %s, %s", pending[0].ID, pending[1].ID)
	}
	if s.PendingCount() != 2 {
		t.Errorf("PendingCount = %d, want 2", s.PendingCount())
	}
}

func TestCurrentQuestion_FirstUnanswered(t *testing.T) {
	s := New("p", "u")
	s.Questions = []Question{
		{ID: "q1", Category: AreaScope},
		{ID: "q2", Category: AreaScope},
	}
	s.Answers = []Answer{{QuestionID: "q1"}}

	q, ok := s.CurrentQuestion()
	if !ok || q.ID != "q2" {
		t.Errorf("Expected q2 as current question, got %+v ok=%v", q, ok)
	}

	s.Answers = append(s.Answers, Answer{QuestionID: "q2"})
	if _, ok := s.CurrentQuestion(); ok {
		t.Error("Expected no current question when all answered")
	}
}

func TestAnsweredPairs_FollowsQuestionOrder(t *testing.T) {
	s := New("p", "u")
	s.Questions = []Question{
		{ID: "q1", Text: "a", Category: AreaScope},
		{ID: "q2", Text: "b", Category: AreaUsers},
	}
	// Answers recorded out of question order.
	s.Answers = []Answer{
		{QuestionID: "q2", Text: "second"},
		{QuestionID: "q1", Text: "first"},
	}

	pairs := s.AnsweredPairs()
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Question.ID != "q1" || pairs[1].Question.ID != "q2" {
		t.Error("Pairs should follow question order, not answer order")
	}
}

func TestAreaOrdering(t *testing.T) {
	if len(Areas) != 8 {
		t.Fatalf("Expected 8 areas, got %d", len(Areas))
	}
	if Areas[0] != AreaScope {
		t.Error("scope must be the first area")
	}
	if AreaIndex(AreaSuccess) != 7 {
		t.Errorf("success should be last, index %d", AreaIndex(AreaSuccess))
	}
	if AreaIndex("bogus") != -1 {
		t.Error("Unknown area should have index -1")
	}
	if !IsValidArea(AreaRisks) || IsValidArea("bogus") {
		t.Error("IsValidArea misclassified an area")
	}
}

func TestLockArena_SameLockPerSession(t *testing.T) {
	arena := NewLockArena()

	l1 := arena.Get("sess-1")
	l2 := arena.Get("sess-1")
	if l1 != l2 {
		t.Error("Expected the same mutex for the same session id")
	}
	if arena.Get("sess-2") == l1 {
		t.Error("Expected distinct mutexes for distinct session ids")
	}
	if arena.Len() != 2 {
		t.Errorf("Expected 2 locks in arena, got %d", arena.Len())
	}
}

func TestLockArena_ConcurrentGet(t *testing.T) {
	arena := NewLockArena()

	var wg sync.WaitGroup
	locks := make([]*sync.Mutex, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			locks[n] = arena.Get("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 32; i++ {
		if locks[i] != locks[0] {
			t.Fatal("Concurrent Get returned different mutexes for one id")
		}
	}
	if arena.Len() != 1 {
		t.Errorf("Expected 1 lock, got %d", arena.Len())
	}
}
