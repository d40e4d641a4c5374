package interview

import (
	"context"
	"errors"
	"testing"

	"interviewer/pkg/provider"
	"interviewer/pkg/provider/llmerrors"
	"interviewer/pkg/session"
	"interviewer/pkg/usage"
)

func newGenerationService(prov provider.Provider, tracker UsageTracker) *GenerationService {
	return NewGenerationService(prov, NewQueueManager(), tracker)
}

func TestGenerateNextQuestion_SecondCallIsNoOp(t *testing.T) {
	g := newGenerationService(provider.NewMockProvider(), nil)
	sess := session.New("test", "user-1")
	sess.ConversationState = session.StateWaitingForInput

	first, err := g.GenerateNextQuestionIfNeeded(context.Background(), sess)
	if err != nil || first == nil {
		t.Fatalf("First generation failed: q=%v err=%v", first, err)
	}

	// The pending question satisfies the queue; nothing more is generated
	// until it is answered.
	second, err := g.GenerateNextQuestionIfNeeded(context.Background(), sess)
	if err != nil {
		t.Fatalf("Second call errored: %v", err)
	}
	if second != nil {
		t.Error("Second call without an intervening answer must not generate")
	}
	if len(sess.Questions) != 1 {
		t.Errorf("Expected 1 question, got %d", len(sess.Questions))
	}
}

func TestGenerateNextQuestion_ProviderFailureReturnsNilNil(t *testing.T) {
	mock := provider.NewMockProvider().ScriptQuestions(provider.QuestionResult{
		Err: llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
	})
	g := newGenerationService(mock, nil)
	sess := session.New("test", "user-1")

	question, err := g.GenerateNextQuestionIfNeeded(context.Background(), sess)
	if err != nil {
		t.Fatalf("Provider failure must not error the turn: %v", err)
	}
	if question != nil {
		t.Error("Provider failure must yield no question")
	}
	if len(sess.Questions) != 0 {
		t.Error("Failed generation must not mutate the session")
	}
}

func TestGenerateNextQuestion_QuotaErrorPropagates(t *testing.T) {
	g := newGenerationService(provider.NewMockProvider(), &fakeTracker{remaining: 0})
	sess := session.New("test", "user-1")

	_, err := g.GenerateNextQuestionIfNeeded(context.Background(), sess)
	if !errors.Is(err, usage.ErrQuotaExceeded) {
		t.Errorf("Expected wrapped quota sentinel, got %v", err)
	}
}

func TestGenerateNextQuestion_RecordsUsage(t *testing.T) {
	tracker := &fakeTracker{remaining: 5}
	g := newGenerationService(provider.NewMockProvider(), tracker)
	sess := session.New("test", "user-1")

	if _, err := g.GenerateNextQuestionIfNeeded(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	if tracker.recorded != 1 {
		t.Errorf("Expected 1 recorded generation, got %d", tracker.recorded)
	}
}

func TestSetupInitialQuestions_QuotaExhaustedSeedsFallback(t *testing.T) {
	tracker := &fakeTracker{remaining: 0}
	g := newGenerationService(provider.NewMockProvider(), tracker)
	sess := session.New("test", "user-1")

	question := g.SetupInitialSessionQuestions(context.Background(), sess)

	if question.Text != fallbackScopeQuestion {
		t.Errorf("Expected the fallback question, got %q", question.Text)
	}
	if question.Category != session.AreaScope || !question.Required {
		t.Error("Fallback question must be a required scope question")
	}
	if tracker.recorded != 0 {
		t.Errorf("No generation should be recorded when quota blocks the call, got %d", tracker.recorded)
	}
	if len(sess.Questions) != 1 {
		t.Errorf("Expected 1 seeded question, got %d", len(sess.Questions))
	}
}

func TestSetupInitialQuestions_ForcesScopeCategory(t *testing.T) {
	// The mock labels questions with its own cycling category; setup must
	// override it.
	mock := provider.NewMockProvider().ScriptQuestions(provider.QuestionResult{
		Question: &session.Question{ID: session.NewQuestionID(), Text: "opening?", Category: session.AreaRisks},
	})
	g := newGenerationService(mock, nil)
	sess := session.New("test", "user-1")

	question := g.SetupInitialSessionQuestions(context.Background(), sess)

	if question.Category != session.AreaScope {
		t.Errorf("Opening question must be scope, got %s", question.Category)
	}
	if !question.Required {
		t.Error("Opening question must be required")
	}
	if len(sess.Questions) != 1 {
		t.Errorf("Expected 1 seeded question, got %d", len(sess.Questions))
	}
}
