package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/provider"
	"interviewer/pkg/provider/llmerrors"
	"interviewer/pkg/session"
)

// seedSession stores a hand-built session and returns its id.
func seedSession(t *testing.T, storage *memStorage, sess *session.Session) string {
	t.Helper()
	_, err := storage.SaveSession(context.Background(), sess)
	require.NoError(t, err)
	return sess.ID
}

// answeredSession builds a session in WAITING_FOR_INPUT with answered
// questions spread over the given areas and nothing pending.
func answeredSession(areas ...session.Area) *session.Session {
	sess := session.New("seeded", "user-1")
	sess.ConversationState = session.StateWaitingForInput
	for _, area := range areas {
		id := session.NewQuestionID()
		sess.Questions = append(sess.Questions, session.Question{ID: id, Text: "q", Category: area, Required: true})
		sess.Answers = append(sess.Answers, session.Answer{QuestionID: id, Text: "a"})
	}
	return sess
}

// saturatedAreas returns QuestionsPerArea copies of every area.
func saturatedAreas() []session.Area {
	var areas []session.Area
	for _, area := range session.Areas {
		for range session.QuestionsPerArea {
			areas = append(areas, area)
		}
	}
	return areas
}

// =============================================================================
// Session setup
// =============================================================================

func TestSetupSession_ExactlyOneScopeQuestion(t *testing.T) {
	storage := newMemStorage()
	p := NewPipeline(storage, provider.NewMockProvider(), nil)

	sess, err := p.SetupSession(context.Background(), "Acme CRM", "user-1")
	require.NoError(t, err)

	assert.Len(t, sess.Questions, 1)
	assert.Equal(t, session.AreaScope, sess.Questions[0].Category)
	assert.Equal(t, session.StateWaitingForInput, sess.ConversationState)

	persisted, err := storage.LoadSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, persisted.Questions, 1)
}

func TestSetupSession_ProviderFailureFallsBack(t *testing.T) {
	mock := provider.NewMockProvider().ScriptQuestions(provider.QuestionResult{
		Err: llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
	})
	p := NewPipeline(newMemStorage(), mock, nil)

	sess, err := p.SetupSession(context.Background(), "Acme CRM", "user-1")
	require.NoError(t, err)

	require.Len(t, sess.Questions, 1)
	assert.Equal(t, fallbackScopeQuestion, sess.Questions[0].Text)
	assert.Equal(t, session.AreaScope, sess.Questions[0].Category)
}

// =============================================================================
// Answer turns
// =============================================================================

func TestProcessAnswer_VagueAnswerGetsFollowupsFirst(t *testing.T) {
	mock := provider.NewMockProvider().ScriptAnalyses(provider.AnalysisResult{
		Analysis: provider.AnswerAnalysis{FollowUpQuestions: []string{"what exactly?", "for whom?"}},
	})
	storage := newMemStorage()
	p := NewPipeline(storage, mock, nil)

	sess, err := p.SetupSession(context.Background(), "proj", "user-1")
	require.NoError(t, err)

	result, err := p.ProcessAnswer(context.Background(), sess.ID, "it should be good")
	require.NoError(t, err)

	require.Len(t, result.Followups, 2)
	require.NotNil(t, result.NextQuestion)
	assert.Equal(t, result.Followups[0].ID, result.NextQuestion.ID)
	assert.Equal(t, session.AreaScope, result.NextQuestion.Category)
	assert.Equal(t, session.StateWaitingForInput, result.Session.ConversationState)
}

func TestProcessAnswer_NormalAnswerGeneratesNextQuestion(t *testing.T) {
	p := NewPipeline(newMemStorage(), provider.NewMockProvider(), nil)

	sess, err := p.SetupSession(context.Background(), "proj", "user-1")
	require.NoError(t, err)

	result, err := p.ProcessAnswer(context.Background(), sess.ID, "a solid answer")
	require.NoError(t, err)

	require.NotNil(t, result.NextQuestion)
	assert.False(t, result.Completed)
	assert.Len(t, result.Session.Answers, 1)
	assert.LessOrEqual(t, result.Session.PendingCount(), session.MaxQueuedQuestions)
}

func TestProcessAnswer_QueueNeverExceedsCap(t *testing.T) {
	p := NewPipeline(newMemStorage(), provider.NewMockProvider(), nil)

	sess, err := p.SetupSession(context.Background(), "proj", "user-1")
	require.NoError(t, err)

	for range 10 {
		result, err := p.ProcessAnswer(context.Background(), sess.ID, "answer text")
		require.NoError(t, err)
		assert.LessOrEqual(t, result.Session.PendingCount(), session.MaxQueuedQuestions)
		if result.Completed {
			break
		}
	}
}

func TestProcessAnswer_ConsecutiveVagueAnswersRespectCap(t *testing.T) {
	// Every answer spawns the maximum follow-ups: the second batch must be
	// trimmed so the unanswered count never passes the queue cap.
	vague := provider.AnalysisResult{
		Analysis: provider.AnswerAnalysis{FollowUpQuestions: []string{"what exactly?", "for whom?"}},
	}
	mock := provider.NewMockProvider().ScriptAnalyses(vague, vague, vague)
	p := NewPipeline(newMemStorage(), mock, nil)

	sess, err := p.SetupSession(context.Background(), "proj", "user-1")
	require.NoError(t, err)

	first, err := p.ProcessAnswer(context.Background(), sess.ID, "it should be good")
	require.NoError(t, err)
	assert.Len(t, first.Followups, 2)
	assert.Equal(t, session.MaxQueuedQuestions, first.Session.PendingCount())

	second, err := p.ProcessAnswer(context.Background(), sess.ID, "still not sure")
	require.NoError(t, err)
	assert.Len(t, second.Followups, 1, "one pending question leaves room for one follow-up")
	assert.LessOrEqual(t, second.Session.PendingCount(), session.MaxQueuedQuestions)
}

func TestProcessAnswer_QuotaExhaustionPausesWithoutFailing(t *testing.T) {
	tracker := &fakeTracker{remaining: 0}
	p := NewPipeline(newMemStorage(), provider.NewMockProvider(), tracker)

	sess, err := p.SetupSession(context.Background(), "proj", "user-1")
	require.NoError(t, err)

	result, err := p.ProcessAnswer(context.Background(), sess.ID, "answer")
	require.NoError(t, err)

	assert.True(t, result.QuotaExhausted)
	assert.Nil(t, result.NextQuestion)
	assert.Equal(t, session.StateWaitingForInput, result.Session.ConversationState)
}

func TestProcessAnswer_CompletedSessionRejected(t *testing.T) {
	storage := newMemStorage()
	p := NewPipeline(storage, provider.NewMockProvider(), nil)

	sess := answeredSession(session.AreaScope)
	sess.ConversationState = session.StateCompleted
	sess.ConversationComplete = true
	id := seedSession(t, storage, sess)

	_, err := p.ProcessAnswer(context.Background(), id, "more")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionComplete))
}

// =============================================================================
// Completeness and finalization
// =============================================================================

func TestInterview_RunsToCompletion(t *testing.T) {
	storage := newMemStorage()
	p := NewPipeline(storage, provider.NewMockProvider(), nil)

	sess, err := p.SetupSession(context.Background(), "Acme CRM", "user-1")
	require.NoError(t, err)

	var final *TurnResult
	for range 100 {
		result, err := p.ProcessAnswer(context.Background(), sess.ID, "a detailed answer")
		require.NoError(t, err)
		if result.Completed {
			final = result
			break
		}
	}

	require.NotNil(t, final, "interview should complete within the iteration budget")
	assert.Equal(t, session.StateCompleted, final.Session.ConversationState)
	assert.True(t, final.Session.ConversationComplete)
	assert.NotEmpty(t, final.Session.Requirements)
	assert.GreaterOrEqual(t, len(final.Session.Answers), MinAnswersForAssessment)
}

func TestAssessmentFailure_DegradesToWaiting(t *testing.T) {
	mock := provider.NewMockProvider().ScriptAssessments(provider.AssessResult{
		Err: llmerrors.NewError(llmerrors.ErrorTypeTransient, "assessment down"),
	})
	storage := newMemStorage()
	p := NewPipeline(storage, mock, nil)

	// Enough answers to trigger assessment, but areas left to generate for.
	areas := make([]session.Area, 0, MinAnswersForAssessment)
	for range MinAnswersForAssessment {
		areas = append(areas, session.AreaScope)
	}
	id := seedSession(t, storage, answeredSession(areas...))

	result, err := p.ProcessAnswer(context.Background(), id, "")
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.NotNil(t, result.NextQuestion, "interviewing continues after a failed assessment")
	assert.Equal(t, session.StateWaitingForInput, result.Session.ConversationState)
}

func TestAssessmentIncomplete_MissingAreasArePrioritized(t *testing.T) {
	mock := provider.NewMockProvider().ScriptAssessments(provider.AssessResult{
		Assessment: provider.CompletenessAssessment{
			IsComplete:      false,
			MissingAreas:    []session.Area{session.AreaRisks},
			ConfidenceScore: 0.8,
		},
	})
	storage := newMemStorage()
	p := NewPipeline(storage, mock, nil)

	areas := make([]session.Area, 0, MinAnswersForAssessment)
	for range MinAnswersForAssessment {
		areas = append(areas, session.AreaScope)
	}
	id := seedSession(t, storage, answeredSession(areas...))

	result, err := p.ProcessAnswer(context.Background(), id, "")
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.Equal(t, []session.Area{session.AreaRisks}, result.Session.MissingAreas)
}

func TestForcedCompletion_WhenNoProgressPossible(t *testing.T) {
	// Assessment keeps saying incomplete while every area is saturated, so
	// generation can produce nothing: the engine must terminate anyway.
	mock := provider.NewMockProvider().ScriptAssessments(provider.AssessResult{
		Assessment: provider.CompletenessAssessment{IsComplete: false, ConfidenceScore: 0.5},
	})
	storage := newMemStorage()
	p := NewPipeline(storage, mock, nil)

	id := seedSession(t, storage, answeredSession(saturatedAreas()...))

	result, err := p.ProcessAnswer(context.Background(), id, "")
	require.NoError(t, err)

	assert.True(t, result.ForcedCompletion)
	assert.True(t, result.Completed)
	assert.Equal(t, session.StateCompleted, result.Session.ConversationState)
	assert.NotEmpty(t, result.Session.Requirements)
}

func TestFinalizationFailure_MarksFailedAndRetryWorks(t *testing.T) {
	mock := provider.NewMockProvider().
		ScriptAssessments(provider.AssessResult{
			Assessment: provider.CompletenessAssessment{IsComplete: true, ConfidenceScore: 0.9},
		}).
		ScriptSummarizeErrors(llmerrors.NewError(llmerrors.ErrorTypeTransient, "synthesis down"))
	storage := newMemStorage()
	p := NewPipeline(storage, mock, nil)

	id := seedSession(t, storage, answeredSession(saturatedAreas()...))

	_, err := p.ProcessAnswer(context.Background(), id, "")
	require.Error(t, err)

	failed, err := storage.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, session.StateFailed, failed.ConversationState)

	// The scripted error is consumed; the retry succeeds with defaults.
	require.NoError(t, p.RetryFinalization(context.Background(), id))

	recovered, err := storage.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, session.StateCompleted, recovered.ConversationState)
	assert.NotEmpty(t, recovered.Requirements)
}

func TestRetryFinalization_RejectsHealthyStates(t *testing.T) {
	storage := newMemStorage()
	p := NewPipeline(storage, provider.NewMockProvider(), nil)

	id := seedSession(t, storage, answeredSession(session.AreaScope))

	err := p.RetryFinalization(context.Background(), id)
	require.Error(t, err)
}
