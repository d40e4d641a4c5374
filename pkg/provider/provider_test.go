package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/provider/llm"
	"interviewer/pkg/provider/llmerrors"
	"interviewer/pkg/session"
)

// stubClient returns canned completions in order.
func stubClient(contents ...string) llm.Client {
	index := 0
	return llm.WrapClient(
		func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			if index >= len(contents) {
				return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "stub exhausted")
			}
			content := contents[index]
			index++
			return llm.CompletionResponse{Content: content, StopReason: "end_turn"}, nil
		},
		func() string { return "stub-model" },
	)
}

// =============================================================================
// JSON extraction
// =============================================================================

func TestExtractJSON_Plain(t *testing.T) {
	payload, err := extractJSON(`{"question": "What is in scope?"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"question": "What is in scope?"}`, payload)
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	content := "```json\n{\"a\": 1}\n```"
	payload, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, payload)
}

func TestExtractJSON_SurroundingProse(t *testing.T) {
	content := `Here is the result: {"a": {"b": 2}} hope that helps`
	payload, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 2}}`, payload)
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	content := `{"text": "use {curly} braces \" carefully"}`
	payload, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, content, payload)
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := extractJSON("sorry, I cannot answer that")
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeMalformedResponse))
}

func TestExtractJSON_Unbalanced(t *testing.T) {
	_, err := extractJSON(`{"a": 1`)
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeMalformedResponse))
}

// =============================================================================
// llmProvider parsing and validation
// =============================================================================

func TestGenerateSingleQuestion_ParsesResponse(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"question": "Who are the users?", "category": "users"}`))

	q, err := p.GenerateSingleQuestion(context.Background(), "ask about users")
	require.NoError(t, err)
	assert.Equal(t, "Who are the users?", q.Text)
	assert.Equal(t, session.AreaUsers, q.Category)
	assert.True(t, q.Required)
	assert.NotEmpty(t, q.ID)
}

func TestGenerateSingleQuestion_UnknownCategory(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"question": "x?", "category": "budget"}`))

	_, err := p.GenerateSingleQuestion(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeMalformedResponse))
}

func TestGenerateSingleQuestion_EmptyText(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"question": "  ", "category": "scope"}`))

	_, err := p.GenerateSingleQuestion(context.Background(), "prompt")
	require.Error(t, err)
}

func TestAnalyzeAnswer_CapsFollowups(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"follow_up_questions": ["a?", "b?", "c?", "d?"], "reasoning": "vague"}`))

	analysis, err := p.AnalyzeAnswer(context.Background(), session.Question{}, session.Answer{}, nil)
	require.NoError(t, err)
	assert.Len(t, analysis.FollowUpQuestions, session.MaxFollowupsPerAnswer)
}

func TestAssessCompleteness_ClampsAndFilters(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"is_complete": false, "missing_areas": ["risks", "budget", " DATA "], "confidence_score": 1.7}`))
	sess := session.New("proj", "user-1")

	assessment, err := p.AssessCompleteness(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, assessment.IsComplete)
	assert.Equal(t, 1.0, assessment.ConfidenceScore)
	assert.Equal(t, []session.Area{session.AreaRisks, session.AreaData}, assessment.MissingAreas)
}

func TestSummarizeRequirements_DefaultsPriority(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"requirements": [
		{"title": "Store sessions", "priority": "must"},
		{"title": "Export PDF", "priority": "someday"},
		{"title": "   ", "priority": "MUST"}
	]}`))

	reqs, err := p.SummarizeRequirements(context.Background(), "proj", nil, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, session.PriorityMust, reqs[0].Priority)
	assert.Equal(t, session.PriorityShould, reqs[1].Priority)
	assert.Equal(t, 0, reqs[0].OrderIndex)
	assert.Equal(t, 1, reqs[1].OrderIndex)
}

func TestSummarizeRequirements_ZeroRequirementsIsError(t *testing.T) {
	p := NewLLMProvider("test", stubClient(`{"requirements": []}`))

	_, err := p.SummarizeRequirements(context.Background(), "proj", nil, nil)
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeMalformedResponse))
}

// =============================================================================
// Model spec parsing and factory dispatch
// =============================================================================

func TestParseModelSpec(t *testing.T) {
	vendor, model, err := ParseModelSpec("anthropic:claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, VendorAnthropic, vendor)
	assert.Equal(t, "claude-sonnet-4-20250514", model)

	for _, bad := range []string{"", "anthropic", ":model", "anthropic:", "ollama:llama3"} {
		_, _, err := ParseModelSpec(bad)
		assert.Error(t, err, "spec %q should be rejected", bad)
	}
}

func TestFactory_MockNeedsNoKey(t *testing.T) {
	f := NewFactoryWithRecorder(DefaultResilienceConfig(), nil)

	p, err := f.NewProvider("mock:default", "")
	require.NoError(t, err)
	assert.Equal(t, VendorMock, p.Name())
}

func TestFactory_RealVendorNeedsKey(t *testing.T) {
	f := NewFactoryWithRecorder(DefaultResilienceConfig(), nil)

	_, err := f.NewProvider("anthropic:claude-sonnet-4-20250514", "")
	require.Error(t, err)
}

// =============================================================================
// Mock provider behavior
// =============================================================================

func TestMockProvider_ScriptedThenDefault(t *testing.T) {
	scripted := &session.Question{ID: "q-1", Text: "scripted?", Category: session.AreaScope, Required: true}
	m := NewMockProvider().ScriptQuestions(QuestionResult{Question: scripted})

	q, err := m.GenerateSingleQuestion(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "q-1", q.ID)

	q, err = m.GenerateSingleQuestion(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, session.AreaScope, q.Category)
	assert.NotEqual(t, "q-1", q.ID)
}

func TestMockProvider_DefaultAssessmentTracksCoverage(t *testing.T) {
	m := NewMockProvider()
	sess := session.New("proj", "user-1")
	sess.Questions = append(sess.Questions, session.Question{ID: "q1", Text: "scope?", Category: session.AreaScope})
	sess.Answers = append(sess.Answers, session.Answer{QuestionID: "q1", Text: "a web app"})

	assessment, err := m.AssessCompleteness(context.Background(), sess)
	require.NoError(t, err)
	assert.False(t, assessment.IsComplete)
	assert.Contains(t, assessment.MissingAreas, session.AreaRisks)
	assert.NotContains(t, assessment.MissingAreas, session.AreaScope)
}
