package provider

import (
	"context"
	"fmt"
	"sync"

	"interviewer/pkg/session"
)

// MockProvider is a controllable Provider for tests and offline runs.
// Scripted results are consumed in order; once a script is exhausted the
// mock falls back to deterministic defaults, so it can also drive a full
// interview end to end without any scripting.
type MockProvider struct {
	mu sync.Mutex

	questionResults []QuestionResult
	questionIndex   int
	analysisResults []AnalysisResult
	analysisIndex   int
	assessResults   []AssessResult
	assessIndex     int
	summarizeErrs   []error
	summarizeIndex  int

	generated int
}

// QuestionResult scripts one GenerateSingleQuestion call.
type QuestionResult struct {
	Question *session.Question
	Err      error
}

// AnalysisResult scripts one AnalyzeAnswer call.
type AnalysisResult struct {
	Analysis AnswerAnalysis
	Err      error
}

// AssessResult scripts one AssessCompleteness call.
type AssessResult struct {
	Assessment CompletenessAssessment
	Err        error
}

// NewMockProvider creates a mock with no scripted results.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// ScriptQuestions queues results for upcoming GenerateSingleQuestion calls.
func (m *MockProvider) ScriptQuestions(results ...QuestionResult) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questionResults = append(m.questionResults, results...)
	return m
}

// ScriptAnalyses queues results for upcoming AnalyzeAnswer calls.
func (m *MockProvider) ScriptAnalyses(results ...AnalysisResult) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analysisResults = append(m.analysisResults, results...)
	return m
}

// ScriptAssessments queues results for upcoming AssessCompleteness calls.
func (m *MockProvider) ScriptAssessments(results ...AssessResult) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessResults = append(m.assessResults, results...)
	return m
}

// ScriptSummarizeErrors queues errors for upcoming SummarizeRequirements
// calls; a nil entry means that call succeeds with the default synthesis.
func (m *MockProvider) ScriptSummarizeErrors(errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarizeErrs = append(m.summarizeErrs, errs...)
	return m
}

func (m *MockProvider) Name() string { return VendorMock }

// GenerateSingleQuestion returns the next scripted result or a canned
// question cycling through the areas.
func (m *MockProvider) GenerateSingleQuestion(_ context.Context, _ string) (*session.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.questionIndex < len(m.questionResults) {
		result := m.questionResults[m.questionIndex]
		m.questionIndex++
		return result.Question, result.Err
	}

	area := session.Areas[m.generated%len(session.Areas)]
	m.generated++
	return &session.Question{
		ID:       session.NewQuestionID(),
		Text:     fmt.Sprintf("Tell me more about the %s of this project (question %d).", area, m.generated),
		Category: area,
		Required: true,
	}, nil
}

// AnalyzeAnswer returns the next scripted result or the zero-followup default.
func (m *MockProvider) AnalyzeAnswer(_ context.Context, _ session.Question, _ session.Answer, _ []session.QA) (AnswerAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.analysisIndex < len(m.analysisResults) {
		result := m.analysisResults[m.analysisIndex]
		m.analysisIndex++
		return result.Analysis, result.Err
	}
	return AnswerAnalysis{Reasoning: "answer is substantive"}, nil
}

// AssessCompleteness returns the next scripted result; the default judges a
// session complete once every area has at least one answered question.
func (m *MockProvider) AssessCompleteness(_ context.Context, sess *session.Session) (CompletenessAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.assessIndex < len(m.assessResults) {
		result := m.assessResults[m.assessIndex]
		m.assessIndex++
		return result.Assessment, result.Err
	}

	answered := make(map[session.Area]int)
	for _, pair := range sess.AnsweredPairs() {
		answered[pair.Question.Category]++
	}
	var missing []session.Area
	for _, area := range session.Areas {
		if answered[area] == 0 {
			missing = append(missing, area)
		}
	}
	if len(missing) > 0 {
		return CompletenessAssessment{
			IsComplete:      false,
			MissingAreas:    missing,
			ConfidenceScore: 0.9,
			Reasoning:       "some areas have no answers yet",
		}, nil
	}
	return CompletenessAssessment{
		IsComplete:      true,
		ConfidenceScore: 0.9,
		Reasoning:       "every area has at least one answer",
	}, nil
}

// SummarizeRequirements returns one requirement per answered question unless
// a scripted error is queued.
func (m *MockProvider) SummarizeRequirements(_ context.Context, project string, questions []session.Question, answers []session.Answer) ([]session.Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.summarizeIndex < len(m.summarizeErrs) {
		err := m.summarizeErrs[m.summarizeIndex]
		m.summarizeIndex++
		if err != nil {
			return nil, err
		}
	}

	answered := make(map[string]bool, len(answers))
	for i := range answers {
		answered[answers[i].QuestionID] = true
	}

	var requirements []session.Requirement
	for i := range questions {
		if !answered[questions[i].ID] {
			continue
		}
		requirements = append(requirements, session.Requirement{
			ID:         session.NewRequirementID(),
			Title:      fmt.Sprintf("%s: address %q", project, questions[i].Text),
			Rationale:  "derived from interview answer",
			Priority:   session.PriorityShould,
			OrderIndex: len(requirements),
		})
	}
	if len(requirements) == 0 {
		requirements = append(requirements, session.Requirement{
			ID:         session.NewRequirementID(),
			Title:      fmt.Sprintf("%s: capture detailed requirements in a follow-up session", project),
			Priority:   session.PriorityMust,
			OrderIndex: 0,
		})
	}
	return requirements, nil
}
