package provider

import (
	"context"
	"fmt"
	"strings"

	"interviewer/pkg/logx"
	"interviewer/pkg/provider/llm"
	"interviewer/pkg/provider/llmerrors"
	"interviewer/pkg/session"
)

// llmProvider implements Provider over a middleware-wrapped llm.Client.
type llmProvider struct {
	client llm.Client
	name   string
	logger *logx.Logger
}

// NewLLMProvider wraps a client as a Provider. The client is expected to
// already carry its middleware chain.
func NewLLMProvider(name string, client llm.Client) Provider {
	return &llmProvider{
		client: client,
		name:   name,
		logger: logx.NewLogger("provider"),
	}
}

func (p *llmProvider) Name() string {
	return p.name
}

func (p *llmProvider) complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(user),
	})
	req.Temperature = temperature

	resp, err := p.client.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return resp.Content, nil
}

// GenerateSingleQuestion produces one question from a caller-built prompt.
func (p *llmProvider) GenerateSingleQuestion(ctx context.Context, prompt string) (*session.Question, error) {
	content, err := p.complete(ctx, questionSystemPrompt, prompt, llm.TemperatureGeneration)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Question string `json:"question"`
		Category string `json:"category"`
	}
	if err := decodeResponse(content, &parsed); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Question) == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, "generated question has empty text")
	}
	area := session.Area(parsed.Category)
	if !session.IsValidArea(area) {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, fmt.Sprintf("generated question has unknown category %q", parsed.Category))
	}

	return &session.Question{
		ID:       session.NewQuestionID(),
		Text:     strings.TrimSpace(parsed.Question),
		Category: area,
		Required: true,
	}, nil
}

// AnalyzeAnswer judges one answer; the follow-up cap is enforced here so a
// chatty model cannot exceed it.
func (p *llmProvider) AnalyzeAnswer(ctx context.Context, question session.Question, answer session.Answer, recent []session.QA) (AnswerAnalysis, error) {
	prompt := buildAnalysisPrompt(question, answer, recent)
	content, err := p.complete(ctx, analysisSystemPrompt, prompt, llm.TemperatureAnalysis)
	if err != nil {
		return AnswerAnalysis{}, err
	}

	var analysis AnswerAnalysis
	if err := decodeResponse(content, &analysis); err != nil {
		return AnswerAnalysis{}, err
	}
	if len(analysis.FollowUpQuestions) > session.MaxFollowupsPerAnswer {
		p.logger.Warn("analysis proposed %d follow-ups, capping at %d", len(analysis.FollowUpQuestions), session.MaxFollowupsPerAnswer)
		analysis.FollowUpQuestions = analysis.FollowUpQuestions[:session.MaxFollowupsPerAnswer]
	}
	return analysis, nil
}

// AssessCompleteness judges the full Q/A history. Unknown missing areas are
// dropped and the confidence score clamped to [0,1].
func (p *llmProvider) AssessCompleteness(ctx context.Context, sess *session.Session) (CompletenessAssessment, error) {
	prompt := buildCompletenessPrompt(sess)
	content, err := p.complete(ctx, completenessSystemPrompt, prompt, llm.TemperatureAnalysis)
	if err != nil {
		return CompletenessAssessment{}, err
	}

	var parsed struct {
		IsComplete      bool     `json:"is_complete"`
		MissingAreas    []string `json:"missing_areas"`
		ConfidenceScore float64  `json:"confidence_score"`
		Reasoning       string   `json:"reasoning"`
	}
	if err := decodeResponse(content, &parsed); err != nil {
		return CompletenessAssessment{}, err
	}

	assessment := CompletenessAssessment{
		IsComplete:      parsed.IsComplete,
		ConfidenceScore: parsed.ConfidenceScore,
		Reasoning:       parsed.Reasoning,
	}
	if assessment.ConfidenceScore < 0 {
		assessment.ConfidenceScore = 0
	}
	if assessment.ConfidenceScore > 1 {
		assessment.ConfidenceScore = 1
	}
	for _, raw := range parsed.MissingAreas {
		area := session.Area(strings.ToLower(strings.TrimSpace(raw)))
		if session.IsValidArea(area) {
			assessment.MissingAreas = append(assessment.MissingAreas, area)
		} else {
			p.logger.Debug("assessment named unknown area %q, ignoring", raw)
		}
	}
	return assessment, nil
}

// SummarizeRequirements synthesizes the final requirement list. Order index
// follows the model's output order; unknown priorities default to SHOULD.
func (p *llmProvider) SummarizeRequirements(ctx context.Context, project string, questions []session.Question, answers []session.Answer) ([]session.Requirement, error) {
	prompt := buildRequirementsPrompt(project, questions, answers)
	content, err := p.complete(ctx, requirementsSystemPrompt, prompt, llm.TemperatureGeneration)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Requirements []struct {
			Title     string `json:"title"`
			Rationale string `json:"rationale"`
			Priority  string `json:"priority"`
		} `json:"requirements"`
	}
	if err := decodeResponse(content, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Requirements) == 0 {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, "model returned zero requirements")
	}

	requirements := make([]session.Requirement, 0, len(parsed.Requirements))
	for i, r := range parsed.Requirements {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		priority := session.Priority(strings.ToUpper(strings.TrimSpace(r.Priority)))
		switch priority {
		case session.PriorityMust, session.PriorityShould, session.PriorityCould:
		default:
			priority = session.PriorityShould
		}
		requirements = append(requirements, session.Requirement{
			ID:         session.NewRequirementID(),
			Title:      strings.TrimSpace(r.Title),
			Rationale:  strings.TrimSpace(r.Rationale),
			Priority:   priority,
			OrderIndex: i,
		})
	}
	if len(requirements) == 0 {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, "model returned only empty requirement titles")
	}
	return requirements, nil
}
