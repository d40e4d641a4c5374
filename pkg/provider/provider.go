// Package provider exposes the interview engine's LLM capability: question
// generation, answer analysis, completeness assessment, and requirements
// synthesis over a middleware-wrapped client.
package provider

import (
	"context"

	"interviewer/pkg/session"
)

// AnswerAnalysis is the transient result of analyzing one answer. It is not
// persisted; only the derived Answer flags and any follow-up questions are.
type AnswerAnalysis struct {
	FollowUpQuestions []string `json:"follow_up_questions"`
	Reasoning         string   `json:"reasoning,omitempty"`
}

// NoFollowupAnalysis is the safe default substituted when analysis fails.
func NoFollowupAnalysis() AnswerAnalysis {
	return AnswerAnalysis{FollowUpQuestions: nil, Reasoning: "analysis unavailable"}
}

// CompletenessAssessment is the transient result of judging whether the
// interview has gathered enough material to synthesize requirements.
type CompletenessAssessment struct {
	IsComplete      bool           `json:"is_complete"`
	MissingAreas    []session.Area `json:"missing_areas,omitempty"`
	ConfidenceScore float64        `json:"confidence_score"`
	Reasoning       string         `json:"reasoning,omitempty"`
}

// Provider is the LLM capability consumed by the interview core. Every call
// is a blocking network call; timeout, retry, and rate limiting live in the
// client middleware chain underneath, not in the callers.
type Provider interface {
	// GenerateSingleQuestion produces one interview question from a prompt
	// that names the target area and recent conversation context.
	GenerateSingleQuestion(ctx context.Context, prompt string) (*session.Question, error)

	// AnalyzeAnswer judges one answer for vagueness or contradiction and
	// proposes at most MaxFollowupsPerAnswer follow-up questions.
	AnalyzeAnswer(ctx context.Context, question session.Question, answer session.Answer, recent []session.QA) (AnswerAnalysis, error)

	// AssessCompleteness judges the full Q/A history of a session.
	AssessCompleteness(ctx context.Context, sess *session.Session) (CompletenessAssessment, error)

	// SummarizeRequirements synthesizes the final prioritized requirement
	// list from the full Q/A history.
	SummarizeRequirements(ctx context.Context, project string, questions []session.Question, answers []session.Answer) ([]session.Requirement, error)

	// Name identifies the provider for logs and metrics.
	Name() string
}
