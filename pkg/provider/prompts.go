package provider

import (
	"fmt"
	"strings"

	"interviewer/pkg/session"
)

const questionSystemPrompt = `You are a requirements analyst conducting a structured interview about a software project.
Ask exactly one clear, specific question. Respond with ONLY a JSON object:
{"question": "<the question text>", "category": "<one of: scope, users, constraints, nonfunctional, interfaces, data, risks, success>"}`

const analysisSystemPrompt = `You are a requirements analyst reviewing one interview answer.
Be conservative: propose follow-up questions ONLY when the answer is contentless, self-contradictory, or non-responsive. A short but substantive answer needs no follow-up. Propose at most 2 follow-ups.
Respond with ONLY a JSON object:
{"follow_up_questions": ["..."], "reasoning": "<one sentence>"}
Use an empty array when no follow-up is warranted.`

const completenessSystemPrompt = `You are a requirements analyst judging whether an interview has covered a software project well enough to write a requirements document.
The eight areas are: scope, users, constraints, nonfunctional, interfaces, data, risks, success.
Respond with ONLY a JSON object:
{"is_complete": true|false, "missing_areas": ["..."], "confidence_score": 0.0-1.0, "reasoning": "<one sentence>"}`

const requirementsSystemPrompt = `You are a requirements analyst writing the final requirements document from an interview transcript.
Produce a prioritized list. Priorities are MUST, SHOULD, or COULD.
Respond with ONLY a JSON object:
{"requirements": [{"title": "...", "rationale": "...", "priority": "MUST"}]}`

// buildAnalysisPrompt renders the question, answer, and recent context for
// answer analysis.
func buildAnalysisPrompt(question session.Question, answer session.Answer, recent []session.QA) string {
	var sb strings.Builder
	if len(recent) > 0 {
		sb.WriteString("Recent conversation:\n")
		for i := range recent {
			fmt.Fprintf(&sb, "Q (%s): %s\nA: %s\n", recent[i].Question.Category, recent[i].Question.Text, recent[i].Answer.Text)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Question (%s): %s\n", question.Category, question.Text)
	fmt.Fprintf(&sb, "Answer: %s\n", answer.Text)
	return sb.String()
}

// buildCompletenessPrompt renders the full Q/A history plus per-area coverage.
func buildCompletenessPrompt(sess *session.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n\n", sess.Project)

	counts := sess.AreaCounts()
	sb.WriteString("Questions asked per area:\n")
	for _, area := range session.Areas {
		fmt.Fprintf(&sb, "  %s: %d\n", area, counts[area])
	}
	sb.WriteString("\nFull transcript:\n")
	for _, pair := range sess.AnsweredPairs() {
		fmt.Fprintf(&sb, "Q (%s): %s\nA: %s\n", pair.Question.Category, pair.Question.Text, pair.Answer.Text)
	}
	return sb.String()
}

// buildRequirementsPrompt renders the transcript for requirements synthesis.
func buildRequirementsPrompt(project string, questions []session.Question, answers []session.Answer) string {
	answerByQuestion := make(map[string]string, len(answers))
	for i := range answers {
		answerByQuestion[answers[i].QuestionID] = answers[i].Text
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n\nInterview transcript:\n", project)
	for i := range questions {
		text, ok := answerByQuestion[questions[i].ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "Q (%s): %s\nA: %s\n", questions[i].Category, questions[i].Text, text)
	}
	return sb.String()
}
