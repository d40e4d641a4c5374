// Package session defines the interview session model and its invariant helpers.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Scheduling limits for the just-in-time question queue.
const (
	// MaxQueuedQuestions caps how many unanswered questions may exist at once.
	MaxQueuedQuestions = 2
	// MinQueueSize is the pending-question level below which generation kicks in.
	MinQueueSize = 1
	// QuestionsPerArea is the per-area target before the scheduler moves on.
	QuestionsPerArea = 3
	// MaxFollowupsPerAnswer caps follow-up questions spawned from one answer.
	MaxFollowupsPerAnswer = 2
)

// Priority ranks a synthesized requirement (MoSCoW without the W).
type Priority string

const (
	PriorityMust   Priority = "MUST"
	PriorityShould Priority = "SHOULD"
	PriorityCould  Priority = "COULD"
)

// Question is a single interview question targeting one requirement area.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category Area   `json:"category"`
	Required bool   `json:"required"`
}

// Answer is the user's response to one question. At most one answer exists
// per question id within a session.
type Answer struct {
	QuestionID    string `json:"question_id"`
	Text          string `json:"text"`
	IsVague       bool   `json:"is_vague"`
	NeedsFollowup bool   `json:"needs_followup"`
}

// Requirement is one synthesized requirement produced at finalization.
type Requirement struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Rationale  string   `json:"rationale,omitempty"`
	Priority   Priority `json:"priority"`
	OrderIndex int      `json:"order_index"`
}

// Session is the unit of ownership: the orchestrator holds exclusive logical
// access to one Session for the duration of a turn and commits it atomically
// back to Storage.
//
//nolint:govet // struct alignment optimization not critical for this type
type Session struct {
	ID                   string        `json:"id"`
	Project              string        `json:"project"`
	UserID               string        `json:"user_id"`
	Questions            []Question    `json:"questions"`
	Answers              []Answer      `json:"answers"`
	Requirements         []Requirement `json:"requirements"`
	ConversationState    State         `json:"conversation_state"`
	ConversationComplete bool          `json:"conversation_complete"`
	StateContext         string        `json:"state_context,omitempty"` // Serialized recovery metadata
	MissingAreas         []Area        `json:"missing_areas,omitempty"` // From the last incomplete assessment
	LastStateChange      time.Time     `json:"last_state_change"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// New creates a session in the INITIALIZING state.
func New(project, userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                uuid.New().String(),
		Project:           project,
		UserID:            userID,
		ConversationState: StateInitializing,
		LastStateChange:   now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewQuestionID generates an id for a question.
func NewQuestionID() string {
	return uuid.New().String()
}

// NewRequirementID generates an id for a requirement.
func NewRequirementID() string {
	return uuid.New().String()
}

// HasQuestion reports whether a question with the given id exists.
func (s *Session) HasQuestion(questionID string) bool {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return true
		}
	}
	return false
}

// QuestionByID returns the question with the given id, if present.
func (s *Session) QuestionByID(questionID string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// IsAnswered reports whether the question id already has an answer.
func (s *Session) IsAnswered(questionID string) bool {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return true
		}
	}
	return false
}

// PendingQuestions returns unanswered questions in queue order.
func (s *Session) PendingQuestions() []Question {
	pending := make([]Question, 0, MaxQueuedQuestions)
	for i := range s.Questions {
		if !s.IsAnswered(s.Questions[i].ID) {
			pending = append(pending, s.Questions[i])
		}
	}
	return pending
}

// PendingCount returns the number of unanswered questions.
func (s *Session) PendingCount() int {
	count := 0
	for i := range s.Questions {
		if !s.IsAnswered(s.Questions[i].ID) {
			count++
		}
	}
	return count
}

// CurrentQuestion returns the first unanswered question, if any.
func (s *Session) CurrentQuestion() (*Question, bool) {
	for i := range s.Questions {
		if !s.IsAnswered(s.Questions[i].ID) {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// AreaCounts returns how many questions exist per requirement area.
func (s *Session) AreaCounts() map[Area]int {
	counts := make(map[Area]int, len(Areas))
	for i := range s.Questions {
		counts[s.Questions[i].Category]++
	}
	return counts
}

// AnsweredPairs returns answered (question, answer) pairs in question order.
func (s *Session) AnsweredPairs() []QA {
	pairs := make([]QA, 0, len(s.Answers))
	for i := range s.Questions {
		q := &s.Questions[i]
		for j := range s.Answers {
			if s.Answers[j].QuestionID == q.ID {
				pairs = append(pairs, QA{Question: *q, Answer: s.Answers[j]})
				break
			}
		}
	}
	return pairs
}

// QA pairs a question with its answer.
type QA struct {
	Question Question `json:"question"`
	Answer   Answer   `json:"answer"`
}

// Touch updates the session's UpdatedAt timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
