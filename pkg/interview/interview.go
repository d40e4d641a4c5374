// Package interview implements the interview engine: just-in-time question
// scheduling, answer analysis, completeness assessment, requirements
// synthesis, and crash recovery over pluggable Storage and Provider
// capabilities.
package interview

import (
	"context"
	"errors"

	"interviewer/pkg/session"
)

// MinAnswersForAssessment is the answered-question floor before completeness
// is ever evaluated.
const MinAnswersForAssessment = 8

// RecentContextPairs bounds how many answered Q/A pairs accompany a prompt.
const RecentContextPairs = 5

// Sentinel errors surfaced by the conductor and pipeline.
var (
	// ErrSessionComplete rejects mutation of a completed session.
	ErrSessionComplete = errors.New("session is already complete")
	// ErrDuplicateAnswer rejects a second answer to the same question.
	ErrDuplicateAnswer = errors.New("question already has an answer")
	// ErrUnknownQuestion rejects an answer to a question id the session
	// does not contain.
	ErrUnknownQuestion = errors.New("question not found in session")
)

// Storage is the persistence capability the engine consumes.
type Storage interface {
	SaveSession(ctx context.Context, sess *session.Session) (string, error)
	LoadSession(ctx context.Context, id string) (*session.Session, error)
}

// UsageTracker is the optional quota capability. A nil tracker disables
// quota enforcement.
type UsageTracker interface {
	CheckQuotaAvailable(ctx context.Context, userID string) error
	RecordGeneration(ctx context.Context, userID string) error
}
