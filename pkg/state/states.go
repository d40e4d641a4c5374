// Package state implements the conversation state machine: transition
// validation and execution, checkpointing before risky provider calls, and
// the pure state-to-recovery-action mapping used after interruptions.
package state

import (
	"errors"

	"interviewer/pkg/session"
)

// ErrInvalidTransition is returned when a requested state machine edge does
// not exist. The session is never mutated on a failed transition.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines the conversation state machine. Every state may
// additionally fail; FAILED edges are handled in IsValidTransition so the
// table only lists nominal flow.
//
//nolint:gochecknoglobals // Intentional package-level constant for state machine definition
var validTransitions = map[session.State][]session.State{
	session.StateInitializing: {
		session.StateGeneratingQuestions,
	},
	session.StateGeneratingQuestions: {
		session.StateWaitingForInput,
	},
	session.StateWaitingForInput: {
		session.StateProcessingAnswer,
		session.StateAssessingCompleteness,
	},
	session.StateProcessingAnswer: {
		session.StateGeneratingFollowups,
		session.StateAssessingCompleteness,
		session.StateWaitingForInput,
	},
	session.StateGeneratingFollowups: {
		session.StateWaitingForInput,
	},
	session.StateAssessingCompleteness: {
		session.StateGeneratingRequirements,
		session.StateWaitingForInput,
	},
	session.StateGeneratingRequirements: {
		session.StateCompleted,
	},
	session.StateCompleted: {
		// Terminal for nominal flow. RetryFinalization re-enters
		// GENERATING_REQUIREMENTS when completion produced no requirements.
		session.StateGeneratingRequirements,
	},
	session.StateFailed: {
		// Recovery may re-enter the interview or retry finalization.
		session.StateInitializing,
		session.StateWaitingForInput,
		session.StateGeneratingRequirements,
	},
}

// IsValidTransition reports whether from → to is a legal edge.
func IsValidTransition(from, to session.State) bool {
	// Any state may transition to FAILED on unrecoverable error.
	if to == session.StateFailed {
		return session.IsValidState(from)
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}

// ValidNextStates returns the nominal next states for a given state.
func ValidNextStates(from session.State) []session.State {
	return validTransitions[from]
}
