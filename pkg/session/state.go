package session

// State is the conversation lifecycle state of a session. The transition
// rules live in the state package; the type is shared here so every layer
// (storage, provider, orchestration) can reference it without import cycles.
type State string

// Conversation states, INITIALIZING through the terminal COMPLETED/FAILED.
const (
	StateInitializing           State = "INITIALIZING"
	StateGeneratingQuestions    State = "GENERATING_QUESTIONS"
	StateWaitingForInput        State = "WAITING_FOR_INPUT"
	StateProcessingAnswer       State = "PROCESSING_ANSWER"
	StateGeneratingFollowups    State = "GENERATING_FOLLOWUPS"
	StateAssessingCompleteness  State = "ASSESSING_COMPLETENESS"
	StateGeneratingRequirements State = "GENERATING_REQUIREMENTS"
	StateCompleted              State = "COMPLETED"
	StateFailed                 State = "FAILED"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether the state has no outgoing work left.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// AllStates lists every conversation state.
func AllStates() []State {
	return []State{
		StateInitializing,
		StateGeneratingQuestions,
		StateWaitingForInput,
		StateProcessingAnswer,
		StateGeneratingFollowups,
		StateAssessingCompleteness,
		StateGeneratingRequirements,
		StateCompleted,
		StateFailed,
	}
}

// IsValidState reports whether the string names a known conversation state.
func IsValidState(s State) bool {
	for _, state := range AllStates() {
		if state == s {
			return true
		}
	}
	return false
}
