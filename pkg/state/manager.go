package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"interviewer/pkg/logx"
	"interviewer/pkg/session"
)

const maxTransitionHistory = 100

// Transition records one executed state machine edge.
type Transition struct {
	SessionID string         `json:"session_id"`
	FromState session.State  `json:"from_state"`
	ToState   session.State  `json:"to_state"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Checkpoint is the durable "about to perform risky step X" marker stored in
// the session's StateContext before an externally-dependent call.
type Checkpoint struct {
	Label     string         `json:"label"`
	State     session.State  `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Manager owns transition execution and checkpointing for sessions. The
// session itself is exclusively checked out by the caller for the duration of
// a turn; the manager's mutex only guards its own transition history.
type Manager struct {
	mu          sync.Mutex
	transitions []Transition
	logger      *logx.Logger
}

// NewManager creates a conversation state manager.
func NewManager() *Manager {
	return &Manager{
		logger: logx.NewLogger("state"),
	}
}

// TransitionTo validates the requested edge and, if legal, updates the
// session's state and LastStateChange. On an illegal edge it returns
// ErrInvalidTransition without mutating the session.
func (m *Manager) TransitionTo(sess *session.Session, target session.State, metadata map[string]any) error {
	from := sess.ConversationState

	if !IsValidTransition(from, target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, target)
	}

	now := time.Now().UTC()
	sess.ConversationState = target
	sess.LastStateChange = now
	sess.Touch()

	m.record(Transition{
		SessionID: sess.ID,
		FromState: from,
		ToState:   target,
		Timestamp: now,
		Metadata:  metadata,
	})

	m.logger.Info("🔄 Session %s transition: %s → %s", sess.ID, from, target)
	return nil
}

// CreateCheckpoint persists a checkpoint label plus resumption context into
// the session's StateContext without changing state. Call immediately before
// a risky externally-dependent step.
func (m *Manager) CreateCheckpoint(sess *session.Session, label string, detail map[string]any) error {
	cp := Checkpoint{
		Label:     label,
		State:     sess.ConversationState,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}

	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint %q: %w", label, err)
	}

	sess.StateContext = string(raw)
	sess.Touch()
	m.logger.Debug("Checkpoint %q created for session %s in state %s", label, sess.ID, sess.ConversationState)
	return nil
}

// LoadCheckpoint decodes the session's StateContext. Returns false when no
// checkpoint is stored or the stored context cannot be decoded.
func (m *Manager) LoadCheckpoint(sess *session.Session) (Checkpoint, bool) {
	if sess.StateContext == "" {
		return Checkpoint{}, false
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(sess.StateContext), &cp); err != nil {
		m.logger.Warn("Undecodable checkpoint on session %s: %v", sess.ID, err)
		return Checkpoint{}, false
	}
	return cp, true
}

// ClearCheckpoint removes the stored checkpoint after the risky step landed.
func (m *Manager) ClearCheckpoint(sess *session.Session) {
	sess.StateContext = ""
	sess.Touch()
}

func (m *Manager) record(t Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = append(m.transitions, t)
	if len(m.transitions) > maxTransitionHistory {
		m.transitions = m.transitions[len(m.transitions)-maxTransitionHistory:]
	}
}

// Transitions returns a copy of the recorded transition history.
func (m *Manager) Transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition{}, m.transitions...)
}
