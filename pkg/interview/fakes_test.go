package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"interviewer/pkg/session"
	"interviewer/pkg/usage"
)

// memStorage is an in-memory Storage that deep-copies sessions on both save
// and load, like a real persistence boundary.
type memStorage struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	failSave bool
	saves    int
}

func newMemStorage() *memStorage {
	return &memStorage{sessions: make(map[string]*session.Session)}
}

func copySession(sess *session.Session) *session.Session {
	data, err := json.Marshal(sess)
	if err != nil {
		panic(err)
	}
	out := &session.Session{}
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (m *memStorage) SaveSession(_ context.Context, sess *session.Session) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return "", fmt.Errorf("storage write rejected")
	}
	m.saves++
	m.sessions[sess.ID] = copySession(sess)
	return sess.ID, nil
}

func (m *memStorage) LoadSession(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return copySession(sess), nil
}

// fakeTracker enforces a fixed remaining-generation budget.
type fakeTracker struct {
	mu        sync.Mutex
	remaining int
	recorded  int
}

func (f *fakeTracker) CheckQuotaAvailable(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining <= 0 {
		return fmt.Errorf("%w: budget spent", usage.ErrQuotaExceeded)
	}
	return nil
}

func (f *fakeTracker) RecordGeneration(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining--
	f.recorded++
	return nil
}
