package session

import "sync"

// LockArena hands out one mutex per session id, created lazily and never
// removed for the lifetime of the arena. Callers serialize turns and recovery
// on the same session through the returned mutex; the arena's own index lock
// is held only long enough to look up or create an entry, keeping it off the
// hot path of an acquired session lock.
type LockArena struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockArena creates an empty lock arena.
func NewLockArena() *LockArena {
	return &LockArena{
		locks: make(map[string]*sync.Mutex),
	}
}

// Get returns the mutex for the given session id, creating it on first use.
func (a *LockArena) Get(sessionID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[sessionID] = lock
	}
	return lock
}

// Len returns the number of session locks currently held by the arena.
func (a *LockArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}
