// Package circuit trips calls to a failing LLM vendor so the engine fails
// fast instead of queueing on a dead upstream.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State is the breaker's position. Closed passes calls through, Open rejects
// them, HalfOpen lets probes through to test whether the vendor recovered.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes when the breaker trips and how it recovers.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"` // consecutive failures that trip the breaker
	SuccessThreshold int           `yaml:"success_threshold"` // half-open successes that close it again
	Timeout          time.Duration `yaml:"timeout"`           // open duration before probing
}

// DefaultConfig suits interactive use against the hosted LLM vendors.
//
//nolint:gochecknoglobals // shared default config
var DefaultConfig = Config{
	FailureThreshold: 5,
	SuccessThreshold: 3,
	Timeout:          30 * time.Second,
}

// Error is returned for calls rejected without reaching the vendor.
type Error struct {
	State State
}

func (e *Error) Error() string {
	return fmt.Sprintf("circuit breaker is %s", e.State)
}

// Breaker gates requests to one vendor.
type Breaker interface {
	// Allow reports whether a request may proceed right now.
	Allow() bool
	// Record feeds the outcome of an allowed request back in.
	Record(success bool)
	// GetState returns the current position.
	GetState() State
	// Reset forces the breaker closed.
	Reset()
}

type breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New creates a closed breaker.
func New(cfg Config) Breaker {
	return newBreaker(cfg, time.Now)
}

func newBreaker(cfg Config, now func() time.Time) *breaker {
	return &breaker{cfg: cfg, now: now, state: Closed}
}

func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Timeout {
		b.state = HalfOpen
		b.successes = 0
	}
	return b.state != Open
}

func (b *breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case success && b.state == HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.close()
		}
	case success:
		b.failures = 0
	case b.state == HalfOpen:
		// A probe failed; back to waiting out the timeout.
		b.trip()
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.close()
}

// trip and close assume the caller holds the lock.
func (b *breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

func (b *breaker) close() {
	b.state = Closed
	b.failures = 0
	b.successes = 0
}
