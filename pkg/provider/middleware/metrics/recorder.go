// Package metrics provides metrics recording and middleware for LLM operations.
package metrics

import "time"

// Recorder abstracts metrics collection so tests can substitute a no-op or
// capturing implementation for the Prometheus recorder.
type Recorder interface {
	// ObserveRequest records a completed LLM request.
	ObserveRequest(model, sessionID, operation string,
		promptTokens, completionTokens int,
		success bool, errorType string, duration time.Duration)

	// IncThrottle increments the throttle counter for rate limiting events.
	IncThrottle(model, reason string)

	// ObserveQueueWait records time spent waiting for rate limit availability.
	ObserveQueueWait(model string, duration time.Duration)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

// NewNopRecorder creates a recorder that discards everything.
func NewNopRecorder() *NopRecorder { return &NopRecorder{} }

// ObserveRequest is a no-op.
func (NopRecorder) ObserveRequest(_, _, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

// IncThrottle is a no-op.
func (NopRecorder) IncThrottle(_, _ string) {}

// ObserveQueueWait is a no-op.
func (NopRecorder) ObserveQueueWait(_ string, _ time.Duration) {}
