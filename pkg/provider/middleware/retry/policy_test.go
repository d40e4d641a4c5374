package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"interviewer/pkg/provider/llmerrors"
	"interviewer/pkg/provider/middleware/circuit"
)

// =============================================================================
// ShouldRetry classifier tests
// =============================================================================

func TestShouldRetry_NilError(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("Expected false for nil error")
	}
}

func TestShouldRetry_ContextCanceled(t *testing.T) {
	if ShouldRetry(context.Canceled) {
		t.Error("Expected false for context.Canceled")
	}
	if ShouldRetry(fmt.Errorf("operation failed: %w", context.Canceled)) {
		t.Error("Expected false for wrapped context.Canceled")
	}
}

func TestShouldRetry_DeadlineExceeded(t *testing.T) {
	// DeadlineExceeded SHOULD be retryable: per-request timeouts wrap
	// DeadlineExceeded while the parent context stays valid.
	if !ShouldRetry(context.DeadlineExceeded) {
		t.Error("Expected true for context.DeadlineExceeded")
	}
	if !ShouldRetry(fmt.Errorf("http call failed: %w", context.DeadlineExceeded)) {
		t.Error("Expected true for wrapped DeadlineExceeded")
	}
}

func TestShouldRetry_CircuitError(t *testing.T) {
	err := &circuit.Error{State: circuit.Open}
	if ShouldRetry(err) {
		t.Error("Expected false for circuit breaker error")
	}
}

func TestShouldRetry_ClassifiedErrors(t *testing.T) {
	cases := []struct {
		errType llmerrors.ErrorType
		want    bool
	}{
		{llmerrors.ErrorTypeRateLimit, true},
		{llmerrors.ErrorTypeTransient, true},
		{llmerrors.ErrorTypeEmptyResponse, true},
		{llmerrors.ErrorTypeMalformedResponse, true},
		{llmerrors.ErrorTypeAuth, false},
		{llmerrors.ErrorTypeBadPrompt, false},
		{llmerrors.ErrorTypeServiceUnavailable, false},
	}
	for _, tc := range cases {
		err := llmerrors.NewError(tc.errType, "test")
		if got := ShouldRetry(err); got != tc.want {
			t.Errorf("%s: ShouldRetry = %v, want %v", tc.errType, got, tc.want)
		}
	}
}

func TestShouldRetry_StringPatterns(t *testing.T) {
	if !ShouldRetry(errors.New("connection reset by peer")) {
		t.Error("Expected true for connection error")
	}
	if !ShouldRetry(errors.New("HTTP 503 service unavailable")) {
		t.Error("Expected true for 503")
	}
	if ShouldRetry(errors.New("HTTP 404 not found")) {
		t.Error("Expected false for 404")
	}
	if ShouldRetry(errors.New("something inexplicable")) {
		t.Error("Expected false for unknown error")
	}
}

// =============================================================================
// Policy tests
// =============================================================================

func TestCalculateDelay_FirstAttemptIsZero(t *testing.T) {
	p := NewPolicy(DefaultConfig, nil)
	if d := p.CalculateDelay(1); d != 0 {
		t.Errorf("Expected zero delay on first attempt, got %v", d)
	}
}

func TestCalculateDelay_ExponentialBackoffCapped(t *testing.T) {
	config := Config{
		MaxAttempts:   10,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
	p := NewPolicy(config, nil)

	if d := p.CalculateDelay(2); d != 100*time.Millisecond {
		t.Errorf("Attempt 2: expected 100ms, got %v", d)
	}
	if d := p.CalculateDelay(3); d != 200*time.Millisecond {
		t.Errorf("Attempt 3: expected 200ms, got %v", d)
	}
	if d := p.CalculateDelay(8); d != 1*time.Second {
		t.Errorf("Attempt 8: expected cap of 1s, got %v", d)
	}
}

func TestNewPolicy_NilClassifierUsesDefault(t *testing.T) {
	p := NewPolicy(DefaultConfig, nil)
	if p.Classifier == nil {
		t.Fatal("Expected default classifier")
	}
	if p.ShouldRetry(context.Canceled) {
		t.Error("Default classifier should not retry cancellation")
	}
}
