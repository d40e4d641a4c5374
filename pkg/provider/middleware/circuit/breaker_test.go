package circuit

import (
	"testing"
	"time"
)

// testBreaker returns a breaker with a controllable clock.
func testBreaker() (*breaker, *time.Time) {
	clock := time.Unix(1000, 0)
	b := newBreaker(Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	}, func() time.Time { return clock })
	return b, &clock
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	b, _ := testBreaker()

	b.Record(false)
	b.Record(false)
	if b.GetState() != Closed {
		t.Fatalf("Expected CLOSED below threshold, got %s", b.GetState())
	}

	b.Record(false)
	if b.GetState() != Open {
		t.Fatalf("Expected OPEN at threshold, got %s", b.GetState())
	}
	if b.Allow() {
		t.Error("Open breaker must reject requests before the timeout")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker()

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)

	if b.GetState() != Closed {
		t.Errorf("Interleaved successes should keep the circuit CLOSED, got %s", b.GetState())
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b, clock := testBreaker()
	for range 3 {
		b.Record(false)
	}

	*clock = clock.Add(time.Minute)
	if !b.Allow() {
		t.Fatal("Breaker should allow a probe after the timeout")
	}
	if b.GetState() != HalfOpen {
		t.Errorf("Expected HALF_OPEN after probe, got %s", b.GetState())
	}
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b, clock := testBreaker()
	for range 3 {
		b.Record(false)
	}
	*clock = clock.Add(time.Minute)
	b.Allow()

	b.Record(true)
	if b.GetState() != HalfOpen {
		t.Fatalf("One success should not close yet, got %s", b.GetState())
	}
	b.Record(true)
	if b.GetState() != Closed {
		t.Errorf("Expected CLOSED after success threshold, got %s", b.GetState())
	}
}

func TestBreaker_FailureInHalfOpenReopens(t *testing.T) {
	b, clock := testBreaker()
	for range 3 {
		b.Record(false)
	}
	*clock = clock.Add(time.Minute)
	b.Allow()

	b.Record(false)
	if b.GetState() != Open {
		t.Errorf("Failure in HALF_OPEN must reopen, got %s", b.GetState())
	}
	if b.Allow() {
		t.Error("Reopened breaker must reject requests")
	}
}

func TestBreaker_ResetClearsState(t *testing.T) {
	b, _ := testBreaker()
	for range 3 {
		b.Record(false)
	}

	b.Reset()
	if b.GetState() != Closed {
		t.Errorf("Expected CLOSED after reset, got %s", b.GetState())
	}
	if !b.Allow() {
		t.Error("Reset breaker must allow requests")
	}
}
