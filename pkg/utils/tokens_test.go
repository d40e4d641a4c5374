package utils

import (
	"strings"
	"testing"
)

func TestCountTokens_NonEmpty(t *testing.T) {
	tc, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	count := tc.CountTokens("What is the primary goal of this project?")
	if count <= 0 {
		t.Errorf("Expected positive token count, got %d", count)
	}
	if tc.CountTokens("") != 0 {
		t.Error("Empty string should count zero tokens")
	}
}

func TestCountTokens_NilCounterFallsBack(t *testing.T) {
	var tc *TokenCounter
	text := strings.Repeat("abcd", 10)
	if got := tc.CountTokens(text); got != 10 {
		t.Errorf("Expected char-based fallback of 10, got %d", got)
	}
}

func TestValidateTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	if !tc.ValidateTokenLimit("short", 100) {
		t.Error("Short text should fit in 100 tokens")
	}
	long := strings.Repeat("requirements interview context ", 200)
	if tc.ValidateTokenLimit(long, 10) {
		t.Error("Long text should not fit in 10 tokens")
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	tc, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	short := "fits already"
	if got := tc.TruncateToTokenLimit(short, 100); got != short {
		t.Errorf("Text within limit must not change, got %q", got)
	}

	long := strings.Repeat("the sales team needs a dashboard ", 300)
	truncated := tc.TruncateToTokenLimit(long, 50)
	if len(truncated) >= len(long) {
		t.Error("Expected truncation for over-limit text")
	}
	if !strings.HasSuffix(truncated, "...") {
		t.Error("Truncated text should end with ellipsis")
	}
}

func TestCountTokensSimple(t *testing.T) {
	if CountTokensSimple("hello world") <= 0 {
		t.Error("Expected positive count from CountTokensSimple")
	}
}
