// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides token counting for prompt budgeting and metrics.
// Anthropic and Gemini tokenization is approximated with the GPT-4 encoding,
// which is close enough for budgeting and rate estimation.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // Shared codec avoids re-reading encoding tables per call
var (
	sharedCounter     *TokenCounter
	sharedCounterOnce sync.Once
)

// NewTokenCounter creates a token counter using the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text. Falls back to a
// character-based estimate (4 chars per token) when the codec is unavailable.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountTokensSimple counts tokens without requiring a TokenCounter instance.
func CountTokensSimple(text string) int {
	sharedCounterOnce.Do(func() {
		counter, err := NewTokenCounter()
		if err == nil {
			sharedCounter = counter
		}
	})
	if sharedCounter == nil {
		return len(text) / 4
	}
	return sharedCounter.CountTokens(text)
}

// TruncateSimple truncates text using the shared counter.
func TruncateSimple(text string, limit int) string {
	CountTokensSimple("") // forces shared counter initialization
	return sharedCounter.TruncateToTokenLimit(text, limit)
}

// ValidateTokenLimit reports whether text fits within the token limit.
func (tc *TokenCounter) ValidateTokenLimit(text string, limit int) bool {
	return tc.CountTokens(text) <= limit
}

// TruncateToTokenLimit truncates text to roughly fit within the token limit.
// Truncation is by characters, not exact token boundaries.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	currentTokens := tc.CountTokens(text)
	if currentTokens <= limit {
		return text
	}

	ratio := float64(limit) / float64(currentTokens)
	charLimit := int(float64(len(text)) * ratio * 0.9) // safety margin for boundary drift

	if charLimit >= len(text) {
		return text
	}
	return text[:charLimit] + "..."
}
