// Package ratelimit provides rate limiting for LLM clients.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"interviewer/pkg/provider/llm"
	"interviewer/pkg/utils"
)

const refillsPerMinute = 10

// Config defines rate limiting for one provider.
type Config struct {
	TokensPerMinute int `yaml:"tokens_per_minute"` // Rate limit in tokens per minute
	Burst           int `yaml:"burst"`             // Maximum bucket capacity
	MaxConcurrency  int `yaml:"max_concurrency"`   // Maximum concurrent requests
}

// Limiter defines the interface for rate limiting implementations.
type Limiter interface {
	// Acquire atomically acquires tokens and a concurrency slot, blocking
	// until both are available or the context is cancelled. The returned
	// release function must be called to return the concurrency slot.
	Acquire(ctx context.Context, tokens int) (release func(), err error)
}

// TokenEstimator estimates the number of tokens needed for a request.
type TokenEstimator interface {
	EstimatePrompt(req llm.CompletionRequest) int
}

// DefaultTokenEstimator estimates prompt tokens with tiktoken.
type DefaultTokenEstimator struct{}

// NewDefaultTokenEstimator creates the tiktoken-backed estimator.
func NewDefaultTokenEstimator() TokenEstimator {
	return &DefaultTokenEstimator{}
}

// EstimatePrompt counts prompt tokens across all request messages.
func (e *DefaultTokenEstimator) EstimatePrompt(req llm.CompletionRequest) int {
	var promptText string
	for i := range req.Messages {
		promptText += req.Messages[i].Content + "\n"
	}
	return utils.CountTokensSimple(promptText)
}

// TokenBucketLimiter combines a token bucket with a concurrency semaphore.
type TokenBucketLimiter struct {
	mu sync.Mutex

	provider string

	availableTokens int
	tokensPerRefill int
	maxCapacity     int
	lastRefill      time.Time

	activeRequests int
	maxConcurrency int
}

// NewTokenBucketLimiter creates a limiter for one provider.
func NewTokenBucketLimiter(provider string, config Config) *TokenBucketLimiter {
	capacity := config.Burst
	if capacity <= 0 {
		capacity = config.TokensPerMinute
	}
	return &TokenBucketLimiter{
		provider:        provider,
		availableTokens: capacity,
		tokensPerRefill: config.TokensPerMinute / refillsPerMinute,
		maxCapacity:     capacity,
		lastRefill:      time.Now(),
		activeRequests:  0,
		maxConcurrency:  config.MaxConcurrency,
	}
}

// Acquire blocks until tokens and a concurrency slot are available.
func (l *TokenBucketLimiter) Acquire(ctx context.Context, tokens int) (func(), error) {
	// Requests larger than the whole bucket would never succeed.
	if tokens > l.maxCapacity {
		return nil, fmt.Errorf("request of %d tokens exceeds %s bucket capacity %d", tokens, l.provider, l.maxCapacity)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.tryAcquire(tokens) {
			return l.release, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rate limit wait cancelled for %s: %w", l.provider, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *TokenBucketLimiter) tryAcquire(tokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()

	if l.maxConcurrency > 0 && l.activeRequests >= l.maxConcurrency {
		return false
	}
	if l.availableTokens < tokens {
		return false
	}

	l.availableTokens -= tokens
	l.activeRequests++
	return true
}

func (l *TokenBucketLimiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.activeRequests > 0 {
		l.activeRequests--
	}
}

// refillLocked adds tokens for elapsed refill intervals. Caller holds l.mu.
func (l *TokenBucketLimiter) refillLocked() {
	interval := time.Minute / refillsPerMinute
	elapsed := time.Since(l.lastRefill)
	if elapsed < interval {
		return
	}

	intervals := int(elapsed / interval)
	l.availableTokens += intervals * l.tokensPerRefill
	if l.availableTokens > l.maxCapacity {
		l.availableTokens = l.maxCapacity
	}
	l.lastRefill = l.lastRefill.Add(time.Duration(intervals) * interval)
}

// ProviderLimiterMap holds one limiter per provider vendor.
type ProviderLimiterMap struct {
	mu       sync.RWMutex
	limiters map[string]*TokenBucketLimiter
}

// NewProviderLimiterMap builds limiters from per-provider configs.
func NewProviderLimiterMap(configs map[string]Config) *ProviderLimiterMap {
	limiters := make(map[string]*TokenBucketLimiter, len(configs))
	for provider, config := range configs {
		limiters[provider] = NewTokenBucketLimiter(provider, config)
	}
	return &ProviderLimiterMap{limiters: limiters}
}

// GetLimiter returns the limiter for a provider vendor.
func (m *ProviderLimiterMap) GetLimiter(provider string) (Limiter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limiter, ok := m.limiters[provider]
	if !ok {
		return nil, fmt.Errorf("no rate limiter configured for provider %s", provider)
	}
	return limiter, nil
}
