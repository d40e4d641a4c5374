// Package ratelimit provides rate limiting middleware for LLM clients.
package ratelimit

import (
	"context"
	"time"

	"interviewer/pkg/provider/llm"
	"interviewer/pkg/provider/middleware/metrics"
)

// Middleware wraps an LLM client with token-bucket rate limiting. Token usage
// is estimated up front (prompt + max output) and acquired before the request
// runs; throttle events and queue wait time are recorded.
func Middleware(limiter Limiter, estimator TokenEstimator, recorder metrics.Recorder) llm.Middleware {
	if estimator == nil {
		estimator = NewDefaultTokenEstimator()
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.ModelName()

				promptTokens := estimator.EstimatePrompt(req)
				totalTokens := promptTokens + req.MaxTokens

				waitStart := time.Now()
				release, err := limiter.Acquire(ctx, totalTokens)
				if err != nil {
					recorder.IncThrottle(model, "rate_limit")
					return llm.CompletionResponse{}, err //nolint:wrapcheck // Middleware should pass through errors unchanged
				}
				defer release()
				recorder.ObserveQueueWait(model, time.Since(waitStart))

				return next.Complete(ctx, req)
			},
			func() string {
				return next.ModelName()
			},
		)
	}
}
