// Package timeout provides per-request timeout middleware for LLM clients.
package timeout

import (
	"context"
	"time"

	"interviewer/pkg/provider/llm"
)

// Middleware wraps an LLM client with a per-request timeout so a hung
// provider call cannot stall an interview turn indefinitely.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()

				return next.Complete(timeoutCtx, req)
			},
			func() string {
				return next.ModelName()
			},
		)
	}
}
