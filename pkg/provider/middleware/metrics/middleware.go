package metrics

import (
	"context"
	"time"

	"interviewer/pkg/provider/llm"
	"interviewer/pkg/provider/llmerrors"
	"interviewer/pkg/utils"
)

type callInfoKey struct{}

// CallInfo labels one provider call for metrics attribution.
type CallInfo struct {
	SessionID string
	Operation string // question_generation, answer_analysis, completeness, requirements
}

// WithCallInfo attaches session/operation labels to the context so the
// metrics middleware can attribute the request.
func WithCallInfo(ctx context.Context, sessionID, operation string) context.Context {
	return context.WithValue(ctx, callInfoKey{}, CallInfo{SessionID: sessionID, Operation: operation})
}

// CallInfoFrom extracts call labels from the context.
func CallInfoFrom(ctx context.Context) CallInfo {
	if info, ok := ctx.Value(callInfoKey{}).(CallInfo); ok {
		return info
	}
	return CallInfo{SessionID: "unknown", Operation: "unknown"}
}

// UsageExtractor extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor counts tokens with the tiktoken-backed counter.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	var promptText string
	for i := range req.Messages {
		promptText += req.Messages[i].Content + "\n"
	}
	return utils.CountTokensSimple(promptText), utils.CountTokensSimple(resp.Content)
}

// Middleware records request latency, token usage, and success/failure rates
// for every LLM call passing through it.
func Middleware(recorder Recorder, usageExtractor UsageExtractor) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.ModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}

				errorType := ""
				if err != nil {
					errorType = llmerrors.TypeOf(err).String()
				}

				info := CallInfoFrom(ctx)
				recorder.ObserveRequest(
					model, info.SessionID, info.Operation,
					promptTokens, completionTokens,
					err == nil, errorType, duration,
				)

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			func() string {
				return next.ModelName()
			},
		)
	}
}
