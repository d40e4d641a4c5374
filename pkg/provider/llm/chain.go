// Package llm provides middleware chaining for LLM clients.
package llm

import "context"

// Middleware wraps a Client with additional behavior. Middlewares are
// composed with Chain() into a processing pipeline.
type Middleware func(next Client) Client

// clientFunc adapts plain functions to the Client interface.
type clientFunc struct {
	complete  func(context.Context, CompletionRequest) (CompletionResponse, error)
	modelName func() string
}

func (f clientFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) ModelName() string {
	return f.modelName()
}

// WrapClient creates a Client from the provided function implementations.
// Helper for middleware implementations that need to wrap behavior.
func WrapClient(
	complete func(context.Context, CompletionRequest) (CompletionResponse, error),
	modelName func() string,
) Client {
	return clientFunc{complete: complete, modelName: modelName}
}

// Chain composes middlewares around a base Client. Earlier middlewares are
// outermost: Chain(client, mw1, mw2, mw3) yields the call stack
//
//	mw1 -> mw2 -> mw3 -> client
//
// so mw1 can modify the request or short-circuit before the others run.
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
