// Package openai provides the OpenAI client implementation using the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"interviewer/pkg/provider/llm"
	"interviewer/pkg/provider/llmerrors"
)

// OfficialClient implements llm.Client using the OpenAI Responses API.
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClient creates a raw OpenAI client; middleware is applied at a higher level.
func NewOfficialClient(apiKey, model string) llm.Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OfficialClient{
		client: client,
		model:  model,
	}
}

// Complete implements the llm.Client interface.
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	// The Responses API takes a single input string; roles are flattened
	// with textual markers.
	var sb strings.Builder
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			sb.WriteString("System: " + msg.Content + "\n\n")
		case llm.RoleAssistant:
			sb.WriteString("Assistant: " + msg.Content + "\n\n")
		default:
			sb.WriteString(msg.Content + "\n\n")
		}
	}

	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(sb.String()),
		},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received nil response from OpenAI API")
	}

	content := resp.OutputText()
	if content == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty output from OpenAI API")
	}

	return llm.CompletionResponse{
		Content:    content,
		StopReason: "end_turn",
	}, nil
}

// ModelName returns the model name for this client.
func (o *OfficialClient) ModelName() string {
	return o.model
}

func classifyError(err error) *llmerrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		errType := llmerrors.ClassifyHTTPStatus(apiErr.StatusCode)
		if errType != llmerrors.ErrorTypeUnknown {
			return llmerrors.NewErrorWithStatus(errType, apiErr.StatusCode, apiErr.Error())
		}
	}

	errStr := err.Error()
	for _, code := range []int{429, 401, 403, 400, 500, 502, 503} {
		if strings.Contains(errStr, strconv.Itoa(code)) {
			errType := llmerrors.ClassifyHTTPStatus(code)
			if errType != llmerrors.ErrorTypeUnknown {
				return llmerrors.NewErrorWithStatus(errType, code, errStr)
			}
		}
	}
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "EOF") {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network or connection error")
	}

	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, fmt.Sprintf("unclassified OpenAI API error: %v", err))
}
