// Package metrics provides services for querying and aggregating LLM usage
// data recorded by the provider middleware.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionSpend aggregates LLM usage for one interview session.
type SessionSpend struct {
	SessionID        string `json:"session_id"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Requests         int64  `json:"requests"`
	Errors           int64  `json:"errors"`
}

// QueryService queries a Prometheus server for per-session LLM spend.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a query service against a Prometheus server URL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

func (q *QueryService) scalarQuery(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("prometheus query %q failed: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}

// GetSessionSpend aggregates token and request counts for one session across
// all models and operations.
func (q *QueryService) GetSessionSpend(ctx context.Context, sessionID string) (*SessionSpend, error) {
	spend := &SessionSpend{SessionID: sessionID}
	var err error

	spend.PromptTokens, err = q.scalarQuery(ctx,
		fmt.Sprintf(`sum(llm_tokens_total{session_id=%q, type="prompt"})`, sessionID))
	if err != nil {
		return nil, err
	}

	spend.CompletionTokens, err = q.scalarQuery(ctx,
		fmt.Sprintf(`sum(llm_tokens_total{session_id=%q, type="completion"})`, sessionID))
	if err != nil {
		return nil, err
	}
	spend.TotalTokens = spend.PromptTokens + spend.CompletionTokens

	spend.Requests, err = q.scalarQuery(ctx,
		fmt.Sprintf(`sum(llm_requests_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, err
	}

	spend.Errors, err = q.scalarQuery(ctx,
		fmt.Sprintf(`sum(llm_requests_total{session_id=%q, status="error"})`, sessionID))
	if err != nil {
		return nil, err
	}

	return spend, nil
}

// GetSessionSpendByOperation breaks session spend down by operation
// (question_generation, answer_analysis, completeness, requirements).
func (q *QueryService) GetSessionSpendByOperation(ctx context.Context, sessionID string) (map[string]*SessionSpend, error) {
	opsQuery := fmt.Sprintf(`group by (operation) (llm_tokens_total{session_id=%q})`, sessionID)
	opsResult, _, err := q.queryAPI.Query(ctx, opsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}

	var operations []string
	if vector, ok := opsResult.(model.Vector); ok {
		for _, sample := range vector {
			if op, ok := sample.Metric["operation"]; ok {
				operations = append(operations, string(op))
			}
		}
	}

	result := make(map[string]*SessionSpend, len(operations))
	for _, op := range operations {
		spend := &SessionSpend{SessionID: sessionID}

		spend.PromptTokens, err = q.scalarQuery(ctx,
			fmt.Sprintf(`sum(llm_tokens_total{session_id=%q, operation=%q, type="prompt"})`, sessionID, op))
		if err != nil {
			return nil, err
		}
		spend.CompletionTokens, err = q.scalarQuery(ctx,
			fmt.Sprintf(`sum(llm_tokens_total{session_id=%q, operation=%q, type="completion"})`, sessionID, op))
		if err != nil {
			return nil, err
		}
		spend.TotalTokens = spend.PromptTokens + spend.CompletionTokens

		spend.Requests, err = q.scalarQuery(ctx,
			fmt.Sprintf(`sum(llm_requests_total{session_id=%q, operation=%q})`, sessionID, op))
		if err != nil {
			return nil, err
		}

		result[op] = spend
	}
	return result, nil
}
