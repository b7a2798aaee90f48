package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	llmmetrics "legalflow/pkg/llm/middleware/metrics"
	"legalflow/pkg/logx"
)

// TokenUsage is a prompt/completion token pair.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func (u *TokenUsage) add(kind string, n int64) {
	switch kind {
	case "prompt":
		u.PromptTokens += n
	case "completion":
		u.CompletionTokens += n
	default:
		return
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

// WorkflowUsage is the token usage of one workflow, overall and broken down by model and agent.
type WorkflowUsage struct {
	WorkflowID string                `json:"workflow_id"`
	Total      TokenUsage            `json:"total"`
	ByModel    map[string]TokenUsage `json:"by_model"`
	ByAgent    map[string]TokenUsage `json:"by_agent"`
}

// Models returns the model names in the breakdown, sorted.
func (w *WorkflowUsage) Models() []string {
	out := make([]string, 0, len(w.ByModel))
	for m := range w.ByModel {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// QueryService reads llm token usage back out of a Prometheus server.
type QueryService struct {
	queryAPI v1.API
	now      func() time.Time
	logger   *logx.Logger
}

// NewQueryService creates a query service for the Prometheus server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client), now: time.Now, logger: logx.NewLogger("usage")}, nil
}

// WorkflowUsage aggregates token usage for workflowID across every agent and model.
func (q *QueryService) WorkflowUsage(ctx context.Context, workflowID string) (*WorkflowUsage, error) {
	query := fmt.Sprintf(`sum by (model, agent_id, type) (%s{workflow_id=%q})`, llmmetrics.TokensMetric, workflowID)
	result, warnings, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, fmt.Errorf("failed to query token usage for workflow %s: %w", workflowID, err)
	}
	for _, w := range warnings {
		q.logger.Warn("Prometheus warning for workflow %s usage: %s", workflowID, w)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected %T result for workflow %s token usage", result, workflowID)
	}
	usage := &WorkflowUsage{
		WorkflowID: workflowID,
		ByModel:    make(map[string]TokenUsage),
		ByAgent:    make(map[string]TokenUsage),
	}
	for _, sample := range vector {
		kind := string(sample.Metric["type"])
		n := int64(sample.Value)
		usage.Total.add(kind, n)

		m := usage.ByModel[string(sample.Metric["model"])]
		m.add(kind, n)
		usage.ByModel[string(sample.Metric["model"])] = m

		a := usage.ByAgent[string(sample.Metric["agent_id"])]
		a.add(kind, n)
		usage.ByAgent[string(sample.Metric["agent_id"])] = a
	}
	return usage, nil
}
