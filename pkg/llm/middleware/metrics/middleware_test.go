package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/llm"
	"legalflow/pkg/llm/llmerrors"
)

type captureRecorder struct {
	model, workflow, step string
	prompt, completion    int
	success               bool
	errType               string
}

func (c *captureRecorder) ObserveRequest(model, workflowID, _, step string, p, comp int, ok bool, et string, _ time.Duration) {
	c.model, c.workflow, c.step = model, workflowID, step
	c.prompt, c.completion, c.success, c.errType = p, comp, ok, et
}

func TestMiddlewareRecordsCallInfo(t *testing.T) {
	rec := &captureRecorder{}
	c := llm.Chain(llm.NewMockClient("a reply"), Middleware(rec, nil))

	ctx := llm.WithCallInfo(context.Background(), llm.CallInfo{WorkflowID: "wf-1", AgentID: "research-1", Step: "analysis"})
	resp, err := c.Generate(ctx, llm.NewRequest("question"))
	require.NoError(t, err)

	assert.Equal(t, "mock-model", rec.model)
	assert.Equal(t, "wf-1", rec.workflow)
	assert.Equal(t, "analysis", rec.step)
	assert.True(t, rec.success)
	assert.Equal(t, resp.Usage.PromptTokens, rec.prompt)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestMiddlewareRecordsErrorType(t *testing.T) {
	rec := &captureRecorder{}
	base := llm.NewMockClient().SetError(llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down"))
	c := llm.Chain(base, Middleware(rec, nil))

	_, err := c.Generate(context.Background(), llm.NewRequest("q"))
	require.Error(t, err)
	assert.False(t, rec.success)
	assert.Equal(t, "rate_limit", rec.errType)
}

func TestEstimateUsageFillsGaps(t *testing.T) {
	u := EstimateUsage(llm.NewRequest("hello there"), llm.Response{Content: "general kenobi"})
	assert.Positive(t, u.PromptTokens)
	assert.Positive(t, u.CompletionTokens)

	u = EstimateUsage(llm.NewRequest("x"), llm.Response{Usage: llm.Usage{PromptTokens: 7, CompletionTokens: 3}})
	assert.Equal(t, 10, u.TotalTokens)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	rec.ObserveRequest("m", "wf", "a", "s", 10, 5, true, "", time.Millisecond)
	rec.ObserveRequest("m", "wf", "a", "s", 0, 0, false, "auth", time.Millisecond)

	assert.InDelta(t, 2.0, sumCounter(t, reg, RequestsMetric), 0.001)
	assert.InDelta(t, 15.0, sumCounter(t, reg, TokensMetric), 0.001)
}

func sumCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
