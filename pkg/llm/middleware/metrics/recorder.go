// Package metrics records latency, outcome and token usage for llm calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives one observation per generation call.
type Recorder interface {
	ObserveRequest(
		model, workflowID, agentID, step string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder discards observations.
type NoopRecorder struct{}

// Nop returns a recorder that discards everything.
func Nop() Recorder { return NoopRecorder{} }

// ObserveRequest does nothing.
func (NoopRecorder) ObserveRequest(_, _, _, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

// PrometheusRecorder exports llm observations as Prometheus series.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// Metric names shared with the usage query service.
const (
	RequestsMetric = "legalflow_llm_requests_total"
	TokensMetric   = "legalflow_llm_tokens_total"
	DurationMetric = "legalflow_llm_request_duration_seconds"
)

// NewPrometheusRecorder registers the llm series on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{Name: RequestsMetric, Help: "LLM requests by model, workflow, agent, step and status"},
			[]string{"model", "workflow_id", "agent_id", "step", "status", "error_type"},
		),
		tokensTotal: f.NewCounterVec(
			prometheus.CounterOpts{Name: TokensMetric, Help: "Tokens consumed by LLM requests"},
			[]string{"model", "workflow_id", "agent_id", "step", "type"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: DurationMetric, Help: "LLM request latency in seconds", Buckets: prometheus.DefBuckets},
			[]string{"model", "agent_id", "step"},
		),
	}
}

// ObserveRequest implements Recorder.
func (p *PrometheusRecorder) ObserveRequest(
	model, workflowID, agentID, step string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, workflowID, agentID, step, status, errorType).Inc()
	if success {
		p.tokensTotal.WithLabelValues(model, workflowID, agentID, step, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, workflowID, agentID, step, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(model, agentID, step).Observe(duration.Seconds())
}
