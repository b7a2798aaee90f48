// Package metrics holds the Prometheus series for agents, workflows and the retrieval engine,
// and a query service that reads token usage back out of a Prometheus server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Series names.
const (
	AgentDurationMetric    = "legalflow_agent_processing_seconds"
	AgentProcessedMetric   = "legalflow_agent_processed_total"
	AgentFailedMetric      = "legalflow_agent_failed_total"
	AgentBusyMetric        = "legalflow_agent_busy_rejections_total"
	AIFallbacksMetric      = "legalflow_ai_fallbacks_total"
	StageDurationMetric    = "legalflow_workflow_stage_seconds"
	WorkflowsMetric        = "legalflow_workflows_total"
	RetrievalQueriesMetric = "legalflow_retrieval_queries_total"
	RetrievalResultsMetric = "legalflow_retrieval_results"
	RetrievalIngestMetric  = "legalflow_retrieval_ingested_total"
	RetrievalDocsMetric    = "legalflow_retrieval_documents"
)

// Set is the full collection of domain series. A nil *Set is valid and records nothing.
type Set struct {
	agentDuration    *prometheus.HistogramVec
	agentProcessed   *prometheus.CounterVec
	agentFailed      *prometheus.CounterVec
	agentBusy        *prometheus.CounterVec
	aiFallbacks      *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	workflows        *prometheus.CounterVec
	retrievalQueries *prometheus.CounterVec
	retrievalResults prometheus.Histogram
	retrievalIngest  *prometheus.CounterVec
	retrievalDocs    prometheus.Gauge
}

// NewSet registers every series on reg.
func NewSet(reg prometheus.Registerer) *Set {
	f := promauto.With(reg)
	return &Set{
		agentDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    AgentDurationMetric,
			Help:    "Agent task duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"agent", "type"}),
		agentProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: AgentProcessedMetric,
			Help: "Cases processed successfully per agent",
		}, []string{"agent", "type"}),
		agentFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: AgentFailedMetric,
			Help: "Agent tasks that returned an error",
		}, []string{"agent", "type"}),
		agentBusy: f.NewCounterVec(prometheus.CounterOpts{
			Name: AgentBusyMetric,
			Help: "Calls rejected because the agent already had a task in flight",
		}, []string{"agent"}),
		aiFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: AIFallbacksMetric,
			Help: "Structured model replies that could not be parsed and fell back to defaults",
		}, []string{"agent", "step"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    StageDurationMetric,
			Help:    "Workflow stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage", "outcome"}),
		workflows: f.NewCounterVec(prometheus.CounterOpts{
			Name: WorkflowsMetric,
			Help: "Workflows by terminal outcome",
		}, []string{"outcome"}),
		retrievalQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: RetrievalQueriesMetric,
			Help: "Retrieval queries by outcome",
		}, []string{"outcome"}),
		retrievalResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    RetrievalResultsMetric,
			Help:    "Documents returned per retrieval query after filtering",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		retrievalIngest: f.NewCounterVec(prometheus.CounterOpts{
			Name: RetrievalIngestMetric,
			Help: "Documents ingested into the retrieval index by outcome",
		}, []string{"outcome"}),
		retrievalDocs: f.NewGauge(prometheus.GaugeOpts{
			Name: RetrievalDocsMetric,
			Help: "Documents currently indexed",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveAgentTask records one finished agent task.
func (s *Set) ObserveAgentTask(agentID, agentType string, d time.Duration, err error) {
	if s == nil {
		return
	}
	s.agentDuration.WithLabelValues(agentID, agentType).Observe(d.Seconds())
	if err != nil {
		s.agentFailed.WithLabelValues(agentID, agentType).Inc()
		return
	}
	s.agentProcessed.WithLabelValues(agentID, agentType).Inc()
}

// AgentBusy counts a single-flight rejection.
func (s *Set) AgentBusy(agentID string) {
	if s == nil {
		return
	}
	s.agentBusy.WithLabelValues(agentID).Inc()
}

// AIFallback counts a structured reply that fell back to its default.
func (s *Set) AIFallback(agentID, step string) {
	if s == nil {
		return
	}
	s.aiFallbacks.WithLabelValues(agentID, step).Inc()
}

// ObserveStage records one stage dispatch.
func (s *Set) ObserveStage(stage string, d time.Duration, err error) {
	if s == nil {
		return
	}
	s.stageDuration.WithLabelValues(stage, outcome(err)).Observe(d.Seconds())
}

// WorkflowFinished counts a workflow reaching completed, failed or cancelled.
func (s *Set) WorkflowFinished(result string) {
	if s == nil {
		return
	}
	s.workflows.WithLabelValues(result).Inc()
}

// ObserveQuery records a retrieval query and its result count.
func (s *Set) ObserveQuery(results int, err error) {
	if s == nil {
		return
	}
	s.retrievalQueries.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		s.retrievalResults.Observe(float64(results))
	}
}

// ObserveIngest records one document ingestion and the resulting index size.
func (s *Set) ObserveIngest(total int, err error) {
	if s == nil {
		return
	}
	s.retrievalIngest.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		s.retrievalDocs.Set(float64(total))
	}
}

// SetDocumentCount sets the indexed document gauge, used after loading an index from disk.
func (s *Set) SetDocumentCount(n int) {
	if s == nil {
		return
	}
	s.retrievalDocs.Set(float64(n))
}
