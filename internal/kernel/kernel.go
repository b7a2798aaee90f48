// Package kernel wires the configured services together and owns their lifecycle.
// The CLI and the ops server both run on top of a single Kernel.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"legalflow/pkg/agent"
	"legalflow/pkg/config"
	"legalflow/pkg/drafting"
	"legalflow/pkg/embed"
	"legalflow/pkg/eventlog"
	"legalflow/pkg/events"
	"legalflow/pkg/intake"
	"legalflow/pkg/llm"
	llmmetrics "legalflow/pkg/llm/middleware/metrics"
	"legalflow/pkg/llmclient"
	"legalflow/pkg/logx"
	"legalflow/pkg/metrics"
	"legalflow/pkg/model"
	"legalflow/pkg/orchestrator"
	"legalflow/pkg/persistence"
	"legalflow/pkg/render"
	"legalflow/pkg/research"
	"legalflow/pkg/retrieval"
	"legalflow/pkg/templates"
	"legalflow/pkg/workflow"
)

// Kernel holds every long-lived service. Fields are concrete types so callers can reach the
// pieces they need without extra plumbing.
type Kernel struct {
	ctx    context.Context //nolint:containedctx // kernel lifecycle
	cancel context.CancelFunc

	Config *config.Config
	Logger *logx.Logger

	Registry     *prometheus.Registry
	Metrics      *metrics.Set
	Bus          *events.Bus
	EventLog     *eventlog.Writer
	LLM          llm.Client
	Embedder     embed.Embedder
	Engine       *retrieval.Engine
	Store        persistence.Store
	Orchestrator *orchestrator.Orchestrator
	Queue        *orchestrator.Queue

	onResult func(orchestrator.Result)
	running  bool
}

// Option customises kernel construction.
type Option func(*Kernel)

// WithLLMClient replaces the configured provider. The client is still wrapped in the metrics,
// retry and timeout middleware.
func WithLLMClient(c llm.Client) Option { return func(k *Kernel) { k.LLM = c } }

// WithEmbedder replaces the configured embedder.
func WithEmbedder(e embed.Embedder) Option { return func(k *Kernel) { k.Embedder = e } }

// WithResultHandler is called after each queued workflow finishes.
func WithResultHandler(fn func(orchestrator.Result)) Option {
	return func(k *Kernel) { k.onResult = fn }
}

// NewKernel builds every service from cfg. Nothing is started until Start.
func NewKernel(parent context.Context, cfg *config.Config, opts ...Option) (*Kernel, error) {
	ctx, cancel := context.WithCancel(parent)
	k := &Kernel{
		ctx:    ctx,
		cancel: cancel,
		Config: cfg,
		Logger: logx.NewLogger("kernel"),
	}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.initializeServices(ctx); err != nil {
		k.closeResources()
		cancel()
		return nil, fmt.Errorf("failed to initialize kernel services: %w", err)
	}
	return k, nil
}

func (k *Kernel) initializeServices(ctx context.Context) error {
	cfg := k.Config

	k.Registry = prometheus.NewRegistry()
	k.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	k.Metrics = metrics.NewSet(k.Registry)
	k.Bus = events.NewBus()

	if cfg.EventLog.Enabled {
		w, err := eventlog.NewWriter(cfg.EventLog.Dir)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		k.EventLog = w
		w.Attach(k.Bus)
	}

	recorder := llmmetrics.NewPrometheusRecorder(k.Registry)
	if k.LLM == nil {
		client, err := llmclient.New(cfg.LLM, recorder)
		if err != nil {
			return fmt.Errorf("failed to create llm client: %w", err)
		}
		k.LLM = client
	} else {
		k.LLM = llmclient.Wrap(k.LLM, cfg.LLM, recorder)
	}

	if k.Embedder == nil {
		e, err := embed.New(cfg.Embedding)
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		k.Embedder = e
	}
	k.Engine = retrieval.New(cfg.Retrieval, k.Embedder, retrieval.WithMetrics(k.Metrics))

	prompts, err := templates.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}
	renderers, err := render.New(cfg.Agents.Document.Formats)
	if err != nil {
		return fmt.Errorf("failed to create renderers: %w", err)
	}

	deps := agent.Deps{Bus: k.Bus, Metrics: k.Metrics}
	agents := []agent.Agent{
		intake.New(cfg.Agents.Intake, k.LLM, prompts, deps),
		research.New(cfg.Agents.Research, k.LLM, k.Engine, prompts, deps),
		drafting.New(cfg.Agents.Document, k.LLM, prompts, renderers, deps),
	}

	k.Store, err = persistence.Open(ctx, cfg.Persistence)
	if err != nil {
		return fmt.Errorf("failed to open workflow store: %w", err)
	}

	k.Orchestrator = orchestrator.New(k.Store, agents,
		orchestrator.WithBus(k.Bus),
		orchestrator.WithMetrics(k.Metrics),
		orchestrator.WithBaseMinutes(cfg.Workflow.BaseMinutes),
	)
	k.Queue = orchestrator.NewQueue(k.Orchestrator, cfg.Workflow.QueueCapacity, k.handleResult)

	k.Logger.Info("Kernel services initialized (llm %s, embedder %s, store %s)",
		k.LLM.ModelName(), k.Embedder.Name(), cfg.Persistence.Driver)
	return nil
}

func (k *Kernel) handleResult(r orchestrator.Result) {
	if r.Err != nil {
		k.Logger.Warn("Workflow %s finished with error: %v", r.WorkflowID, r.Err)
	} else {
		k.Logger.Info("Workflow %s finished with %d documents", r.WorkflowID, len(r.Case.Documents))
	}
	if k.onResult != nil {
		k.onResult(r)
	}
}

// Start loads the retrieval catalogue and starts the workflow queue.
func (k *Kernel) Start() error {
	if k.running {
		return errors.New("kernel already running")
	}
	k.Logger.Info("Starting kernel services...")

	if err := k.Engine.Initialize(k.ctx); err != nil {
		return fmt.Errorf("failed to initialize retrieval engine: %w", err)
	}
	if err := k.Queue.Start(k.ctx); err != nil {
		return fmt.Errorf("failed to start workflow queue: %w", err)
	}

	k.running = true
	k.Logger.Info("Kernel services started successfully")
	return nil
}

// Stop drains the queue, then releases the store and the event log.
func (k *Kernel) Stop() error {
	if !k.running {
		k.closeResources()
		k.cancel()
		return nil
	}
	k.Logger.Info("Stopping kernel services...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := k.Queue.Stop(stopCtx); err != nil {
		k.Logger.Warn("Workflow queue stop issue: %v", err)
	}
	stopCancel()

	k.cancel()
	k.closeResources()
	k.running = false
	k.Logger.Info("Kernel services stopped")
	return nil
}

func (k *Kernel) closeResources() {
	if k.Store != nil {
		if err := k.Store.Close(); err != nil {
			k.Logger.Error("Error closing workflow store: %v", err)
		}
	}
	if k.EventLog != nil {
		if err := k.EventLog.Close(); err != nil {
			k.Logger.Error("Error closing event log: %v", err)
		}
	}
}

// Run starts a workflow for c and processes it on the calling goroutine.
func (k *Kernel) Run(ctx context.Context, c model.Case) (string, model.Case, error) {
	id, err := k.Orchestrator.StartWorkflow(ctx, c)
	if err != nil {
		return "", c, err //nolint:wrapcheck // already descriptive
	}
	out, err := k.Orchestrator.ProcessWorkflow(ctx, id, c)
	return id, out, err //nolint:wrapcheck // orchestrator errors are typed
}

// Submit starts a workflow for c and queues it. The result reaches the result handler. A
// workflow that cannot be queued is cancelled again.
func (k *Kernel) Submit(ctx context.Context, c model.Case) (string, error) {
	id, err := k.Orchestrator.StartWorkflow(ctx, c)
	if err != nil {
		return "", err //nolint:wrapcheck // already descriptive
	}
	if err := k.Queue.Enqueue(id, c); err != nil {
		if cerr := k.Orchestrator.CancelWorkflow(ctx, id); cerr != nil {
			k.Logger.Warn("Failed to cancel unqueued workflow %s: %v", id, cerr)
		}
		return "", fmt.Errorf("failed to queue workflow %s: %w", id, err)
	}
	return id, nil
}

// Health reports each agent, the retrieval engine and the workflow store.
func (k *Kernel) Health(ctx context.Context) map[string]bool {
	out := k.Orchestrator.HealthCheck(ctx)
	out["retrieval"] = k.Engine.HealthCheck(ctx) == nil
	out["store"] = k.Store.Ping(ctx) == nil
	return out
}

// Stats is the operational snapshot served on /stats.
type Stats struct {
	Workflows  map[workflow.Status]int `json:"workflows"`
	QueueDepth int                     `json:"queue_depth"`
	Agents     []agent.Descriptor      `json:"agents"`
	Retrieval  retrieval.Stats         `json:"retrieval"`
	Model      string                  `json:"model"`
}

// Stats collects the operational snapshot.
func (k *Kernel) Stats(ctx context.Context) (Stats, error) {
	states, err := k.Orchestrator.ListWorkflows(ctx)
	if err != nil {
		return Stats{}, err //nolint:wrapcheck // already descriptive
	}
	counts := make(map[workflow.Status]int)
	for _, st := range states {
		counts[st.Status]++
	}
	return Stats{
		Workflows:  counts,
		QueueDepth: k.Queue.Len(),
		Agents:     k.Orchestrator.Agents(),
		Retrieval:  k.Engine.Stats(),
		Model:      k.LLM.ModelName(),
	}, nil
}
