// Package orchestrator drives cases through the stage pipeline.
//
// Workflow state lives in a Store and every mutation is a load-modify-save under the
// orchestrator's lock, so pause and cancel requests made from other goroutines are observed at
// the next stage boundary. An agent call already in flight is never interrupted.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"legalflow/pkg/agent"
	"legalflow/pkg/events"
	"legalflow/pkg/llm/llmerrors"
	"legalflow/pkg/logx"
	"legalflow/pkg/metrics"
	"legalflow/pkg/model"
	"legalflow/pkg/workflow"
)

// StageAgents maps each working stage to the agent type that runs it.
//
//nolint:gochecknoglobals // fixed routing table
var StageAgents = map[workflow.Stage]agent.Type{
	workflow.StageIntake:             agent.TypeIntake,
	workflow.StageResearch:           agent.TypeResearch,
	workflow.StageArgumentGeneration: agent.TypeDocument,
	workflow.StageDrafting:           agent.TypeDocument,
	workflow.StageReview:             agent.TypeDocument,
	workflow.StageFinalFormatting:    agent.TypeDocument,
}

// Outcome labels for the workflows metric.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Orchestrator owns the workflow registry and the agent instances.
type Orchestrator struct {
	mu sync.Mutex // serialises load-modify-save on the store

	store       Store
	agents      map[agent.Type]agent.Agent
	order       []agent.Agent
	bus         events.Publisher
	metrics     *metrics.Set
	baseMinutes float64
	now         func() time.Time
	logger      *logx.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBus publishes lifecycle events to bus.
func WithBus(bus events.Publisher) Option { return func(o *Orchestrator) { o.bus = bus } }

// WithMetrics records stage and workflow metrics.
func WithMetrics(m *metrics.Set) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithBaseMinutes sets the base duration used for completion estimates.
func WithBaseMinutes(m float64) Option {
	return func(o *Orchestrator) {
		if m > 0 {
			o.baseMinutes = m
		}
	}
}

// New returns an orchestrator over store. A nil store means an in-memory one. Agents are keyed
// by type; a later agent of the same type replaces an earlier one.
func New(store Store, agents []agent.Agent, opts ...Option) *Orchestrator {
	if store == nil {
		store = NewMemoryStore()
	}
	o := &Orchestrator{
		store:       store,
		agents:      make(map[agent.Type]agent.Agent, len(agents)),
		baseMinutes: workflow.DefaultBaseMinutes,
		now:         time.Now,
		logger:      logx.NewLogger("orchestrator"),
	}
	for _, a := range agents {
		if _, dup := o.agents[a.Type()]; !dup {
			o.order = append(o.order, a)
		} else {
			for i, prev := range o.order {
				if prev.Type() == a.Type() {
					o.order[i] = a
				}
			}
		}
		o.agents[a.Type()] = a
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(ctx, ev)
}

// StartWorkflow registers a new workflow for c and returns its id.
func (o *Orchestrator) StartWorkflow(ctx context.Context, c model.Case) (string, error) {
	id := uuid.NewString()
	for id == c.ID {
		id = uuid.NewString()
	}
	now := o.now()
	eta := workflow.EstimateCompletion(now, o.baseMinutes, c.Complexity, c.Category)
	st := workflow.NewState(id, c.ID, eta, now)

	o.mu.Lock()
	err := o.store.Save(ctx, st)
	o.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to save workflow %s: %w", id, err)
	}

	o.logger.Info("Started workflow %s for case %s (estimated completion %s)", id, c.ID, eta.Format(time.RFC3339))
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowStarted,
		WorkflowID: id,
		CaseID:     c.ID,
		Stage:      st.CurrentStage,
		State:      st.Clone(),
		Message:    fmt.Sprintf("workflow started for case %s", c.ID),
	})
	return id, nil
}

// update applies fn to the stored state of id and saves the result.
func (o *Orchestrator) update(ctx context.Context, id string, fn func(st *workflow.State) error) (*workflow.State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err //nolint:wrapcheck // store errors carry the id
	}
	if err := fn(st); err != nil {
		return st, err
	}
	st.UpdatedAt = o.now()
	if err := o.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save workflow %s: %w", id, err)
	}
	return st.Clone(), nil
}

// ProcessWorkflow runs every stage not yet completed, in order, and returns the updated case.
// It stops with ErrWorkflowPaused or ErrWorkflowCancelled when asked to between stages, and
// with a *StageExecutionError when an agent fails. A completed workflow is not run again.
func (o *Orchestrator) ProcessWorkflow(ctx context.Context, id string, c model.Case) (model.Case, error) {
	st, err := o.update(ctx, id, func(st *workflow.State) error {
		switch st.Status {
		case workflow.StatusPaused:
			return ErrWorkflowPaused
		case workflow.StatusCompleted:
			return fmt.Errorf("%w: workflow %s is already completed", ErrInvalidTransition, id)
		case workflow.StatusFailed:
			st.Status = workflow.StatusRunning
		}
		return nil
	})
	if err != nil {
		return c, err
	}
	ctx = agent.WithWorkflow(ctx, id)
	logger := o.logger.WithWorkflow(id)

	for _, stage := range workflow.WorkingStages() {
		if st.HasCompleted(stage) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return c, fmt.Errorf("workflow %s interrupted: %w", id, err)
		}
		if st, err = o.checkRunnable(ctx, id); err != nil {
			return c, err
		}

		c, st, err = o.runStage(ctx, st, stage, c)
		if err != nil {
			return c, err
		}
		logger.Info("Stage %s complete (%d%%)", stage, st.Progress)
	}

	st, err = o.update(ctx, id, func(st *workflow.State) error {
		st.CurrentStage = workflow.StageCompleted
		st.Progress = 100
		st.Status = workflow.StatusCompleted
		return nil
	})
	if err != nil {
		return c, o.cancelledIfMissing(err)
	}
	o.metrics.WorkflowFinished(OutcomeCompleted)
	logger.Info("Workflow completed for case %s", c.ID)
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowCompleted,
		WorkflowID: id,
		CaseID:     c.ID,
		Stage:      workflow.StageCompleted,
		Progress:   100,
		State:      st,
		Message:    fmt.Sprintf("workflow completed with %d documents", len(c.Documents)),
	})
	return c, nil
}

// checkRunnable reloads the state before a stage is dispatched.
func (o *Orchestrator) checkRunnable(ctx context.Context, id string) (*workflow.State, error) {
	o.mu.Lock()
	st, err := o.store.Load(ctx, id)
	o.mu.Unlock()
	if err != nil {
		return nil, o.cancelledIfMissing(err)
	}
	if st.Status == workflow.StatusPaused {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowPaused, id)
	}
	return st, nil
}

func (o *Orchestrator) cancelledIfMissing(err error) error {
	if errors.Is(err, ErrWorkflowNotFound) {
		return fmt.Errorf("%w: %w", ErrWorkflowCancelled, err)
	}
	return err
}

func (o *Orchestrator) runStage(ctx context.Context, st *workflow.State, stage workflow.Stage, c model.Case) (model.Case, *workflow.State, error) {
	id := st.WorkflowID
	ag, ok := o.agents[StageAgents[stage]]
	if !ok {
		return c, st, o.fail(ctx, id, stage, "", c, fmt.Errorf("%w: %s", ErrNoAgent, stage))
	}
	agentID := ag.Descriptor().ID

	o.publish(ctx, events.Event{
		Kind:       events.WorkflowStageStarted,
		WorkflowID: id,
		CaseID:     c.ID,
		AgentID:    agentID,
		Stage:      stage,
		Progress:   st.Progress,
		Message:    fmt.Sprintf("stage %s started", stage),
	})

	c.WorkflowStage = stage.Index()
	start := o.now()
	out, err := ag.Process(ctx, c)
	elapsed := o.now().Sub(start)
	o.metrics.ObserveStage(string(stage), elapsed, err)
	if err != nil {
		return c, st, o.fail(ctx, id, stage, agentID, c, err)
	}
	c = out

	st, err = o.update(ctx, id, func(st *workflow.State) error {
		st.CompleteStage(stage, workflow.Log{
			Timestamp: o.now(),
			Stage:     stage,
			Agent:     agentID,
			Message:   fmt.Sprintf("%s completed by %s", stage, agentID),
			Duration:  elapsed,
		})
		return nil
	})
	if err != nil {
		return c, nil, o.cancelledIfMissing(err)
	}

	o.publish(ctx, events.Event{
		Kind:       events.WorkflowStageCompleted,
		WorkflowID: id,
		CaseID:     c.ID,
		AgentID:    agentID,
		Stage:      stage,
		Progress:   st.Progress,
		Duration:   elapsed,
		State:      st,
		Message:    fmt.Sprintf("stage %s completed in %s", stage, elapsed.Round(time.Millisecond)),
	})
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowProgress,
		WorkflowID: id,
		CaseID:     c.ID,
		Stage:      st.CurrentStage,
		Progress:   st.Progress,
		State:      st.Clone(),
		Message:    fmt.Sprintf("%d%% complete", st.Progress),
	})
	return c, st, nil
}

// fail records the stage error, marks the workflow failed and returns a *StageExecutionError.
func (o *Orchestrator) fail(ctx context.Context, id string, stage workflow.Stage, agentID string, c model.Case, cause error) error {
	stageErr := &StageExecutionError{Stage: stage, Agent: agentID, Err: cause}
	o.logger.WithWorkflow(id).Error("%v", stageErr)

	st, err := o.update(ctx, id, func(st *workflow.State) error {
		st.RecordError(workflow.Error{
			Timestamp: o.now(),
			Stage:     stage,
			Agent:     agentID,
			Message:   cause.Error(),
			Severity:  Severity(cause),
			Resolved:  false,
		})
		st.Status = workflow.StatusFailed
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrWorkflowNotFound) {
			return fmt.Errorf("%w: %w", ErrWorkflowCancelled, stageErr)
		}
		o.logger.Error("Failed to record error for workflow %s: %v", id, err)
	}

	o.publish(ctx, events.Event{
		Kind:       events.WorkflowStageFailed,
		WorkflowID: id,
		CaseID:     c.ID,
		AgentID:    agentID,
		Stage:      stage,
		Error:      cause.Error(),
		State:      st,
		Message:    fmt.Sprintf("stage %s failed", stage),
	})
	o.metrics.WorkflowFinished(OutcomeFailed)
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowFailed,
		WorkflowID: id,
		CaseID:     c.ID,
		AgentID:    agentID,
		Stage:      stage,
		Error:      stageErr.Error(),
		State:      st.Clone(),
		Message:    fmt.Sprintf("workflow failed at stage %s", stage),
	})
	return stageErr
}

// Severity grades a stage failure for the workflow error log.
func Severity(err error) workflow.Severity {
	var ve *agent.ValidationError
	var le *llmerrors.Error
	switch {
	case errors.As(err, &ve):
		return workflow.SeverityMedium
	case errors.Is(err, agent.ErrAgentBusy), errors.Is(err, agent.ErrAgentUnavailable):
		return workflow.SeverityLow
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return workflow.SeverityMedium
	case errors.As(err, &le):
		return workflow.SeverityHigh
	default:
		return workflow.SeverityCritical
	}
}

// PauseWorkflow stops the workflow before its next stage. A stage already running finishes.
func (o *Orchestrator) PauseWorkflow(ctx context.Context, id string) error {
	st, err := o.update(ctx, id, func(st *workflow.State) error {
		if st.Status != workflow.StatusRunning {
			return fmt.Errorf("%w: cannot pause a %s workflow", ErrInvalidTransition, st.Status)
		}
		st.Status = workflow.StatusPaused
		return nil
	})
	if err != nil {
		return err
	}
	o.logger.Info("Paused workflow %s at %s", id, st.CurrentStage)
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowPaused,
		WorkflowID: id,
		CaseID:     st.CaseID,
		Stage:      st.CurrentStage,
		Progress:   st.Progress,
		State:      st,
		Message:    "workflow paused",
	})
	return nil
}

// ResumeWorkflow clears a pause and continues from the first incomplete stage.
func (o *Orchestrator) ResumeWorkflow(ctx context.Context, id string, c model.Case) (model.Case, error) {
	st, err := o.update(ctx, id, func(st *workflow.State) error {
		switch st.Status {
		case workflow.StatusPaused, workflow.StatusRunning, workflow.StatusFailed:
			st.Status = workflow.StatusRunning
			return nil
		default:
			return fmt.Errorf("%w: cannot resume a %s workflow", ErrInvalidTransition, st.Status)
		}
	})
	if err != nil {
		return c, err
	}
	o.logger.Info("Resuming workflow %s at %s", id, st.CurrentStage)
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowResumed,
		WorkflowID: id,
		CaseID:     st.CaseID,
		Stage:      st.CurrentStage,
		Progress:   st.Progress,
		State:      st,
		Message:    "workflow resumed",
	})
	return o.ProcessWorkflow(ctx, id, c)
}

// CancelWorkflow removes the workflow. A running ProcessWorkflow stops before its next stage.
func (o *Orchestrator) CancelWorkflow(ctx context.Context, id string) error {
	o.mu.Lock()
	st, err := o.store.Load(ctx, id)
	if err == nil {
		err = o.store.Delete(ctx, id)
	}
	o.mu.Unlock()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry the id
	}

	o.metrics.WorkflowFinished(OutcomeCancelled)
	o.logger.Info("Cancelled workflow %s", id)
	o.publish(ctx, events.Event{
		Kind:       events.WorkflowCancelled,
		WorkflowID: id,
		CaseID:     st.CaseID,
		Stage:      st.CurrentStage,
		Progress:   st.Progress,
		State:      st,
		Message:    "workflow cancelled",
	})
	return nil
}

// GetWorkflow returns a snapshot of the workflow state.
func (o *Orchestrator) GetWorkflow(ctx context.Context, id string) (*workflow.State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.Load(ctx, id) //nolint:wrapcheck // store errors carry the id
}

// ListWorkflows returns every known workflow, oldest first.
func (o *Orchestrator) ListWorkflows(ctx context.Context) ([]*workflow.State, error) {
	o.mu.Lock()
	states, err := o.store.List(ctx)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	SortStates(states)
	return states, nil
}

// Agents returns descriptor snapshots in registration order.
func (o *Orchestrator) Agents() []agent.Descriptor {
	out := make([]agent.Descriptor, 0, len(o.order))
	for _, a := range o.order {
		out = append(out, a.Descriptor())
	}
	return out
}

// HealthCheck runs every agent's probe and reports the result by agent id.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(o.order))
	for _, a := range o.order {
		out[a.Descriptor().ID] = a.HealthCheck(ctx)
	}
	return out
}
