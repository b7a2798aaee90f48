// Package agent is the shared framework for case-processing agents.
//
// Each agent admits one task at a time. Base.Run wraps a variant's task with the single-flight
// guard, timing, metrics, lifecycle events and status bookkeeping; variants supply only the task
// and a health probe.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"legalflow/pkg/events"
	"legalflow/pkg/llm"
	"legalflow/pkg/logx"
	"legalflow/pkg/metrics"
	"legalflow/pkg/model"
)

// Type is the agent variant.
type Type string

const (
	TypeIntake   Type = "intake"
	TypeResearch Type = "research"
	TypeDocument Type = "document"
)

// String returns the string representation of the agent type.
func (t Type) String() string { return string(t) }

// Status is the agent's availability.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusProcessing  Status = "processing"
	StatusError       Status = "error"
	StatusMaintenance Status = "maintenance"
)

// Descriptor is a snapshot of an agent's identity and counters.
type Descriptor struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Type                  Type          `json:"type"`
	Status                Status        `json:"status"`
	Capabilities          []string      `json:"capabilities"`
	ProcessedCount        int64         `json:"processed_count"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	LastActive            time.Time     `json:"last_active,omitzero"`
}

// Agent processes a case and returns the updated copy.
type Agent interface {
	Process(ctx context.Context, c model.Case) (model.Case, error)
	Descriptor() Descriptor
	HealthCheck(ctx context.Context) bool
	Type() Type
}

// Task is a variant's processing logic. It receives a private copy of the case.
type Task func(ctx context.Context, c model.Case) (model.Case, error)

// Deps are the collaborators every agent shares.
type Deps struct {
	Bus     events.Publisher
	Metrics *metrics.Set
	Clock   func() time.Time
}

// Base carries the bookkeeping common to all variants.
type Base struct {
	busy        atomic.Bool
	maintenance atomic.Bool

	mu   sync.Mutex
	desc Descriptor

	bus     events.Publisher
	metrics *metrics.Set
	logger  *logx.Logger
	now     func() time.Time
}

// NewBase returns an idle Base.
func NewBase(id, name string, typ Type, capabilities []string, deps Deps) *Base {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Base{
		desc: Descriptor{
			ID:           id,
			Name:         name,
			Type:         typ,
			Status:       StatusIdle,
			Capabilities: append([]string(nil), capabilities...),
		},
		bus:     deps.Bus,
		metrics: deps.Metrics,
		logger:  logx.NewLogger(id),
		now:     now,
	}
}

// ID returns the agent id.
func (b *Base) ID() string { return b.desc.ID }

// Now reads the agent's clock.
func (b *Base) Now() time.Time { return b.now() }

// Type returns the agent variant.
func (b *Base) Type() Type { return b.desc.Type }

// Logger returns the agent's logger.
func (b *Base) Logger() *logx.Logger { return b.logger }

// Metrics returns the agent's recorder set, possibly nil.
func (b *Base) Metrics() *metrics.Set { return b.metrics }

// Descriptor returns a snapshot.
func (b *Base) Descriptor() Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.desc
	d.Capabilities = append([]string(nil), b.desc.Capabilities...)
	return d
}

// SetMaintenance takes the agent in or out of maintenance. Maintenance agents reject work.
func (b *Base) SetMaintenance(on bool) {
	b.maintenance.Store(on)
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case on:
		b.desc.Status = StatusMaintenance
	case b.desc.Status == StatusMaintenance:
		b.desc.Status = StatusIdle
	}
}

// Busy reports whether a task is in flight.
func (b *Base) Busy() bool { return b.busy.Load() }

func (b *Base) publish(ctx context.Context, ev events.Event) {
	if b.bus == nil {
		return
	}
	ev.AgentID = b.desc.ID
	if ev.WorkflowID == "" {
		ev.WorkflowID = llm.CallInfoFrom(ctx).WorkflowID
	}
	b.bus.Publish(ctx, ev)
}

// Run executes task under the single-flight guard. On failure the input case is returned
// unchanged together with the error.
func (b *Base) Run(ctx context.Context, c model.Case, task Task) (model.Case, error) {
	if b.maintenance.Load() {
		return c, fmt.Errorf("%w: %s", ErrAgentUnavailable, b.desc.ID)
	}
	if !b.busy.CompareAndSwap(false, true) {
		b.metrics.AgentBusy(b.desc.ID)
		return c, fmt.Errorf("%w: %s", ErrAgentBusy, b.desc.ID)
	}
	defer b.release()

	info := llm.CallInfoFrom(ctx)
	info.AgentID = b.desc.ID
	ctx = llm.WithCallInfo(ctx, info)

	start := b.now()
	b.mu.Lock()
	b.desc.Status = StatusProcessing
	b.desc.LastActive = start
	b.mu.Unlock()

	b.publish(ctx, events.Event{
		Kind:    events.AgentProcessingStarted,
		CaseID:  c.ID,
		Message: fmt.Sprintf("%s started processing case %s", b.desc.Name, c.ID),
	})

	out, err := task(ctx, c.Clone())
	elapsed := b.now().Sub(start)
	b.metrics.ObserveAgentTask(b.desc.ID, string(b.desc.Type), elapsed, err)

	if err != nil {
		b.mu.Lock()
		b.desc.Status = StatusError
		b.mu.Unlock()
		b.logger.Error("Failed to process case %s after %s: %v", c.ID, elapsed, err)
		b.publish(ctx, events.Event{
			Kind:     events.AgentProcessingFailed,
			CaseID:   c.ID,
			Error:    err.Error(),
			Duration: elapsed,
			Message:  fmt.Sprintf("%s failed on case %s", b.desc.Name, c.ID),
		})
		return c, err
	}

	b.mu.Lock()
	b.desc.ProcessedCount++
	n := b.desc.ProcessedCount
	b.desc.AverageProcessingTime += (elapsed - b.desc.AverageProcessingTime) / time.Duration(n)
	b.desc.Status = StatusIdle
	b.desc.LastActive = b.now()
	b.mu.Unlock()

	b.logger.Info("Processed case %s in %s", c.ID, elapsed)
	b.publish(ctx, events.Event{
		Kind:     events.AgentProcessingCompleted,
		CaseID:   c.ID,
		Duration: elapsed,
		Message:  fmt.Sprintf("%s completed case %s", b.desc.Name, c.ID),
	})
	return out, nil
}

func (b *Base) release() {
	b.mu.Lock()
	switch {
	case b.maintenance.Load():
		b.desc.Status = StatusMaintenance
	case b.desc.Status != StatusError:
		b.desc.Status = StatusIdle
	}
	b.mu.Unlock()
	b.busy.Store(false)
}

// ReportProgress publishes an agent-progress-update for the case being processed.
func (b *Base) ReportProgress(ctx context.Context, caseID string, pct int, msg string) {
	b.publish(ctx, events.Event{
		Kind:     events.AgentProgressUpdate,
		CaseID:   caseID,
		Progress: pct,
		Message:  msg,
	})
}

// WithStep labels generation calls made with ctx for metrics.
func WithStep(ctx context.Context, step string) context.Context {
	info := llm.CallInfoFrom(ctx)
	info.Step = step
	return llm.WithCallInfo(ctx, info)
}

// WithWorkflow tags ctx with the workflow being processed.
func WithWorkflow(ctx context.Context, workflowID string) context.Context {
	info := llm.CallInfoFrom(ctx)
	info.WorkflowID = workflowID
	return llm.WithCallInfo(ctx, info)
}
