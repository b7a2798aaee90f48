// Package events is the in-process publish/subscribe bus for workflow and agent lifecycle events.
//
// Delivery is synchronous and at-most-once: Publish calls every matching handler in subscription
// order on the publishing goroutine. A handler that panics is logged and skipped.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"legalflow/pkg/logx"
	"legalflow/pkg/workflow"
)

// Kind names a lifecycle event.
type Kind string

const (
	WorkflowStarted        Kind = "workflow-started"
	WorkflowProgress       Kind = "workflow-progress"
	WorkflowStageStarted   Kind = "workflow-stage-started"
	WorkflowStageCompleted Kind = "workflow-stage-completed"
	WorkflowStageFailed    Kind = "workflow-stage-failed"
	WorkflowCompleted      Kind = "workflow-completed"
	WorkflowFailed         Kind = "workflow-failed"
	WorkflowPaused         Kind = "workflow-paused"
	WorkflowResumed        Kind = "workflow-resumed"
	WorkflowCancelled      Kind = "workflow-cancelled"

	AgentProcessingStarted   Kind = "agent-processing-started"
	AgentProcessingCompleted Kind = "agent-processing-completed"
	AgentProcessingFailed    Kind = "agent-processing-failed"
	AgentProgressUpdate      Kind = "agent-progress-update"
)

// Kinds lists every event kind.
func Kinds() []Kind {
	return []Kind{
		WorkflowStarted, WorkflowProgress, WorkflowStageStarted, WorkflowStageCompleted,
		WorkflowStageFailed, WorkflowCompleted, WorkflowFailed, WorkflowPaused, WorkflowResumed,
		WorkflowCancelled, AgentProcessingStarted, AgentProcessingCompleted, AgentProcessingFailed,
		AgentProgressUpdate,
	}
}

// Event is one lifecycle notification. State is a snapshot owned by the receiver.
type Event struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	WorkflowID string          `json:"workflow_id,omitempty"`
	CaseID     string          `json:"case_id,omitempty"`
	AgentID    string          `json:"agent_id,omitempty"`
	Stage      workflow.Stage  `json:"stage,omitempty"`
	Progress   int             `json:"progress,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration,omitempty"`
	State      *workflow.State `json:"state,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Handler receives events.
type Handler func(ctx context.Context, ev Event)

// Publisher is the narrow interface emitters depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	byKind map[Kind][]subscription
	all    []subscription
	nextID uint64
	logger *logx.Logger
	now    func() time.Time
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		byKind: make(map[Kind][]subscription),
		logger: logx.NewLogger("events"),
		now:    time.Now,
	}
}

// Subscribe registers h for one kind and returns a function that removes it.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byKind[kind] = append(b.byKind[kind], subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byKind[kind] = remove(b.byKind[kind], id)
	}
}

// SubscribeAll registers h for every kind.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

func remove(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Publish stamps ev with an id and timestamp if missing and delivers it.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.byKind[ev.Kind])+len(b.all))
	targets = append(targets, b.byKind[ev.Kind]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(ctx, s.handler, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber for %s panicked: %v", ev.Kind, r)
		}
	}()
	h(ctx, ev)
}

// Recorder is a subscriber that keeps every event it sees. Useful for tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
