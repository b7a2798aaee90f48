package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"legalflow/pkg/logx"
	"legalflow/pkg/model"
)

// Queue errors.
var (
	ErrQueueFull       = errors.New("workflow queue is full")
	ErrQueueNotRunning = errors.New("workflow queue is not running")
)

// DefaultQueueCapacity is used when NewQueue is given a non-positive capacity.
const DefaultQueueCapacity = 64

// Job is one queued workflow run.
type Job struct {
	WorkflowID string
	Case       model.Case
}

// Result reports the outcome of a queued run.
type Result struct {
	WorkflowID string
	Case       model.Case
	Err        error
}

// Queue runs workflows through the orchestrator one at a time on a single worker goroutine.
// Serial draining keeps the single-flight agents from rejecting concurrent workflows.
type Queue struct {
	orch     *Orchestrator
	jobs     chan Job
	onResult func(Result)
	logger   *logx.Logger

	mu       sync.RWMutex
	running  bool
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewQueue returns a stopped queue. onResult is called on the worker goroutine after each run
// and may be nil.
func NewQueue(orch *Orchestrator, capacity int, onResult func(Result)) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Queue{
		orch:     orch,
		jobs:     make(chan Job, capacity),
		onResult: onResult,
		logger:   logx.NewLogger("queue"),
	}
}

// Start launches the worker. It stops when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("workflow queue is already running")
	}
	q.running = true
	q.shutdown = make(chan struct{})

	q.wg.Add(1)
	go q.worker(ctx, q.shutdown)
	q.logger.Info("Workflow queue started (capacity %d)", cap(q.jobs))
	return nil
}

// Stop signals the worker and waits for the run in progress to finish. Jobs still queued are
// reported with ErrQueueNotRunning.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.shutdown)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("Workflow queue stop timed out")
		return fmt.Errorf("workflow queue stop: %w", ctx.Err())
	}

	for {
		select {
		case job := <-q.jobs:
			q.onResult(Result{WorkflowID: job.WorkflowID, Case: job.Case, Err: ErrQueueNotRunning})
		default:
			q.logger.Info("Workflow queue stopped")
			return nil
		}
	}
}

// Enqueue adds a run without blocking.
func (q *Queue) Enqueue(workflowID string, c model.Case) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return ErrQueueNotRunning
	}
	select {
	case q.jobs <- Job{WorkflowID: workflowID, Case: c}:
		q.logger.Debug("Queued workflow %s", workflowID)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, workflowID)
	}
}

// Len returns the number of runs waiting.
func (q *Queue) Len() int { return len(q.jobs) }

func (q *Queue) worker(ctx context.Context, shutdown <-chan struct{}) {
	defer q.wg.Done()
	for {
		// shutdown wins over queued work
		select {
		case <-shutdown:
			return
		default:
		}
		select {
		case <-ctx.Done():
			q.logger.Info("Workflow queue worker stopped by context")
			return
		case <-shutdown:
			return
		case job := <-q.jobs:
			out, err := q.orch.ProcessWorkflow(ctx, job.WorkflowID, job.Case)
			if err != nil {
				q.logger.Warn("Workflow %s ended with error: %v", job.WorkflowID, err)
			}
			q.onResult(Result{WorkflowID: job.WorkflowID, Case: out, Err: err})
		}
	}
}
