package orchestrator

import (
	"errors"
	"fmt"

	"legalflow/pkg/workflow"
)

// Errors returned by the orchestrator.
var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrWorkflowPaused    = errors.New("workflow is paused")
	ErrWorkflowCancelled = errors.New("workflow was cancelled")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNoAgent           = errors.New("no agent registered for stage")
)

// StageExecutionError wraps an agent failure with the stage and agent that produced it.
type StageExecutionError struct {
	Stage workflow.Stage
	Agent string
	Err   error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("stage %s (agent %s) failed: %v", e.Stage, e.Agent, e.Err)
}

func (e *StageExecutionError) Unwrap() error { return e.Err }
