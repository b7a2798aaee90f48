// Package workflow defines the ordered stage list, per-workflow state, and the progress and
// completion-estimate arithmetic used by the orchestrator.
package workflow

import (
	"math"
	"time"

	"legalflow/pkg/model"
)

// Stage is one step of the case pipeline.
type Stage string

const (
	StageIntake             Stage = "intake"
	StageResearch           Stage = "research"
	StageArgumentGeneration Stage = "argument-generation"
	StageDrafting           Stage = "drafting"
	StageReview             Stage = "review"
	StageFinalFormatting    Stage = "final-formatting"
	StageCompleted          Stage = "completed"
)

// TotalStages is the number of working stages, excluding the terminal completed marker.
const TotalStages = 6

//nolint:gochecknoglobals // fixed pipeline order
var stages = []Stage{
	StageIntake,
	StageResearch,
	StageArgumentGeneration,
	StageDrafting,
	StageReview,
	StageFinalFormatting,
	StageCompleted,
}

// Stages returns the full ordered stage list including the terminal completed marker.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// WorkingStages returns the stages that dispatch to an agent.
func WorkingStages() []Stage {
	return Stages()[:TotalStages]
}

// Index returns the position of s in the pipeline, or -1.
func (s Stage) Index() int {
	for i, st := range stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a member of the stage list.
func (s Stage) Valid() bool { return s.Index() >= 0 }

// Next returns the stage following s. The completed stage is its own successor.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i >= len(stages)-1 {
		return StageCompleted
	}
	return stages[i+1]
}

// Progress is round(100 * index(stage) / 6).
func Progress(s Stage) int {
	i := s.Index()
	if i <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(i) / TotalStages))
}

// Complexity and category multipliers for the completion estimate.
//
//nolint:gochecknoglobals // fixed lookup tables
var (
	ComplexityMultipliers = map[model.Complexity]float64{
		model.ComplexityLow:    1.0,
		model.ComplexityMedium: 1.5,
		model.ComplexityHigh:   2.5,
	}

	CategoryMultipliers = map[model.Category]float64{
		model.CategoryPersonalInjury:       1.2,
		model.CategoryContractDispute:      1.0,
		model.CategoryEmployment:           1.1,
		model.CategoryPropertyDispute:      1.0,
		model.CategoryFamilyLaw:            1.3,
		model.CategoryCriminalDefense:      1.5,
		model.CategoryIntellectualProperty: 1.4,
		model.CategoryOther:                1.0,
	}
)

// DefaultBaseMinutes is the base duration of a workflow before multipliers.
const DefaultBaseMinutes = 30.0

// EstimateCompletion returns now + base * complexity multiplier * category multiplier.
// Unknown enumeration values use a multiplier of 1.
func EstimateCompletion(now time.Time, baseMinutes float64, complexity model.Complexity, category model.Category) time.Time {
	cm, ok := ComplexityMultipliers[complexity]
	if !ok {
		cm = 1
	}
	gm, ok := CategoryMultipliers[category]
	if !ok {
		gm = 1
	}
	minutes := baseMinutes * cm * gm
	return now.Add(time.Duration(minutes * float64(time.Minute)))
}

// Status is the coarse lifecycle state of a workflow.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Severity grades a recorded workflow error.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Log records a completed stage.
type Log struct {
	Timestamp time.Time     `json:"timestamp"`
	Stage     Stage         `json:"stage"`
	Agent     string        `json:"agent"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
}

// Error records a failed stage.
type Error struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage"`
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Resolved  bool      `json:"resolved"`
}

// State is the orchestrator's record of one workflow.
//
//nolint:govet // logical grouping preferred over alignment
type State struct {
	WorkflowID          string    `json:"workflow_id"`
	CaseID              string    `json:"case_id"`
	CurrentStage        Stage     `json:"current_stage"`
	CompletedStages     []Stage   `json:"completed_stages"`
	Progress            int       `json:"progress"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
	Logs                []Log     `json:"logs"`
	Errors              []Error   `json:"errors"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewState returns the initial state of a workflow: first stage, zero progress.
func NewState(workflowID, caseID string, eta, now time.Time) *State {
	return &State{
		WorkflowID:          workflowID,
		CaseID:              caseID,
		CurrentStage:        StageIntake,
		CompletedStages:     []Stage{},
		Progress:            0,
		EstimatedCompletion: eta,
		Logs:                []Log{},
		Errors:              []Error{},
		Status:              StatusRunning,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// HasCompleted reports whether s has already been completed.
func (st *State) HasCompleted(s Stage) bool {
	for _, c := range st.CompletedStages {
		if c == s {
			return true
		}
	}
	return false
}

// CompleteStage appends s once, advances CurrentStage past it and recomputes progress.
// Progress never regresses.
func (st *State) CompleteStage(s Stage, log Log) {
	if !st.HasCompleted(s) {
		st.CompletedStages = append(st.CompletedStages, s)
	}
	st.Logs = append(st.Logs, log)
	next := s.Next()
	if next.Index() > st.CurrentStage.Index() {
		st.CurrentStage = next
	}
	if p := Progress(st.CurrentStage); p > st.Progress {
		st.Progress = p
	}
	st.UpdatedAt = log.Timestamp
}

// RecordError appends an unresolved error.
func (st *State) RecordError(e Error) {
	st.Errors = append(st.Errors, e)
	st.UpdatedAt = e.Timestamp
}

// Clone returns a deep copy suitable for event snapshots.
func (st *State) Clone() *State {
	if st == nil {
		return nil
	}
	out := *st
	out.CompletedStages = append([]Stage{}, st.CompletedStages...)
	out.Logs = append([]Log{}, st.Logs...)
	out.Errors = append([]Error{}, st.Errors...)
	return &out
}
