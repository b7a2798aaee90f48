package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"legalflow/pkg/workflow"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// workflowRow is the column projection of a workflow state.
type workflowRow struct {
	ID                  string
	CaseID              string
	Status              string
	CurrentStage        string
	Progress            int
	ErrorCount          int
	EstimatedCompletion time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	State               []byte
}

func newRow(st *workflow.State) (workflowRow, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return workflowRow{}, fmt.Errorf("failed to encode workflow %s: %w", st.WorkflowID, err)
	}
	return workflowRow{
		ID:                  st.WorkflowID,
		CaseID:              st.CaseID,
		Status:              string(st.Status),
		CurrentStage:        string(st.CurrentStage),
		Progress:            st.Progress,
		ErrorCount:          len(st.Errors),
		EstimatedCompletion: st.EstimatedCompletion.UTC(),
		CreatedAt:           st.CreatedAt.UTC(),
		UpdatedAt:           st.UpdatedAt.UTC(),
		State:               data,
	}, nil
}

func decodeState(data []byte) (*workflow.State, error) {
	var st workflow.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode workflow state: %w", err)
	}
	return &st, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }
