package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/agent"
	"legalflow/pkg/config"
	"legalflow/pkg/model"
	"legalflow/pkg/orchestrator"
	"legalflow/pkg/workflow"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "workflows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleState(id string, created time.Time) *workflow.State {
	st := workflow.NewState(id, "case-"+id, created.Add(30*time.Minute), created)
	st.CompleteStage(workflow.StageIntake, workflow.Log{
		Timestamp: created.Add(time.Second),
		Stage:     workflow.StageIntake,
		Agent:     "intake-agent",
		Message:   "intake completed by intake-agent",
		Duration:  250 * time.Millisecond,
	})
	return st
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st := sampleState("wf-1", created)

	require.NoError(t, s.Save(ctx, st))
	got, err := s.Load(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, st.WorkflowID, got.WorkflowID)
	assert.Equal(t, workflow.StageResearch, got.CurrentStage)
	assert.Equal(t, 17, got.Progress)
	assert.Equal(t, []workflow.Stage{workflow.StageIntake}, got.CompletedStages)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, 250*time.Millisecond, got.Logs[0].Duration)
	assert.True(t, created.Equal(got.CreatedAt))

	got.Status = workflow.StatusFailed
	got.RecordError(workflow.Error{Stage: workflow.StageResearch, Message: "boom", Severity: workflow.SeverityHigh})
	require.NoError(t, s.Save(ctx, got))

	again, err := s.Load(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFailed, again.Status)
	require.Len(t, again.Errors, 1)

	var errorCount int
	require.NoError(t, s.db.QueryRow(`SELECT error_count FROM workflows WHERE id = ?`, "wf-1").Scan(&errorCount))
	assert.Equal(t, 1, errorCount)
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Load(ctx, "nope")
	require.ErrorIs(t, err, orchestrator.ErrWorkflowNotFound)
	require.ErrorIs(t, s.Delete(ctx, "nope"), orchestrator.ErrWorkflowNotFound)
}

func TestSQLiteStoreListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleState("b", base.Add(2*time.Second))))
	require.NoError(t, s.Save(ctx, sampleState("a", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, sampleState("c", base.Add(2*time.Second))))

	states, err := s.List(ctx)
	require.NoError(t, err)
	ids := make([]string, len(states))
	for i, st := range states {
		ids[i] = st.WorkflowID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, s.Delete(ctx, "b"))
	states, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[workflow.Status]int{workflow.StatusRunning: 2}, counts)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflows.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleState("wf-1", time.Now())))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Load(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "case-wf-1", got.CaseID)

	version, err := GetSchemaVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestMigrateFromVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = GetSchemaVersion(db)
	require.NoError(t, err)
	_, err = db.Exec(workflowsV1)
	require.NoError(t, err)
	require.NoError(t, setSchemaVersion(db, 1))
	_, err = db.Exec(`INSERT INTO workflows (id, case_id, status, current_stage, progress, state, created_at, updated_at)
		VALUES ('old', 'case-old', 'paused', 'research', 17, '{"workflow_id":"old","case_id":"case-old","status":"paused"}', '2024-01-01', '2024-01-01')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	version, err := GetSchemaVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	got, err := s.Load(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPaused, got.Status)

	var errorCount int
	require.NoError(t, s.db.QueryRow(`SELECT error_count FROM workflows WHERE id = 'old'`).Scan(&errorCount))
	assert.Equal(t, 0, errorCount)
}

type passAgent struct {
	*agent.Base
}

func (p *passAgent) Process(ctx context.Context, c model.Case) (model.Case, error) {
	return p.Run(ctx, c, func(_ context.Context, c model.Case) (model.Case, error) {
		c.WorkflowStage++
		return c, nil
	})
}

func (p *passAgent) HealthCheck(context.Context) bool { return true }

func TestOrchestratorOnSQLite(t *testing.T) {
	s := openTestStore(t)
	var agents []agent.Agent
	for _, typ := range []agent.Type{agent.TypeIntake, agent.TypeResearch, agent.TypeDocument} {
		agents = append(agents, &passAgent{agent.NewBase(string(typ), string(typ), typ, nil, agent.Deps{})})
	}
	orch := orchestrator.New(s, agents)
	ctx := context.Background()

	id, err := orch.StartWorkflow(ctx, model.Case{ID: "case-1", Complexity: model.ComplexityLow, Category: model.CategoryOther})
	require.NoError(t, err)
	_, err = orch.ProcessWorkflow(ctx, id, model.Case{ID: "case-1"})
	require.NoError(t, err)

	st, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Len(t, st.Logs, 6)

	require.NoError(t, orch.CancelWorkflow(ctx, id))
	_, err = s.Load(ctx, id)
	require.ErrorIs(t, err, orchestrator.ErrWorkflowNotFound)
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, config.PersistenceConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	require.NoError(t, mem.Ping(ctx))
	require.NoError(t, mem.Close())

	lite, err := Open(ctx, config.PersistenceConfig{Driver: config.StoreSQLite, Path: filepath.Join(t.TempDir(), "w.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, lite)
	require.NoError(t, lite.Close())

	_, err = Open(ctx, config.PersistenceConfig{Driver: "mongo"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
