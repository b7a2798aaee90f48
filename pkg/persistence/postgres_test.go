package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/orchestrator"
	"legalflow/pkg/workflow"
)

// Set LEGALFLOW_TEST_POSTGRES_DSN to run against a real server.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LEGALFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEGALFLOW_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Ping(ctx))

	id := uuid.NewString()
	st := sampleState(id, time.Now().UTC().Truncate(time.Microsecond))
	t.Cleanup(func() { _ = s.Delete(context.Background(), id) })

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, st))
		got, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, st.CaseID, got.CaseID)
		assert.Equal(t, st.CompletedStages, got.CompletedStages)
	})

	t.Run("update", func(t *testing.T) {
		st.Status = workflow.StatusPaused
		require.NoError(t, s.Save(ctx, st))
		got, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusPaused, got.Status)

		counts, err := s.CountByStatus(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, counts[workflow.StatusPaused], 1)
	})

	t.Run("list", func(t *testing.T) {
		states, err := s.List(ctx)
		require.NoError(t, err)
		found := false
		for _, s := range states {
			found = found || s.WorkflowID == id
		}
		assert.True(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, id))
		_, err := s.Load(ctx, id)
		require.ErrorIs(t, err, orchestrator.ErrWorkflowNotFound)
		require.ErrorIs(t, s.Delete(ctx, id), orchestrator.ErrWorkflowNotFound)
	})
}
