package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"legalflow/pkg/logx"
	"legalflow/pkg/orchestrator"
	"legalflow/pkg/workflow"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('running','paused','completed','failed')),
	current_stage TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
	estimated_completion TIMESTAMPTZ,
	error_count INTEGER NOT NULL DEFAULT 0,
	state JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_case ON workflows(case_id);
CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);
CREATE INDEX IF NOT EXISTS idx_workflows_created ON workflows(created_at, id);
`

// PostgresStore keeps workflows in a shared Postgres database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, retrying the initial ping, and creates the table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}
	poolConfig.MaxConns = 8
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	logger := logx.NewLogger("persistence")
	const maxRetries = 3
	var pool *pgxpool.Pool
	for attempt := 0; attempt < maxRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn("Postgres connection attempt %d/%d failed: %v", attempt+1, maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to postgres: %w", ctx.Err())
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	logger.Info("📦 Postgres workflow store ready (%s)", poolConfig.ConnConfig.Host)
	return &PostgresStore{pool: pool}, nil
}

// Save implements orchestrator.Store.
func (s *PostgresStore) Save(ctx context.Context, st *workflow.State) error {
	row, err := newRow(st)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflows (id, case_id, status, current_stage, progress, estimated_completion,
			error_count, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_stage = EXCLUDED.current_stage,
			progress = EXCLUDED.progress,
			estimated_completion = EXCLUDED.estimated_completion,
			error_count = EXCLUDED.error_count,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		row.ID, row.CaseID, row.Status, row.CurrentStage, row.Progress, row.EstimatedCompletion,
		row.ErrorCount, string(row.State), row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", st.WorkflowID, err)
	}
	return nil
}

// Load implements orchestrator.Store.
func (s *PostgresStore) Load(ctx context.Context, id string) (*workflow.State, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM workflows WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", orchestrator.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return decodeState(data)
}

// Delete implements orchestrator.Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", orchestrator.ErrWorkflowNotFound, id)
	}
	return nil
}

// List implements orchestrator.Store, oldest first.
func (s *PostgresStore) List(ctx context.Context) ([]*workflow.State, error) {
	rows, err := s.pool.Query(ctx, `SELECT state FROM workflows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []*workflow.State
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		st, err := decodeState(data)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of workflows in each status.
func (s *PostgresStore) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM workflows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}
	defer rows.Close()

	out := make(map[workflow.Status]int)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan workflow count: %w", err)
		}
		out[workflow.Status(status)] = int(n)
	}
	return out, rows.Err() //nolint:wrapcheck // iteration error
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx) //nolint:wrapcheck // caller adds context
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
