package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"legalflow/pkg/orchestrator"
	"legalflow/pkg/workflow"
)

// SQLiteStore keeps workflows in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := openSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements orchestrator.Store.
func (s *SQLiteStore) Save(ctx context.Context, st *workflow.State) error {
	row, err := newRow(st)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO workflows (id, case_id, status, current_stage, progress, estimated_completion,
			error_count, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_stage = excluded.current_stage,
			progress = excluded.progress,
			estimated_completion = excluded.estimated_completion,
			error_count = excluded.error_count,
			state = excluded.state,
			updated_at = excluded.updated_at`
	err = retryOp(ctx, defaultRetryConfig, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			row.ID, row.CaseID, row.Status, row.CurrentStage, row.Progress,
			formatTime(row.EstimatedCompletion), row.ErrorCount, string(row.State),
			formatTime(row.CreatedAt), formatTime(row.UpdatedAt))
		return execErr //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", st.WorkflowID, err)
	}
	return nil
}

// Load implements orchestrator.Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*workflow.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM workflows WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", orchestrator.ErrWorkflowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return decodeState([]byte(data))
}

// Delete implements orchestrator.Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	var affected int64
	err := retryOp(ctx, defaultRetryConfig, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
		if execErr != nil {
			return execErr //nolint:wrapcheck // wrapped below
		}
		affected, execErr = res.RowsAffected()
		return execErr //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", orchestrator.ErrWorkflowNotFound, id)
	}
	return nil
}

// List implements orchestrator.Store, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*workflow.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM workflows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*workflow.State
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		st, err := decodeState([]byte(data))
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
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[workflow.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM workflows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[workflow.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan workflow count: %w", err)
		}
		out[workflow.Status(status)] = n
	}
	return out, rows.Err() //nolint:wrapcheck // iteration error
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx) //nolint:wrapcheck // caller adds context
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
