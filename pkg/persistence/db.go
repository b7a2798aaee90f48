// Package persistence provides SQLite and Postgres implementations of the workflow store.
//
// Each workflow is one row keyed by workflow id. The row carries the queryable columns
// (status, stage, progress, timestamps) next to the full state document, so a row can be
// listed cheaply and loaded without joins.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"legalflow/pkg/config"
	"legalflow/pkg/logx"
	"legalflow/pkg/orchestrator"
)

// Store is a workflow store that owns a connection.
type Store interface {
	orchestrator.Store
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg config.PersistenceConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		return OpenSQLite(cfg.Path)
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case config.StoreMemory, "":
		return memoryStore{orchestrator.NewMemoryStore()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown persistence driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
}

type memoryStore struct {
	*orchestrator.MemoryStore
}

func (memoryStore) Ping(context.Context) error { return nil }
func (memoryStore) Close() error               { return nil }

// openSQLiteDB opens path with WAL mode and a busy timeout, then migrates the schema.
func openSQLiteDB(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	logx.NewLogger("persistence").Info("📦 Database initialized: %s", path)
	return db, nil
}
