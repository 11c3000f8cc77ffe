// Package backend builds the ledger.Store selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"

	"kharcha/internal/config"
	"kharcha/internal/ledger"
	"kharcha/internal/ledger/memory"
	applog "kharcha/internal/log"
	"kharcha/internal/storage"
	"kharcha/internal/storage/postgres"
)

// CleanupFunc releases the backend's resources.
type CleanupFunc func() error

// Result is an opened backend.
type Result struct {
	Type  string
	Store ledger.Store
	// SQLite is set only for the sqlite backend; the sync worker needs its
	// sync-status operations.
	SQLite *storage.SQLiteRepository
	// Ping reports whether the backend can serve requests.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Open creates the backend named by cfg.DataBackend.
func Open(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentBackend)

	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.Info("Initialized memory backend")
		return &Result{
			Type:    config.BackendMemory,
			Store:   memory.New(),
			Ping:    func(context.Context) error { return nil },
			Cleanup: func() error { return nil },
		}, nil

	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{
			Type:    config.BackendSQLite,
			Store:   repo,
			SQLite:  repo,
			Ping:    repo.Ping,
			Cleanup: repo.Close,
		}, nil

	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.PostgresDSN}, logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
		}
		logger.Info("Initialized PostgreSQL backend")
		return &Result{
			Type:  config.BackendPostgres,
			Store: store,
			Ping:  store.Ping,
			Cleanup: func() error {
				store.Close()
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}
