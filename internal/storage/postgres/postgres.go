// Package postgres provides a PostgreSQL ledger.Store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL connection settings.
type Config struct {
	// DSN is a libpq keyword/value string or a postgres:// URL.
	DSN string
	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// New connects, verifies the connection and applies the schema.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
	)

	s := &Store{pool: pool, logger: logger}
	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Append implements ledger.TransactionWriter.
func (s *Store) Append(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO transactions (date, description, category, amount_cents, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		t.Date.Time, t.Description, t.Category, t.Amount.Cents, string(t.Type),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("inserting transaction: %w", err)
	}
	return t, nil
}

const selectColumns = `SELECT id, date, description, category, amount_cents, type, created_at FROM transactions`

// Get implements ledger.TransactionReader.
func (s *Store) Get(ctx context.Context, id int64) (core.Transaction, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE id = $1`, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("querying transaction %d: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("reading transaction %d: %w", id, err)
	}
	return t, nil
}

// List implements ledger.TransactionLister.
func (s *Store) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return txs, nil
}

// Summary implements ledger.SummaryReader.
func (s *Store) Summary(ctx context.Context) (core.Summary, error) {
	var sum core.Summary
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'Income'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE type = 'Expense'), 0),
			COUNT(*)
		FROM transactions`,
	).Scan(&sum.TotalIncome.Cents, &sum.TotalExpense.Cents, &sum.Count)
	if err != nil {
		return sum, fmt.Errorf("summing transactions: %w", err)
	}
	sum.NetSavings = core.Money{Cents: sum.TotalIncome.Cents - sum.TotalExpense.Cents}

	rows, err := s.pool.Query(ctx, `
		SELECT category, SUM(amount_cents)
		FROM transactions
		WHERE type = 'Expense'
		GROUP BY category`)
	if err != nil {
		return sum, fmt.Errorf("summing by category: %w", err)
	}
	sum.ExpenseByCategory, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CategoryAmount, error) {
		var ca core.CategoryAmount
		err := row.Scan(&ca.Name, &ca.Amount.Cents)
		return ca, err
	})
	if err != nil {
		return sum, fmt.Errorf("reading category sums: %w", err)
	}
	if len(sum.ExpenseByCategory) == 0 {
		sum.ExpenseByCategory = nil
	}
	core.SortCategoryAmounts(sum.ExpenseByCategory)
	return sum, nil
}

// Reset implements ledger.Resetter.
func (s *Store) Reset(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions`)
	if err != nil {
		return fmt.Errorf("deleting transactions: %w", err)
	}
	s.logger.WarnContext(ctx, "all transactions deleted", "count", tag.RowsAffected())
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		t    core.Transaction
		date time.Time
		typ  string
	)
	if err := row.Scan(&t.ID, &date, &t.Description, &t.Category, &t.Amount.Cents, &typ, &t.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	t.Date = core.DateOf(date)
	t.Type = core.TransactionType(typ)
	return t, nil
}
