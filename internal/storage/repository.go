// Package storage is the SQLite-backed ledger. It is the system of record
// when DATA_BACKEND=sqlite and tracks which rows still need mirroring to
// Google Sheets.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	SyncPending = "pending"
	SyncClaimed = "syncing"
	SyncDone    = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialising through one connection
	// avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements ledger.TransactionWriter. New rows start as pending sync.
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = r.now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (date, description, category, amount_cents, type, created_at, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), t.Description, t.Category, t.Amount.Cents, string(t.Type),
		t.CreatedAt.Format(time.RFC3339), SyncPending,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read inserted id: %w", err)
	}
	t.ID = id

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"date", t.Date.String(),
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"type", t.Type)

	return t, nil
}

const selectColumns = `SELECT id, date, description, category, amount_cents, type, created_at FROM transactions`

// Get implements ledger.TransactionReader.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// List implements ledger.TransactionLister.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	return r.query(ctx, selectColumns+` ORDER BY date DESC, id DESC`)
}

// Summary implements ledger.SummaryReader.
func (r *SQLiteRepository) Summary(ctx context.Context) (core.Summary, error) {
	var s core.Summary

	rows, err := r.db.QueryContext(ctx,
		`SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*) FROM transactions GROUP BY type`)
	if err != nil {
		return s, fmt.Errorf("sum by type: %w", err)
	}
	for rows.Next() {
		var (
			typ   string
			cents int64
			n     int
		)
		if err := rows.Scan(&typ, &cents, &n); err != nil {
			rows.Close()
			return s, fmt.Errorf("scan type total: %w", err)
		}
		s.Count += n
		switch core.TransactionType(typ) {
		case core.Income:
			s.TotalIncome.Cents = cents
		case core.Expense:
			s.TotalExpense.Cents = cents
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("sum by type: %w", err)
	}
	s.NetSavings = core.Money{Cents: s.TotalIncome.Cents - s.TotalExpense.Cents}

	rows, err = r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM transactions WHERE type = ? GROUP BY category`,
		string(core.Expense))
	if err != nil {
		return s, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return s, fmt.Errorf("scan category total: %w", err)
		}
		s.ExpenseByCategory = append(s.ExpenseByCategory, ca)
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("sum by category: %w", err)
	}
	core.SortCategoryAmounts(s.ExpenseByCategory)
	return s, nil
}

// Reset implements ledger.Resetter.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.WarnContext(ctx, "All transactions deleted", "count", n)
	return nil
}

// PendingSync returns up to limit rows not yet mirrored, oldest first.
// Rows whose last sync failed are included so they get retried.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	txs, err := r.query(ctx,
		selectColumns+` WHERE sync_status IN (?, ?) ORDER BY id ASC LIMIT ?`,
		SyncPending, SyncError, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	return txs, nil
}

// ClaimSync moves a pending or failed row to SyncClaimed. It reports false
// when another caller holds the row or it needs no sync.
func (r *SQLiteRepository) ClaimSync(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ? AND sync_status IN (?, ?)`,
		SyncClaimed, id, SyncPending, SyncError)
	if err != nil {
		return false, fmt.Errorf("claim transaction sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim transaction sync: %w", err)
	}
	return n == 1, nil
}

// ReleaseSyncClaims returns rows left claimed by an interrupted worker to
// pending.
func (r *SQLiteRepository) ReleaseSyncClaims(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE sync_status = ?`, SyncPending, SyncClaimed)
	if err != nil {
		return 0, fmt.Errorf("release sync claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release sync claims: %w", err)
	}
	if n > 0 {
		slog.WarnContext(ctx, "Released interrupted sync claims", "count", n)
	}
	return n, nil
}

// MarkSynced marks a transaction as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncDone); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction whose mirroring failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

// SyncStatus returns the sync state of one row.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM transactions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	return status, err
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		date, typ string
		created   string
	)
	if err := s.Scan(&t.ID, &date, &t.Description, &t.Category, &t.Amount.Cents, &typ, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Date = d
	t.Type = core.TransactionType(typ)
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}
