// Package worker mirrors stored transactions to Google Sheets. It reacts to
// TransactionRecorded messages and periodically sweeps rows whose message
// was lost or whose last attempt failed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/storage"
)

// Store is the part of the SQLite repository the worker needs.
type Store interface {
	Get(ctx context.Context, id int64) (core.Transaction, error)
	PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	SyncStatus(ctx context.Context, id int64) (string, error)
	ClaimSync(ctx context.Context, id int64) (bool, error)
	ReleaseSyncClaims(ctx context.Context) (int64, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

var _ Store = (*storage.SQLiteRepository)(nil)

// Mirror receives one row per transaction.
type Mirror interface {
	Append(ctx context.Context, t core.Transaction) (string, error)
}

// Consumer delivers TransactionRecorded messages until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

type SyncWorker struct {
	store     Store
	mirror    Mirror
	batchSize int
	logger    *applog.Logger
	metrics   *metrics.Metrics
}

func NewSyncWorker(store Store, mirror Mirror, batchSize int, logger *applog.Logger, m *metrics.Metrics) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
		metrics:   m,
	}
}

// HandleTransactionRecorded is the amqp.Handler for new transactions. A
// returned error requeues the message.
func (w *SyncWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	w.logger.DebugContext(ctx, "Processing transaction recorded message",
		applog.FieldTransactionID, msg.ID,
		"published_at", msg.Timestamp)

	t, err := w.store.Get(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted by a reset before the worker got to it.
		w.logger.WarnContext(ctx, "Transaction no longer exists, dropping message", applog.FieldTransactionID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %d: %w", msg.ID, err)
	}

	status, err := w.store.SyncStatus(ctx, msg.ID)
	if err == nil && status == storage.SyncDone {
		w.logger.DebugContext(ctx, "Transaction already synced", applog.FieldTransactionID, msg.ID)
		return nil
	}

	_, err = w.sync(ctx, t)
	return err
}

// ProcessPending mirrors up to one batch of unsynced rows and returns how
// many succeeded.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.PendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", "count", len(pending))
	synced := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		ok, err := w.sync(ctx, t)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync transaction", applog.FieldTransactionID, t.ID, applog.FieldError, err)
			continue
		}
		if ok {
			synced++
		}
	}
	return synced, nil
}

// Run releases claims left by a previous run and sweeps pending rows once,
// then consumes messages and sweeps every interval until ctx is cancelled or
// the consumer fails.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if _, err := w.store.ReleaseSyncClaims(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to release sync claims", applog.FieldError, err)
	}
	if n, err := w.ProcessPending(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync check failed", applog.FieldError, err)
	} else {
		w.logger.InfoContext(ctx, "Startup sync check completed", "synced", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Consume(gctx, w.HandleTransactionRecorded)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := w.ProcessPending(gctx); err != nil && gctx.Err() == nil {
					w.logger.ErrorContext(gctx, "Periodic sync failed", applog.FieldError, err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// sync claims t and appends it to the mirror. It reports false without an
// error when the row is claimed elsewhere or already synced.
func (w *SyncWorker) sync(ctx context.Context, t core.Transaction) (bool, error) {
	claimed, err := w.store.ClaimSync(ctx, t.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Transaction claimed elsewhere or already synced", applog.FieldTransactionID, t.ID)
		return false, nil
	}

	ref, err := w.mirror.Append(ctx, t)
	if err != nil {
		w.metrics.SheetSync(false)
		if markErr := w.store.MarkSyncError(ctx, t.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", applog.FieldTransactionID, t.ID, applog.FieldError, markErr)
		}
		return false, fmt.Errorf("append to sheet: %w", err)
	}
	w.metrics.SheetSync(true)

	if err := w.store.MarkSynced(ctx, t.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", applog.FieldTransactionID, t.ID, applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Transaction synced",
		applog.FieldTransactionID, t.ID,
		"sheets_ref", ref,
		applog.FieldAmountCents, t.Amount.Cents,
		applog.FieldType, string(t.Type))
	return true, nil
}
