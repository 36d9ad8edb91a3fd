package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// Store is what the worker reads and marks.
type Store interface {
	FindTransactionByID(ctx context.Context, id string) (core.Transaction, error)
	FindAccounts(ctx context.Context, owner string) ([]core.Account, error)
	storage.SyncTracker
}

// SyncWorker mirrors committed transactions into a LedgerMirror. Events
// drive it; the periodic backfill covers lost events and downtime.
type SyncWorker struct {
	store     Store
	mirror    sheets.LedgerMirror
	batchSize int
}

func NewSyncWorker(store Store, mirror sheets.LedgerMirror, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single transaction event from AMQP.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.DebugContext(ctx, "Processing transaction event", log.FieldComponent, log.ComponentWorker,
		"id", ev.ID,
		"op", ev.Op,
		"version", ev.Version)

	switch ev.Op {
	case amqp.OpDelete:
		return w.syncDeletion(ctx, ev.ID)
	default:
		return w.syncTransaction(ctx, ev.ID)
	}
}

// ProcessPending mirrors up to one batch of out-of-date records and returns
// how many succeeded.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch once at startup to recover from
// downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", log.FieldComponent, log.ComponentWorker, log.FieldOperation, log.OpStartup, "synced", synced)
	return nil
}

// Run backfills every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Sync backfill started", log.FieldComponent, log.ComponentWorker, "interval", interval, "batch_size", w.batchSize)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Sync backfill stopped", log.FieldComponent, log.ComponentWorker)
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Sync backfill failed", log.FieldComponent, log.ComponentWorker, "error", err)
			}
		}
	}
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", log.FieldComponent, log.ComponentWorker, log.FieldOperation, log.OpSync, "count", len(pending))

	synced := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}

		var err error
		if p.Deleted {
			err = w.syncDeletion(ctx, p.ID)
		} else {
			err = w.syncTransaction(ctx, p.ID)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", log.FieldComponent, log.ComponentWorker,
				"id", p.ID,
				"deleted", p.Deleted,
				"error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, id string) error {
	tx, err := w.store.FindTransactionByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// deleted after the event was sent; its tombstone is handled separately
		slog.DebugContext(ctx, "Transaction no longer exists, skipping upsert", log.FieldComponent, log.ComponentWorker, "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	accounts, err := w.store.FindAccounts(ctx, tx.Owner)
	if err != nil {
		return fmt.Errorf("get accounts from storage: %w", err)
	}

	row := sheets.NewLedgerRow(tx.Resolve(core.RefIndex(accounts)), tx.Version)
	if err := w.mirror.Upsert(ctx, row); err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", log.FieldComponent, log.ComponentWorker, "id", id, "error", markErr)
		}
		return fmt.Errorf("upsert mirror row: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id, tx.Version); err != nil {
		// the row is mirrored; a later pass rewrites it harmlessly
		slog.ErrorContext(ctx, "Failed to mark as synced", log.FieldComponent, log.ComponentWorker, "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction", log.FieldComponent, log.ComponentWorker,
		"id", id,
		"version", tx.Version,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (w *SyncWorker) syncDeletion(ctx context.Context, id string) error {
	if err := w.mirror.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete mirror row: %w", err)
	}
	if err := w.store.ClearTombstone(ctx, id); err != nil {
		return fmt.Errorf("clear tombstone: %w", err)
	}
	slog.InfoContext(ctx, "Successfully deleted mirrored transaction", log.FieldComponent, log.ComponentWorker, "id", id)
	return nil
}
