package worker

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	"finanzas/internal/storage"
)

// Store is the part of storage.SQLiteRepository the mirror needs.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	UserByID(ctx context.Context, id int64) (core.User, error)
	GetPendingSyncTransactions(ctx context.Context, limit int) ([]storage.PendingSync, error)
	SyncStatusOf(ctx context.Context, id int64) (storage.SyncStatus, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker mirrors recorded transactions into the spreadsheet.
type SyncWorker struct {
	store     Store
	sheets    sheets.TransactionWriter
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store Store, writer sheets.TransactionWriter, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		store:     store,
		sheets:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage processes a single sync message from AMQP. A message
// for a row that no longer exists is dropped; one for a row already synced
// is acknowledged without writing a second copy.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message", log.FieldTxID, msg.ID, "version", msg.Version)

	status, err := w.store.SyncStatusOf(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Transaction gone, dropping sync message", log.FieldTxID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync status: %w", err)
	}
	if status == storage.SyncDone {
		return nil
	}
	return w.syncTransaction(ctx, msg.ID)
}

// ProcessPending mirrors up to one batch of pending or failed rows. It is
// the backup path for messages that never reached the queue.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch when the worker starts, to recover
// from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		w.logger.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"synced", synced, "errors", failed, log.FieldBatchSize, w.batchSize*5, log.FieldOperation, log.OpStartup)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.GetPendingSyncTransactions(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions",
		log.FieldPendingRows, len(pending), log.FieldOperation, log.OpSync)
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.syncTransaction(ctx, p.ID); err != nil {
			fields := log.NewFields().WithOperation(log.OpSync).WithError(err)
			fields[log.FieldTxID] = p.ID
			w.logger.ErrorContext(ctx, "Failed to sync transaction", fields.ToSlice()...)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, id int64) error {
	t, err := w.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	user, err := w.store.UserByID(ctx, t.UserID)
	if err != nil {
		return fmt.Errorf("get owner: %w", err)
	}

	ref, err := w.sheets.AppendTransaction(ctx, sheets.NewRow(t, user.Username))
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldTxID, id, log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is written; a failed status update only means a later sweep
	// may append it again.
	if err := w.store.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldTxID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Transaction synced",
		log.FieldTxID, id,
		log.FieldSheetsRef, ref,
		log.FieldAmount, t.Amount.String(),
		log.FieldCurrency, string(t.Currency))
	return nil
}
