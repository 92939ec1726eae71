package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finanzas/internal/core"
)

// SyncStatus tracks whether a transaction reached the spreadsheet mirror.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncDone    SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// PendingSync identifies a transaction that still has to be mirrored.
type PendingSync struct {
	ID      int64
	Version int64
}

const transactionSelect = `
	SELECT t.id, t.user_id, t.category_id, t.description, t.amount_cents, t.currency,
	       t.payment_method, t.date, t.is_recurring, t.created_at,
	       c.id, c.user_id, c.name, c.kind, c.color, c.created_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

// categoryJoin holds the nullable columns of a LEFT JOINed category.
type categoryJoin struct {
	id, userID                 sql.NullInt64
	name, kind, color, created sql.NullString
}

func (j *categoryJoin) category() *core.Category {
	if !j.id.Valid {
		return nil
	}
	return &core.Category{
		ID:        j.id.Int64,
		UserID:    j.userID.Int64,
		Name:      j.name.String,
		Kind:      core.Kind(j.kind.String),
		Color:     j.color.String,
		CreatedAt: parseTime(j.created.String),
	}
}

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t          core.Transaction
		categoryID sql.NullInt64
		cents      int64
		date       string
		recurring  int
		created    string
		cat        categoryJoin
	)
	dest := []any{&t.ID, &t.UserID, &categoryID, &t.Description, &cents, &t.Currency,
		&t.PaymentMethod, &date, &recurring, &created,
		&cat.id, &cat.userID, &cat.name, &cat.kind, &cat.color, &cat.created}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, err
	}

	d, err := parseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.Amount = core.MoneyFromCents(cents)
	t.IsRecurring = recurring != 0
	t.CreatedAt = parseTime(created)
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	t.Category = cat.category()
	return t, nil
}

// CreateTransaction inserts t as pending sync and returns it with ID and
// CreatedAt set.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions
		   (user_id, category_id, description, amount_cents, currency, payment_method, date, is_recurring, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullableID(t.CategoryID), t.Description, t.Amount.Cents(), t.Currency,
		t.PaymentMethod, t.Date.String(), boolToInt(t.IsRecurring), created)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.CreatedAt = parseTime(created)
	return t, nil
}

// ListTransactions returns every transaction of the user with its category
// resolved, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		transactionSelect+` WHERE t.user_id = ? ORDER BY t.date DESC, t.created_at DESC, t.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction loads a transaction regardless of owner. It backs the
// mirror worker, which acts on ids taken from the queue.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// GetPendingSyncTransactions returns up to limit transactions not yet
// mirrored, oldest first. Rows that failed before are retried.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version FROM transactions
		 WHERE sync_status IN ('pending', 'error')
		 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status SyncStatus) error {
	var syncedAt any
	if status == SyncDone {
		syncedAt = r.timestamp()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, synced_at = ? WHERE id = ?`, status, syncedAt, id)
	if err != nil {
		return fmt.Errorf("mark transaction %d %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark transaction %d %s: %w", id, status, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncDone)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, SyncError)
}

// SyncStatusOf returns the mirror state of a transaction.
func (r *SQLiteRepository) SyncStatusOf(ctx context.Context, id int64) (SyncStatus, error) {
	var status SyncStatus
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM transactions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync status of %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("sync status of %d: %w", id, err)
	}
	return status, nil
}
