package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finanzas/internal/core"
)

// CreateSubscription inserts s and returns it with ID and CreatedAt set.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	created := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (user_id, name, amount_cents, billing_cycle, next_billing_date, category_id, notes, is_active, auto_renew, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Name, s.Amount.Cents(), s.BillingCycle, s.NextBillingDate.String(),
		nullableID(s.CategoryID), s.Notes, boolToInt(s.IsActive), boolToInt(s.AutoRenew), created)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	s.CreatedAt = parseTime(created)
	return s, nil
}

// ListActiveSubscriptions returns the user's active subscriptions ordered by
// next billing date.
func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context, userID int64) ([]core.Subscription, error) {
	return r.listSubscriptions(ctx, `WHERE s.user_id = ? AND s.is_active = 1`, userID)
}

// ListSubscriptions returns all of the user's subscriptions, inactive ones
// included, ordered by next billing date.
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID int64) ([]core.Subscription, error) {
	return r.listSubscriptions(ctx, `WHERE s.user_id = ?`, userID)
}

func (r *SQLiteRepository) listSubscriptions(ctx context.Context, where string, args ...any) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.name, s.amount_cents, s.billing_cycle, s.next_billing_date,
		        s.category_id, s.notes, s.is_active, s.auto_renew, s.created_at,
		        c.id, c.user_id, c.name, c.kind, c.color, c.created_at
		 FROM subscriptions s
		 LEFT JOIN categories c ON c.id = s.category_id
		 `+where+`
		 ORDER BY s.next_billing_date, s.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		var (
			s          core.Subscription
			categoryID sql.NullInt64
			cents      int64
			next       string
			active     int
			renew      int
			created    string
			cat        categoryJoin
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &cents, &s.BillingCycle, &next,
			&categoryID, &s.Notes, &active, &renew, &created,
			&cat.id, &cat.userID, &cat.name, &cat.kind, &cat.color, &cat.created); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if s.NextBillingDate, err = parseDate(next); err != nil {
			return nil, err
		}
		s.Amount = core.MoneyFromCents(cents)
		s.IsActive = active != 0
		s.AutoRenew = renew != 0
		s.CreatedAt = parseTime(created)
		if categoryID.Valid {
			id := categoryID.Int64
			s.CategoryID = &id
		}
		s.Category = cat.category()
		out = append(out, s)
	}
	return out, rows.Err()
}
