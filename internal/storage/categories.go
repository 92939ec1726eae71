package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finanzas/internal/core"
)

const categoryColumns = `id, user_id, name, kind, color, created_at`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c       core.Category
		created string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Kind, &c.Color, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, ErrNotFound
		}
		return core.Category{}, err
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// EnsureCategory inserts c unless the owner already has a category with the
// same name and kind. It reports whether a row was created. An existing row
// is left untouched, color included.
func (r *SQLiteRepository) EnsureCategory(ctx context.Context, c core.Category) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, kind, color, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, name, kind) DO NOTHING`,
		c.UserID, c.Name, c.Kind, c.Color, r.timestamp())
	if err != nil {
		return false, fmt.Errorf("ensure category %q: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure category %q: %w", c.Name, err)
	}
	return n == 1, nil
}

// CreateCategory inserts c. A (owner, name, kind) collision yields
// ErrDuplicate.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	created := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, kind, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Kind, c.Color, created)
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, ErrDuplicate)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// GetCategory returns the category only when userID owns it.
func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

// ListCategories returns the user's categories ordered by name, optionally
// restricted to one kind.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, kind *core.Kind) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []any{userID}
	if kind != nil {
		query += ` AND kind = ?`
		args = append(args, *kind)
	}
	query += ` ORDER BY name COLLATE NOCASE, kind`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes an owned category. Transactions and subscriptions
// that referenced it keep existing with no category.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "subscriptions"} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET category_id = NULL WHERE category_id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("detach %s from category %d: %w", table, id, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete category %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
