package services

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

// CategoryResolver provisions the default categories of a user.
type CategoryResolver struct {
	store  CategoryStore
	logger *log.Logger
}

func NewCategoryResolver(store CategoryStore, logger *log.Logger) *CategoryResolver {
	if logger == nil {
		logger = log.Discard()
	}
	return &CategoryResolver{store: store, logger: logger.WithComponent(log.ComponentResolver)}
}

// EnsureDefaults creates whichever default categories the user is missing.
// It is idempotent and safe to run concurrently for the same user: the store
// inserts each (owner, name, kind) at most once and never rewrites an
// existing row.
func (r *CategoryResolver) EnsureDefaults(ctx context.Context, userID int64) error {
	seeded := 0
	for _, c := range core.DefaultCategories() {
		c.UserID = userID
		created, err := r.store.EnsureCategory(ctx, c)
		if err != nil {
			return fmt.Errorf("ensure default categories: %w", err)
		}
		if created {
			seeded++
		}
	}
	if seeded > 0 {
		r.logger.InfoContext(ctx, "Seeded default categories",
			log.FieldUserID, userID, log.FieldSeeded, seeded, log.FieldOperation, log.OpSeed)
	}
	return nil
}
