package services

import (
	"context"
	"time"

	"finanzas/internal/core"
)

// Store ports implemented by storage.SQLiteRepository.
type (
	CategoryStore interface {
		EnsureCategory(ctx context.Context, c core.Category) (created bool, err error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
		ListCategories(ctx context.Context, userID int64, kind *core.Kind) ([]core.Category, error)
		DeleteCategory(ctx context.Context, userID, id int64) error
	}

	LedgerStore interface {
		CategoryStore
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
		CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		ListActiveSubscriptions(ctx context.Context, userID int64) ([]core.Subscription, error)
	}

	AccountStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByUsername(ctx context.Context, username string) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
		SessionUser(ctx context.Context, token string, now time.Time) (core.User, error)
		DeleteSession(ctx context.Context, token string) error
	}

	// SyncPublisher queues a transaction for the spreadsheet mirror.
	SyncPublisher interface {
		PublishTransactionSync(ctx context.Context, id, version int64) error
	}
)
