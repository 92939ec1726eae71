package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"

	"golang.org/x/sync/errgroup"
)

const (
	msgInvalidCategory   = "Selecciona una opcion valida. Esa opcion no esta entre las disponibles."
	msgIncomeCategory    = "Selecciona una categoria de ingreso."
	msgDuplicateCategory = "Ya tienes una categoria con este nombre y tipo."
)

// LedgerService records transactions, subscriptions and categories for a
// user and computes the dashboard.
type LedgerService struct {
	store     LedgerStore
	resolver  *CategoryResolver
	publisher SyncPublisher
	loc       *time.Location
	clock     func() time.Time
	logger    *log.Logger
}

// NewLedgerService wires the ledger. publisher may be nil, in which case
// new transactions stay pending until a sweep picks them up.
func NewLedgerService(store LedgerStore, resolver *CategoryResolver, publisher SyncPublisher, loc *time.Location, logger *log.Logger) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		loc:       loc,
		clock:     time.Now,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Today is the current calendar day in the configured timezone.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.clock().In(s.loc))
}

// Dashboard loads the user's transactions and active subscriptions and
// summarizes them as of today.
func (s *LedgerService) Dashboard(ctx context.Context, userID int64) (core.Summary, error) {
	var (
		txs  []core.Transaction
		subs []core.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.store.ListActiveSubscriptions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("load dashboard: %w", err)
	}
	return core.BuildSummary(txs, subs, s.Today()), nil
}

// CategoryOptions returns the categories a form may offer, provisioning the
// defaults first. kind restricts the list when non-nil.
func (s *LedgerService) CategoryOptions(ctx context.Context, userID int64, kind *core.Kind) ([]core.Category, error) {
	if err := s.resolver.EnsureDefaults(ctx, userID); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("category options: %w", err)
	}
	return cats, nil
}

// ownedCategory resolves id for userID. A category owned by someone else is
// reported as a field error, indistinguishable from a missing one.
func (s *LedgerService) ownedCategory(ctx context.Context, userID int64, id *int64, restrict *core.Kind, fe core.FieldErrors) (*core.Category, error) {
	if id == nil {
		if restrict != nil {
			fe.Add("category", msgIncomeCategory)
		}
		return nil, nil
	}
	c, err := s.store.GetCategory(ctx, userID, *id)
	if errors.Is(err, storage.ErrNotFound) {
		fe.Add("category", msgInvalidCategory)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if restrict != nil && c.Kind != *restrict {
		fe.Add("category", msgInvalidCategory)
		return nil, nil
	}
	return &c, nil
}

func mergeFieldErrors(dst core.FieldErrors, err error) {
	var fe core.FieldErrors
	if errors.As(err, &fe) {
		for k, v := range fe {
			dst.Add(k, v)
		}
	}
}

// AddTransaction validates and records t for userID. When restrict is set
// the transaction must carry a category of that kind; this is how the income
// form guarantees its rows count as income.
func (s *LedgerService) AddTransaction(ctx context.Context, userID int64, t core.Transaction, restrict *core.Kind) (core.Transaction, error) {
	if err := s.resolver.EnsureDefaults(ctx, userID); err != nil {
		return core.Transaction{}, err
	}

	t.UserID = userID
	t.Description = strings.TrimSpace(t.Description)
	fe := core.FieldErrors{}
	mergeFieldErrors(fe, t.Validate())

	cat, err := s.ownedCategory(ctx, userID, t.CategoryID, restrict, fe)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("resolve category: %w", err)
	}
	if err := fe.Err(); err != nil {
		return core.Transaction{}, err
	}
	t.Category = cat

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID,
		log.FieldTxID, created.ID,
		log.FieldTxType, string(created.Type()),
		log.FieldAmount, created.Amount.String(),
		log.FieldCurrency, string(created.Currency))

	s.publishSync(ctx, created.ID)
	return created, nil
}

func (s *LedgerService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	// The row is already stored; a failed publish is retried by the sweep.
	if err := s.publisher.PublishTransactionSync(ctx, id, 1); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			log.FieldTxID, id, log.FieldError, err, log.FieldOperation, log.OpPublish)
	}
}

// AddSubscription validates and records sub for userID.
func (s *LedgerService) AddSubscription(ctx context.Context, userID int64, sub core.Subscription) (core.Subscription, error) {
	if err := s.resolver.EnsureDefaults(ctx, userID); err != nil {
		return core.Subscription{}, err
	}

	sub.UserID = userID
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Notes = strings.TrimSpace(sub.Notes)
	fe := core.FieldErrors{}
	mergeFieldErrors(fe, sub.Validate())

	cat, err := s.ownedCategory(ctx, userID, sub.CategoryID, nil, fe)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("resolve category: %w", err)
	}
	if err := fe.Err(); err != nil {
		return core.Subscription{}, err
	}
	sub.Category = cat

	created, err := s.store.CreateSubscription(ctx, sub)
	if err != nil {
		return core.Subscription{}, err
	}
	s.logger.InfoContext(ctx, "Subscription created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID,
		log.FieldSubName, created.Name,
		log.FieldAmount, created.Amount.String())
	return created, nil
}

// AddCategory validates and records c for userID. An empty color gets the
// default one.
func (s *LedgerService) AddCategory(ctx context.Context, userID int64, c core.Category) (core.Category, error) {
	c.UserID = userID
	c.Name = strings.TrimSpace(c.Name)
	if c.Color == "" {
		c.Color = core.DefaultCategoryColor
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, c)
	if errors.Is(err, storage.ErrDuplicate) {
		return core.Category{}, core.FieldErrors{"name": msgDuplicateCategory}
	}
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID,
		log.FieldCategory, created.Name,
		log.FieldCategoryID, created.ID)
	return created, nil
}

// DeleteCategory removes an owned category; its transactions and
// subscriptions become uncategorised.
func (s *LedgerService) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldOperation, log.OpDelete, log.FieldUserID, userID, log.FieldCategoryID, id)
	return nil
}
