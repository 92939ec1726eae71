package services

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"finanzas/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*LedgerService, *fakeStore, *fakePublisher) {
	t.Helper()
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewLedgerService(store, NewCategoryResolver(store, nil), pub, time.UTC, nil)
	svc.clock = func() time.Time { return time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC) }
	return svc, store, pub
}

func validTx(categoryID *int64) core.Transaction {
	return core.Transaction{
		CategoryID:    categoryID,
		Description:   "  almuerzo  ",
		Amount:        core.MoneyFromCents(2550),
		Currency:      core.PEN,
		PaymentMethod: core.Yape,
		Date:          core.NewDate(2024, 3, 18),
	}
}

func idOf(c core.Category) *int64 {
	id := c.ID
	return &id
}

func TestAddTransaction(t *testing.T) {
	svc, store, pub := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, svc.resolver.EnsureDefaults(ctx, 1))
	comida := store.categoryByName(1, "Comida")

	tx, err := svc.AddTransaction(ctx, 1, validTx(idOf(comida)), nil)
	require.NoError(t, err)

	assert.Equal(t, "almuerzo", tx.Description)
	assert.Equal(t, int64(1), tx.UserID)
	require.NotNil(t, tx.Category)
	assert.Equal(t, core.Expense, tx.Type())
	assert.Equal(t, []int64{tx.ID}, pub.published)
}

func TestAddTransactionWithoutCategory(t *testing.T) {
	svc, _, _ := newTestLedger(t)

	tx, err := svc.AddTransaction(context.Background(), 1, validTx(nil), nil)
	require.NoError(t, err)
	assert.Nil(t, tx.Category)
	assert.Equal(t, core.Expense, tx.Type())
}

func TestAddTransactionRejectsForeignCategory(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, svc.resolver.EnsureDefaults(ctx, 2))
	foreign := store.categoryByName(2, "Comida")

	_, err := svc.AddTransaction(ctx, 1, validTx(idOf(foreign)), nil)

	var fe core.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, msgInvalidCategory, fe["category"])
	txs, _ := store.ListTransactions(ctx, 1)
	assert.Empty(t, txs)
}

func TestAddTransactionRestrictedToIncome(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, svc.resolver.EnsureDefaults(ctx, 1))
	income := core.Income

	t.Run("expense category rejected", func(t *testing.T) {
		_, err := svc.AddTransaction(ctx, 1, validTx(idOf(store.categoryByName(1, "Vivienda"))), &income)
		var fe core.FieldErrors
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, msgInvalidCategory, fe["category"])
	})

	t.Run("category required", func(t *testing.T) {
		_, err := svc.AddTransaction(ctx, 1, validTx(nil), &income)
		var fe core.FieldErrors
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, msgIncomeCategory, fe["category"])
	})

	t.Run("income category accepted", func(t *testing.T) {
		tx, err := svc.AddTransaction(ctx, 1, validTx(idOf(store.categoryByName(1, "Salario"))), &income)
		require.NoError(t, err)
		assert.Equal(t, core.Income, tx.Type())
	})
}

func TestAddTransactionCollectsAllFieldErrors(t *testing.T) {
	svc, _, pub := newTestLedger(t)
	missing := int64(999)

	_, err := svc.AddTransaction(context.Background(), 1, core.Transaction{
		CategoryID:    &missing,
		Amount:        core.MoneyFromCents(-5),
		Currency:      "EUR",
		PaymentMethod: "CHEQUE",
	}, nil)

	var fe core.FieldErrors
	require.True(t, errors.As(err, &fe))
	for _, field := range []string{"amount", "currency", "payment_method", "date", "category"} {
		assert.Contains(t, fe, field)
	}
	assert.Empty(t, pub.published)
}

func TestAddTransactionPublishFailureIsNotFatal(t *testing.T) {
	svc, store, pub := newTestLedger(t)
	pub.err = errBoom
	ctx := context.Background()

	tx, err := svc.AddTransaction(ctx, 1, validTx(nil), nil)
	require.NoError(t, err)

	txs, _ := store.ListTransactions(ctx, 1)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
}

func TestAddTransactionWithoutPublisher(t *testing.T) {
	store := newFakeStore()
	svc := NewLedgerService(store, NewCategoryResolver(store, nil), nil, nil, nil)

	_, err := svc.AddTransaction(context.Background(), 1, validTx(nil), nil)
	require.NoError(t, err)
}

func TestAddSubscription(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, svc.resolver.EnsureDefaults(ctx, 1))

	sub, err := svc.AddSubscription(ctx, 1, core.Subscription{
		Name:            " Netflix ",
		Amount:          core.MoneyFromCents(4490),
		BillingCycle:    core.Monthly,
		NextBillingDate: core.NewDate(2024, 3, 25),
		CategoryID:      idOf(store.categoryByName(1, "Salario")),
		IsActive:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Netflix", sub.Name)
	require.NotNil(t, sub.Category, "any owned category is accepted")

	_, err = svc.AddSubscription(ctx, 1, core.Subscription{})
	var fe core.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "name")
	assert.Contains(t, fe, "billing_cycle")
}

func TestAddCategory(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	c, err := svc.AddCategory(ctx, 1, core.Category{Name: "Mascotas", Kind: core.Expense})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCategoryColor, c.Color)

	_, err = svc.AddCategory(ctx, 1, core.Category{Name: "Mascotas", Kind: core.Expense})
	var fe core.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, msgDuplicateCategory, fe["name"])

	_, err = svc.AddCategory(ctx, 1, core.Category{Name: "Mascotas", Kind: core.Income})
	assert.NoError(t, err, "same name with another kind is allowed")
}

func TestDashboard(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, svc.resolver.EnsureDefaults(ctx, 1))
	income := core.Income

	salary := validTx(idOf(store.categoryByName(1, "Salario")))
	salary.Amount = core.MoneyFromCents(300000)
	_, err := svc.AddTransaction(ctx, 1, salary, &income)
	require.NoError(t, err)
	_, err = svc.AddTransaction(ctx, 1, validTx(idOf(store.categoryByName(1, "Comida"))), nil)
	require.NoError(t, err)

	sum, err := svc.Dashboard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 3, 20), sum.Today)
	assert.Equal(t, int64(300000), sum.IncomeTotal.Cents())
	assert.Equal(t, int64(2550), sum.ExpenseTotal.Cents())
	assert.Len(t, sum.RecentTransactions, 2)

	other, err := svc.Dashboard(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other.RecentTransactions)
}

func TestDashboardPropagatesStoreErrors(t *testing.T) {
	svc, store, _ := newTestLedger(t)
	store.listErr = errBoom

	_, err := svc.Dashboard(context.Background(), 1)
	assert.ErrorIs(t, err, errBoom)
}

func TestCategoryOptionsSeedsAndFilters(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	income := core.Income

	cats, err := svc.CategoryOptions(context.Background(), 1, &income)
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	for _, c := range cats {
		assert.Equal(t, core.Income, c.Kind)
	}
}

func TestToday(t *testing.T) {
	store := newFakeStore()
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	svc := NewLedgerService(store, NewCategoryResolver(store, nil), nil, lima, nil)
	svc.clock = func() time.Time { return time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC) }

	assert.Equal(t, core.NewDate(2024, 3, 31), svc.Today())
}
