package core

import "sort"

const (
	// UncategorizedName and UncategorizedColor label breakdown groups for
	// transactions without a category.
	UncategorizedName  = "Sin categoria"
	UncategorizedColor = "#64748b"

	UpcomingLimit = 5
	OverdueLimit  = 3
	RecentLimit   = 6

	neutralExpenseRatio = 50
)

// CategoryTotal is one row of the monthly breakdown.
type CategoryTotal struct {
	Name     string
	Color    string
	Currency Currency
	Total    Money
	Percent  int // share of the currency's month total, floored
}

// CurrencyTotal pairs a currency with an amount.
type CurrencyTotal struct {
	Currency Currency
	Total    Money
}

// Summary is the dashboard view of a user's data for a given day.
type Summary struct {
	Today Date

	IncomeTotal  Money
	ExpenseTotal Money
	Balance      Money // may be negative

	MonthExpense          Money
	MonthTotalsByCurrency []CurrencyTotal
	MonthlyCategoryTotals []CategoryTotal

	ExpenseRatio int
	IncomeRatio  int

	UpcomingSubs       []Subscription
	OverdueSubs        []Subscription
	RecentTransactions []Transaction
}

type breakdownKey struct {
	name     string
	color    string
	currency Currency
}

// BuildSummary computes the dashboard figures from a user's transactions and
// subscriptions. It does not modify its inputs and depends only on them and
// today. Inactive subscriptions are ignored.
//
// Month figures cover EXPENSE transactions dated from the first day of
// today's month through today inclusive.
func BuildSummary(txs []Transaction, subs []Subscription, today Date) Summary {
	s := Summary{Today: today}
	monthStart := today.MonthStart()

	monthCents := map[Currency]int64{}
	groupCents := map[breakdownKey]int64{}
	var incomeCents, expenseCents, monthExpenseCents int64

	for _, t := range txs {
		cents := t.Amount.Cents()
		if t.Type() == Income {
			incomeCents += cents
			continue
		}
		expenseCents += cents

		if t.Date.Before(monthStart) || t.Date.After(today) {
			continue
		}
		monthExpenseCents += cents
		monthCents[t.Currency] += cents

		key := breakdownKey{name: UncategorizedName, color: UncategorizedColor, currency: t.Currency}
		if t.Category != nil {
			key.name = t.Category.Name
			key.color = t.Category.Color
		}
		groupCents[key] += cents
	}

	s.IncomeTotal = MoneyFromCents(incomeCents)
	s.ExpenseTotal = MoneyFromCents(expenseCents)
	s.Balance = s.IncomeTotal.Sub(s.ExpenseTotal)
	s.MonthExpense = MoneyFromCents(monthExpenseCents)

	for _, c := range Currencies() {
		if cents, ok := monthCents[c]; ok {
			s.MonthTotalsByCurrency = append(s.MonthTotalsByCurrency, CurrencyTotal{Currency: c, Total: MoneyFromCents(cents)})
		}
	}

	s.MonthlyCategoryTotals = make([]CategoryTotal, 0, len(groupCents))
	for key, cents := range groupCents {
		percent := 0
		if total := monthCents[key.currency]; total > 0 {
			percent = int(cents * 100 / total)
		}
		s.MonthlyCategoryTotals = append(s.MonthlyCategoryTotals, CategoryTotal{
			Name:     key.name,
			Color:    key.color,
			Currency: key.currency,
			Total:    MoneyFromCents(cents),
			Percent:  percent,
		})
	}
	sort.Slice(s.MonthlyCategoryTotals, func(i, j int) bool {
		a, b := s.MonthlyCategoryTotals[i], s.MonthlyCategoryTotals[j]
		if c := a.Total.Cmp(b.Total.Decimal); c != 0 {
			return c > 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Currency < b.Currency
	})

	s.ExpenseRatio = neutralExpenseRatio
	if sum := incomeCents + expenseCents; sum > 0 {
		s.ExpenseRatio = int(expenseCents * 100 / sum)
	}
	s.IncomeRatio = 100 - s.ExpenseRatio

	s.UpcomingSubs, s.OverdueSubs = splitSubscriptions(subs, today)
	s.RecentTransactions = recentTransactions(txs)
	return s
}

func splitSubscriptions(subs []Subscription, today Date) (upcoming, overdue []Subscription) {
	active := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.IsActive {
			active = append(active, sub)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i].NextBillingDate, active[j].NextBillingDate
		if !a.Equal(b.Time) {
			return a.Before(b)
		}
		return active[i].ID < active[j].ID
	})
	for _, sub := range active {
		if sub.IsOverdue(today) {
			if len(overdue) < OverdueLimit {
				overdue = append(overdue, sub)
			}
		} else if len(upcoming) < UpcomingLimit {
			upcoming = append(upcoming, sub)
		}
	}
	return upcoming, overdue
}

func recentTransactions(txs []Transaction) []Transaction {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(sorted) > RecentLimit {
		sorted = sorted[:RecentLimit]
	}
	return sorted
}

// MonthTotal returns the month expense total for currency c, or zero.
func (s Summary) MonthTotal(c Currency) Money {
	for _, ct := range s.MonthTotalsByCurrency {
		if ct.Currency == c {
			return ct.Total
		}
	}
	return Money{}
}
