package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finanzas/internal/core"
)

type transactionFilter struct {
	currency      string
	method        string
	recurringOnly bool
}

func (f transactionFilter) match() (func(core.Transaction) bool, error) {
	var (
		currency core.Currency
		method   core.PaymentMethod
		err      error
	)
	if f.currency != "" {
		if currency, err = core.ParseCurrency(f.currency); err != nil {
			return nil, fmt.Errorf("--currency: %w", err)
		}
	}
	if f.method != "" {
		if method, err = core.ParsePaymentMethod(f.method); err != nil {
			return nil, fmt.Errorf("--method: %w", err)
		}
	}
	return func(t core.Transaction) bool {
		if currency != "" && t.Currency != currency {
			return false
		}
		if method != "" && t.PaymentMethod != method {
			return false
		}
		return !f.recurringOnly || t.IsRecurring
	}, nil
}

func transactionsCmd(flags *rootFlags) *cobra.Command {
	var (
		username string
		filter   transactionFilter
	)

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Inspect a user's transactions",
	}
	cmd.PersistentFlags().StringVar(&username, "user", "", "owner username")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			match, err := filter.match()
			if err != nil {
				return err
			}
			user, err := a.user(cmd.Context(), username)
			if err != nil {
				return err
			}
			txs, err := a.repo.ListTransactions(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tTYPE\tDESCRIPTION\tCATEGORY\tMETHOD\tAMOUNT\tRECURRING")
			for _, t := range txs {
				if !match(t) {
					continue
				}
				name := core.UncategorizedName
				if t.Category != nil {
					name = t.Category.Name
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
					t.ID, t.Date, t.Type(), t.Description, name, t.PaymentMethod, t.Amount.Format(t.Currency), t.IsRecurring)
			}
			return w.Flush()
		}),
	}
	list.Flags().StringVar(&filter.currency, "currency", "", "only PEN or USD transactions")
	list.Flags().StringVar(&filter.method, "method", "", "only this payment method")
	list.Flags().BoolVar(&filter.recurringOnly, "recurring", false, "only recurring transactions")

	cmd.AddCommand(list)
	return cmd
}
