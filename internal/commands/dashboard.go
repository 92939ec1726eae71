package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finanzas/internal/core"
)

func dashboardCmd(flags *rootFlags) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print a user's dashboard summary",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			user, err := a.user(cmd.Context(), username)
			if err != nil {
				return err
			}
			s, err := a.ledger.Dashboard(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), user, s)
		}),
	}
	cmd.Flags().StringVar(&username, "user", "", "owner username")
	return cmd
}

func printSummary(out io.Writer, user core.User, s core.Summary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Summary for %s on %s\n\n", user.Username, s.Today)
	// The all-time totals add PEN and USD amounts together, so they carry no
	// currency symbol.
	fmt.Fprintf(w, "Income (all currencies)\t%s\n", s.IncomeTotal)
	fmt.Fprintf(w, "Expenses (all currencies)\t%s\n", s.ExpenseTotal)
	fmt.Fprintf(w, "Balance (all currencies)\t%s\n", s.Balance)
	fmt.Fprintf(w, "Ratio\t%d%% expense / %d%% income\n", s.ExpenseRatio, s.IncomeRatio)
	for _, t := range s.MonthTotalsByCurrency {
		fmt.Fprintf(w, "Month %s\t%s\n", t.Currency, t.Total.Format(t.Currency))
	}

	if len(s.MonthlyCategoryTotals) > 0 {
		fmt.Fprintln(w, "\nCATEGORY\tCURRENCY\tTOTAL\tSHARE")
		for _, c := range s.MonthlyCategoryTotals {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\n", c.Name, c.Currency, c.Total.Format(c.Currency), c.Percent)
		}
	}

	if len(s.UpcomingSubs)+len(s.OverdueSubs) > 0 {
		fmt.Fprintln(w, "\nSUBSCRIPTION\tNEXT BILLING\tAMOUNT\tSTATUS")
		for _, sub := range s.OverdueSubs {
			fmt.Fprintf(w, "%s\t%s\t%s\toverdue\n", sub.Name, sub.NextBillingDate, sub.Amount.Format(core.PEN))
		}
		for _, sub := range s.UpcomingSubs {
			fmt.Fprintf(w, "%s\t%s\t%s\tupcoming\n", sub.Name, sub.NextBillingDate, sub.Amount.Format(core.PEN))
		}
	}

	if len(s.RecentTransactions) > 0 {
		fmt.Fprintln(w, "\nDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
		for _, t := range s.RecentTransactions {
			name := core.UncategorizedName
			if t.Category != nil {
				name = t.Category.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Date, t.Description, name, t.Amount.Format(t.Currency))
		}
	}
	return w.Flush()
}
