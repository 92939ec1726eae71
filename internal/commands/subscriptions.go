package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finanzas/internal/core"
)

func subscriptionsCmd(flags *rootFlags) *cobra.Command {
	var (
		username   string
		activeOnly bool
		cycle      string
	)

	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Inspect a user's subscriptions",
	}
	cmd.PersistentFlags().StringVar(&username, "user", "", "owner username")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's subscriptions by next billing date",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			var want core.BillingCycle
			if cycle != "" {
				c, err := core.ParseBillingCycle(cycle)
				if err != nil {
					return fmt.Errorf("--cycle: %w", err)
				}
				want = c
			}
			user, err := a.user(cmd.Context(), username)
			if err != nil {
				return err
			}
			var subs []core.Subscription
			if activeOnly {
				subs, err = a.repo.ListActiveSubscriptions(cmd.Context(), user.ID)
			} else {
				subs, err = a.repo.ListSubscriptions(cmd.Context(), user.ID)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCYCLE\tNEXT BILLING\tAMOUNT\tACTIVE\tAUTO RENEW")
			for _, s := range subs {
				if want != "" && s.BillingCycle != want {
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%t\n",
					s.ID, s.Name, s.BillingCycle, s.NextBillingDate, s.Amount.Format(core.PEN), s.IsActive, s.AutoRenew)
			}
			return w.Flush()
		}),
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "only active subscriptions")
	list.Flags().StringVar(&cycle, "cycle", "", "only WEEKLY, MONTHLY or YEARLY subscriptions")

	cmd.AddCommand(list)
	return cmd
}
