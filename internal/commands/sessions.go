package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func sessionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain login sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			n, err := a.repo.DeleteExpiredSessions(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired sessions\n", n)
			return nil
		}),
	})
	return cmd
}
