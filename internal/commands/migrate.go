package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"finanzas/internal/storage"
)

func migrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(flags.dbPath), 0755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}
			if err := storage.RunMigrations(flags.dbPath); err != nil {
				return err
			}
			v, _, err := storage.SchemaVersion(flags.dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date at version %d\n", v)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, dirty, err := storage.SchemaVersion(flags.dbPath)
			if err != nil {
				return err
			}
			if v == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d", v)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	})
	return cmd
}
