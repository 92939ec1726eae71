package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"finanzas/internal/core"
)

func categoriesCmd(flags *rootFlags) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List, seed and delete a user's categories",
	}
	cmd.PersistentFlags().StringVar(&username, "user", "", "owner username")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's categories",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			user, err := a.user(cmd.Context(), username)
			if err != nil {
				return err
			}
			var kind *core.Kind
			if raw, _ := cmd.Flags().GetString("kind"); raw != "" {
				k, err := core.ParseKind(raw)
				if err != nil {
					return fmt.Errorf("--kind: %w", err)
				}
				kind = &k
			}
			cats, err := a.ledger.CategoryOptions(cmd.Context(), user.ID, kind)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tCOLOR")
			for _, c := range cats {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Kind, c.Color)
			}
			return w.Flush()
		}),
	}
	list.Flags().String("kind", "", "only INCOME or EXPENSE categories")

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create any missing default categories",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			user, err := a.user(cmd.Context(), username)
			if err != nil {
				return err
			}
			before, err := a.repo.ListCategories(cmd.Context(), user.ID, nil)
			if err != nil {
				return err
			}
			if err := a.resolver.EnsureDefaults(cmd.Context(), user.ID); err != nil {
				return err
			}
			after, err := a.repo.ListCategories(cmd.Context(), user.ID, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories for %s\n", len(after)-len(before), user.Username)
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category; its transactions become uncategorized",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}
			user, err := a.user(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := a.ledger.DeleteCategory(cmd.Context(), user.ID, id); err != nil {
				return fmt.Errorf("delete category %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %d\n", id)
			return nil
		}),
	}

	cmd.AddCommand(list, seed, del)
	return cmd
}
