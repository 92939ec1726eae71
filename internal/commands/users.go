package commands

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

func userCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(createUserCmd(flags))
	return cmd
}

func createUserCmd(flags *rootFlags) *cobra.Command {
	var (
		reg           services.Registration
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and seed its default categories",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, a *app) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				reg.Password = strings.TrimRight(line, "\r\n")
			}
			reg.PasswordConfirm = reg.Password

			user, err := a.accounts.Register(cmd.Context(), reg)
			var fe core.FieldErrors
			if errors.As(err, &fe) {
				return fmt.Errorf("invalid user:\n%s", formatFieldErrors(fe))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&reg.Username, "username", "", "login name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func formatFieldErrors(fe core.FieldErrors) string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", k, fe[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
