// Package commands implements finanzasctl, the admin command line for the
// finance store.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/storage"
)

type rootFlags struct {
	dbPath   string
	timezone string
	logLevel string
	hashCost int
}

// app is the store and services a command runs against.
type app struct {
	repo     *storage.SQLiteRepository
	resolver *services.CategoryResolver
	accounts *services.AccountService
	ledger   *services.LedgerService
	logger   *log.Logger
}

func (a *app) Close() error { return a.repo.Close() }

func (a *app) user(ctx context.Context, username string) (core.User, error) {
	if username == "" {
		return core.User{}, fmt.Errorf("--user is required")
	}
	u, err := a.repo.UserByUsername(ctx, username)
	if err != nil {
		return core.User{}, fmt.Errorf("find user %q: %w", username, err)
	}
	return u, nil
}

// NewRootCmd builds the finanzasctl command tree. Defaults come from the
// same environment variables the server reads.
func NewRootCmd() *cobra.Command {
	cfg := config.Load()
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "finanzasctl",
		Short:         "Administer the finanzas store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	cmd.PersistentFlags().StringVar(&flags.timezone, "timezone", cfg.Timezone, "IANA timezone used to decide today")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().IntVar(&flags.hashCost, "bcrypt-cost", 0, "bcrypt cost for new passwords (0 keeps the default)")
	_ = cmd.PersistentFlags().MarkHidden("bcrypt-cost")

	cmd.AddCommand(migrateCmd(flags))
	cmd.AddCommand(userCmd(flags))
	cmd.AddCommand(categoriesCmd(flags))
	cmd.AddCommand(transactionsCmd(flags))
	cmd.AddCommand(subscriptionsCmd(flags))
	cmd.AddCommand(sessionsCmd(flags))
	cmd.AddCommand(dashboardCmd(flags))
	return cmd
}

func openApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	level, err := log.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{Level: level, Component: log.ComponentCLI, Output: cmd.ErrOrStderr()})

	loc, err := time.LoadLocation(flags.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", flags.timezone, err)
	}

	repo, err := storage.NewSQLiteRepository(flags.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var opts []services.AccountOption
	if flags.hashCost > 0 {
		opts = append(opts, services.WithHashCost(flags.hashCost))
	}
	resolver := services.NewCategoryResolver(repo, logger)
	return &app{
		repo:     repo,
		resolver: resolver,
		accounts: services.NewAccountService(repo, resolver, time.Hour, logger, opts...),
		ledger:   services.NewLedgerService(repo, resolver, nil, loc, logger),
		logger:   logger,
	}, nil
}

// withApp opens the store for the duration of run.
func withApp(flags *rootFlags, run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, flags)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}
