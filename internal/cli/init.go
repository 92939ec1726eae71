// Package cli holds the start-up and shutdown steps shared by cmd/finanzas,
// cmd/finanzas-worker and cmd/finanzasctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"finanzas/internal/config"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.LogLevel)
	}
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the database and applies pending migrations.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// Closer is one shutdown step.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// CloseAll runs every closer in order, even after a failure, and returns
// the collected errors.
func CloseAll(ctx context.Context, closers ...Closer) error {
	var result *multierror.Error
	for _, c := range closers {
		if c.Close == nil {
			continue
		}
		if err := c.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return result.ErrorOrNil()
}

// GracefulShutdown cancels the returned context on SIGINT or SIGTERM, then
// runs the closers within timeout. done is closed once they have finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, closers ...Closer) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if err := CloseAll(shutdownCtx, closers...); err != nil {
			logger.Error("Shutdown finished with errors", log.FieldError, err, log.FieldOperation, log.OpShutdown)
			return
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
