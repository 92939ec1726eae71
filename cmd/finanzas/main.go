package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	closers := []cli.Closer{}

	// The mirror is optional: without a broker transactions stay pending
	// until the worker's sweep finds them.
	var publisher services.SyncPublisher
	if cfg.MirrorEnabled() {
		dialCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		client, err := amqp.DialWithRetry(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5, logger)
		cancel()
		if err != nil {
			logger.Warn("AMQP unavailable, spreadsheet mirror will rely on the worker sweep", log.FieldError, err)
		} else {
			publisher = client
			closers = append(closers, cli.Closer{Name: "amqp", Close: func(context.Context) error { return client.Close() }})
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	resolver := services.NewCategoryResolver(repo, logger)
	accounts := services.NewAccountService(repo, resolver, cfg.SessionTTL, logger)
	ledger := services.NewLedgerService(repo, resolver, publisher, cfg.Location(), logger)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               net.JoinHostPort("", cfg.Port),
		CookieName:         cfg.SessionCookieName,
		CookieSecure:       cfg.SessionCookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, accounts, ledger, repo)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	closers = append([]cli.Closer{{Name: "http", Close: srv.Shutdown}}, closers...)
	closers = append(closers, cli.Closer{Name: "sqlite", Close: func(context.Context) error { return repo.Close() }})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, closers...)

	logger.Info("Starting finanzas server", "port", cfg.Port, "timezone", cfg.Timezone, "mirror", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
