package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/sheets/memory"
	"finanzas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting finanzas-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	var writer sheets.TransactionWriter
	if cfg.SheetsConfigured() {
		client, err := gsheet.NewFromConfig(context.Background(), cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(context.Background()); err != nil {
			logger.Error("Failed to prepare spreadsheet header", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		writer = memory.New()
		logger.Warn("Google Sheets not configured, mirroring to memory only")
	}

	syncWorker := worker.NewSyncWorker(repo, writer, cfg.SyncBatchSize, logger)

	var amqpClient *amqp.Client
	closers := []cli.Closer{}
	if cfg.MirrorEnabled() {
		dialCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		client, err := amqp.DialWithRetry(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 8, logger)
		cancel()
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		amqpClient = client
		closers = append(closers, cli.Closer{Name: "amqp", Close: func(context.Context) error { return client.Close() }})
	} else {
		logger.Info("AMQP disabled, relying on the periodic sweep")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, closers...)

	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	scheduler := worker.NewScheduler(ctx, cfg.Location(), logger)
	if _, err := scheduler.Every("sync_sweep", cfg.SyncInterval, worker.SweepJob(syncWorker)); err != nil {
		logger.Error("Failed to schedule sync sweep", log.FieldError, err)
		os.Exit(1)
	}
	if _, err := scheduler.Every("prune_sessions", time.Hour, worker.PruneSessionsJob(repo, logger)); err != nil {
		logger.Error("Failed to schedule session pruning", log.FieldError, err)
		os.Exit(1)
	}
	scheduler.Start()

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeTransactionSync(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption stopped", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	scheduler.Stop()
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close database", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
