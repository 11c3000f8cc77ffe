package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/cli"
	"kharcha/internal/config"
	"kharcha/internal/ledger/google"
	applog "kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentWorker, (*config.Config).ValidateWorker)
	logger.Info("Starting kharcha-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	sheets, err := google.New(startCtx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger.Logger)
	if err != nil {
		cancelStart()
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	if err := sheets.EnsureHeader(startCtx); err != nil {
		cancelStart()
		logger.Error("Failed to prepare sheet header", applog.FieldError, err, "sheet", cfg.GoogleSheetName)
		os.Exit(1)
	}
	cancelStart()
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	m := metrics.New()
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", applog.FieldError, err, "addr", cfg.MetricsAddr)
			}
		}()
		logger.Info("Serving worker metrics", "addr", cfg.MetricsAddr)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil {
				logger.Error("Metrics server shutdown error", applog.FieldError, err)
			}
		}
	})

	w := worker.NewSyncWorker(repo, sheets, cfg.SyncBatchSize, logger, m)
	if err := w.Run(ctx, client, cfg.SyncInterval); err != nil {
		logger.Error("Sync worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
