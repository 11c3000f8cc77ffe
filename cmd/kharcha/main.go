package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/backend"
	"kharcha/internal/cache"
	"kharcha/internal/cli"
	"kharcha/internal/config"
	"kharcha/internal/core"
	apphttp "kharcha/internal/http"
	applog "kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp, (*config.Config).Validate)

	be, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open data backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()
	caches := cache.NewManager(logger.Logger)
	summaries := cache.NewLRUCache[core.Summary](8, 5*time.Minute)
	caches.Register(summaries)

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithSummaryCache(summaries),
	}

	// Only SQLite rows can be picked up by the sync worker.
	var publisher *amqp.Client
	switch {
	case cfg.AMQPURL == "":
		logger.Info("AMQP publishing disabled - no AMQP_URL provided")
	case be.SQLite == nil:
		logger.Warn("AMQP publishing disabled - sheet sync requires the sqlite backend", "backend", be.Type)
	default:
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(publisher))
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	svc := services.NewTransactionService(be.Store, opts...)
	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              be.Ping,
		Caches:             caches,
		Metrics:            m,
		Logger:             logger,
	}, svc)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", applog.FieldError, err)
		}
	})

	logger.Info("Starting kharcha server", "port", cfg.Port, "backend", be.Type)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
