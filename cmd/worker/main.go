package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/samudra-retail/samudra-retail/internal/app"
	jobmetrics "github.com/samudra-retail/samudra-retail/internal/jobs"
	"github.com/samudra-retail/samudra-retail/internal/notification"
	"github.com/samudra-retail/samudra-retail/internal/observability"
	"github.com/samudra-retail/samudra-retail/internal/platform/cache"
	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	writer := notification.NewWriter(notification.NewRepository(pool), redisClient, logger)

	stockService := stock.NewService(stock.NewRepository(pool), shared.NewAuditLogger(pool))
	driftHandler := jobs.NewLedgerDriftHandler(stockService, metrics, jobMetrics, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: notification.TaskTypeDispatch, Handler: writer.HandleDispatchTask},
			{Type: jobs.TaskLedgerDriftScan, Handler: driftHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: jobs.NewLedgerDriftTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
