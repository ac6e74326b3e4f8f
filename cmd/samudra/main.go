package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/samudra-retail/samudra-retail/internal/app"
	"github.com/samudra-retail/samudra-retail/internal/audit"
	"github.com/samudra-retail/samudra-retail/internal/auth"
	"github.com/samudra-retail/samudra-retail/internal/correction"
	"github.com/samudra-retail/samudra-retail/internal/masterdata"
	"github.com/samudra-retail/samudra-retail/internal/notification"
	"github.com/samudra-retail/samudra-retail/internal/observability"
	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/purchase"
	"github.com/samudra-retail/samudra-retail/internal/sell"
	"github.com/samudra-retail/samudra-retail/internal/sellcorrection"
	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/transfer"
	"github.com/samudra-retail/samudra-retail/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)

	authMiddleware := auth.NewMiddleware(auth.NewRepository(pool), logger)

	masterService := masterdata.NewService(masterdata.NewRepository(pool))
	masterHandler := masterdata.NewHandler(logger, masterService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger)
	stockHandler := stock.NewHandler(logger, stockService)
	mover := stock.NewMover(stock.MoverConfig{AllowNegativeStock: cfg.AllowNegativeStock}, metrics)

	dispatcher := notification.NewDispatcher(asynqClient, jobs.QueueDefault, logger)
	notificationStore := notification.NewRepository(pool)
	notificationHandler := notification.NewHandler(logger, notificationStore)

	purchaseService := purchase.NewService(purchase.NewRepository(pool), masterService, mover, auditLogger, approvalRecorder)
	purchaseHandler := purchase.NewHandler(logger, purchaseService)

	transferService := transfer.NewService(transfer.NewRepository(pool), mover, auditLogger)
	transferHandler := transfer.NewHandler(logger, transferService)

	sellService := sell.NewService(sell.NewRepository(pool), masterService, stockService, mover, auditLogger, dispatcher)
	sellHandler := sell.NewHandler(logger, sellService)

	correctionService := correction.NewService(correction.NewRepository(pool), mover, auditLogger, approvalRecorder)
	correctionHandler := correction.NewHandler(logger, correctionService)

	sellCorrectionService := sellcorrection.NewService(sellcorrection.NewRepository(pool), mover, auditLogger, approvalRecorder)
	sellCorrectionHandler := sellcorrection.NewHandler(logger, sellCorrectionService)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		AuthMiddleware:        authMiddleware,
		MasterDataHandler:     masterHandler,
		StockHandler:          stockHandler,
		PurchaseHandler:       purchaseHandler,
		TransferHandler:       transferHandler,
		SellHandler:           sellHandler,
		CorrectionHandler:     correctionHandler,
		SellCorrectionHandler: sellCorrectionHandler,
		NotificationHandler:   notificationHandler,
		AuditHandler:          auditHandler,
		JobHandler:            jobHandler,
		Metrics:               metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
