package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/cashledger/internal/analytics"
	analyticsdb "github.com/odyssey-erp/cashledger/internal/analytics/db"
	analytichttp "github.com/odyssey-erp/cashledger/internal/analytics/http"
	"github.com/odyssey-erp/cashledger/internal/app"
	"github.com/odyssey-erp/cashledger/internal/observability"
	"github.com/odyssey-erp/cashledger/internal/platform/cache"
	"github.com/odyssey-erp/cashledger/internal/platform/db"
	"github.com/odyssey-erp/cashledger/jobs"
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
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("server"))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
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

	analyticsRepo := analyticsdb.New(dbpool)
	analyticsCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	if err := analyticsCache.ListenForInvalidation(ctx, analytics.BumpChannel); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}
	analyticsService := analytics.NewService(analyticsRepo, analyticsCache, analytics.ServiceConfig{
		Logger:      logger,
		Metrics:     metrics,
		RecentLimit: cfg.DashboardRecentLimit,
		LoadTimeout: cfg.ReportTimeout,
	})
	analyticsHandler := analytichttp.NewHandler(logger, analyticsService)
	analyticsHandler.WithExportLimit(cfg.ExportRatePerMinute)
	analyticsHandler.WithTimeout(cfg.ReportTimeout)

	inspector := asynq.NewInspector(cfg.QueueOptions())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analyticsHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": analyticsRepo.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
