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

	"github.com/dashboard-baker/baker/internal/app"
	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/dashboard"
	"github.com/dashboard-baker/baker/internal/observability"
	"github.com/dashboard-baker/baker/internal/platform/cache"
	"github.com/dashboard-baker/baker/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	// The worker keeps its own shared boards; refreshing them fills the
	// payload cache the web processes read.
	hub, err := dashboard.NewHub(dashboard.HubConfig{
		Fetcher:  backend.NewClient(cfg.BackendURL, cfg.BackendTimeout),
		Cache:    dashboard.NewCache(redisClient, cfg.DashboardCacheTTL, logger),
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("build dashboards", slog.Any("error", err))
		os.Exit(1)
	}
	defer hub.Dispose()

	warmupJob := jobs.NewDashboardWarmupJob(hub, logger, metrics.Jobs())
	warmupTask, err := jobs.NewDashboardWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{
				asynq.MaxRetry(2),
				asynq.Timeout(2 * time.Minute),
				// A slow run must not pile up behind the next tick.
				asynq.Unique(cfg.DashboardRefreshInterval),
			}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsAddr := cfg.WorkerMetricsAddr; metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = server.Close() }()
	}

	logger.Info("starting worker", slog.String("cron", cfg.WarmupCron), slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
