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
	dashboardhttp "github.com/dashboard-baker/baker/internal/dashboard/http"
	"github.com/dashboard-baker/baker/internal/export"
	"github.com/dashboard-baker/baker/internal/listing"
	listinghttp "github.com/dashboard-baker/baker/internal/listing/http"
	"github.com/dashboard-baker/baker/internal/observability"
	"github.com/dashboard-baker/baker/internal/platform/cache"
	"github.com/dashboard-baker/baker/internal/screens"
	"github.com/dashboard-baker/baker/internal/shared"
	"github.com/dashboard-baker/baker/internal/view"
	"github.com/dashboard-baker/baker/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	defs, err := screens.LoadDefinitions(cfg.ScreensFile)
	if err != nil {
		logger.Error("load screens", slog.Any("error", err))
		os.Exit(1)
	}
	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	metrics := observability.NewMetrics()

	catalog := screens.NewCatalog(defs, backendClient, logger, metrics)
	views := listing.NewRegistry(cfg.ViewIdleTTL, logger)
	go views.Run(ctx, time.Minute)
	go reportLiveViews(ctx, views, metrics)

	charts := dashboard.NewChartPool(metrics.SetLiveCharts)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL, logger)
	hub, err := dashboard.NewHub(dashboard.HubConfig{
		Fetcher:  backendClient,
		Cache:    dashboardCache,
		Charts:   charts,
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("build dashboards", slog.Any("error", err))
		os.Exit(1)
	}
	go hub.Run(ctx, cfg.DashboardRefreshInterval)
	// Bumps from other processes refresh the shared boards here too.
	if err := dashboardCache.ListenForInvalidation(ctx, func(version int64) {
		logger.Info("dashboard cache bumped", slog.Int64("version", version))
		go hub.RefreshAll(context.WithoutCancel(ctx))
	}); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}

	navScreens := make([]app.NavEntry, 0, len(defs.All()))
	for _, def := range defs.All() {
		navScreens = append(navScreens, app.NavEntry{Name: def.Name, Title: def.Title})
	}
	navBoards := make([]app.NavEntry, 0, len(hub.Names()))
	for _, name := range hub.Names() {
		def, _ := hub.Definition(name)
		navBoards = append(navBoards, app.NavEntry{Name: def.Name, Title: def.Title})
	}
	templates, err := view.NewEngine(app.Navigation(navScreens, navBoards))
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	exporter := export.New(backendClient, cfg.BackendTimeout)
	listingHandler := listinghttp.NewHandler(logger, catalog, views, templates, exporter).
		WithViewGauge(metrics.SetLiveViews).
		WithRowActions(backendClient)
	dashboardHandler := dashboardhttp.NewHandler(logger, hub, templates)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		ListingHandler:   listingHandler,
		DashboardHandler: dashboardHandler,
		JobsHandler:      jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Health:           cache.Health(redisClient),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
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

// reportLiveViews keeps the open-views gauge current after idle sweeps.
func reportLiveViews(ctx context.Context, views *listing.Registry, metrics *observability.Metrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetLiveViews(views.Len())
		}
	}
}
