package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/cli"
	"cashflow/internal/core"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	backend := cli.InitStore(ctx, logger, cfg)
	store := backend.Store

	// The API only publishes, so its client declares no queue.
	amqpClient := cli.InitAMQP(logger, cfg, "", "")
	publisher := cli.Publisher(amqpClient)

	snapshots := cache.NewLRUCache[core.DashboardSnapshot](cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(snapshots)
	cacheManager.StartCleanup(cfg.DashboardCacheTTL)

	alerts := services.NewAlertDispatcher(publisher, store)
	forecasts := services.NewForecastService(store, publisher, alerts, cfg.MaxHorizonDays)
	dashboard := services.NewDashboardService(services.DashboardSources{
		Ledger:     store,
		Forecasts:  store,
		RiskScores: store,
	}, snapshots, cfg.CriticalDeclinePercent)
	forecasts.OnChange(dashboard.Invalidate)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:     store,
		Forecasts: forecasts,
		Dashboard: dashboard,
		Alerts:    alerts,
	}, apphttp.Options{
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to configure server", "error", err)
		os.Exit(1)
	}

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 3*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			amqpClient.Close()
		}
		if backend.Cleanup != nil {
			if err := backend.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting cashflow API",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	requests, limits := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"requests", requests.TotalRequests,
		"avg_response_us", requests.AverageResponseTime,
		"rate_limited", limits.TotalHits)
}
