package main

import (
	"context"
	"errors"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRisk)
	logger.Info("Starting risk-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	backend := cli.InitStore(context.Background(), logger, cfg)
	store := backend.Store

	// Forecast announcements get their own queue so the alert worker's
	// queue only carries alerts.
	amqpClient := cli.InitAMQP(logger, cfg, cfg.AMQPExchange+"_risk", amqp.RoutingForecastCreated)

	alerts := services.NewAlertDispatcher(cli.Publisher(amqpClient), store)
	processor := services.NewRiskProcessor(store, alerts, services.RiskProcessorConfig{
		Interval:               cfg.RiskInterval,
		CriticalDeclinePercent: cfg.CriticalDeclinePercent,
	})
	riskWorker := worker.NewRiskWorker(processor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Risk processor stop error", "error", err)
		}
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// The periodic loop runs a full pass immediately, which doubles as the
	// startup check for forecasts missed while the worker was down.
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start risk processor", "error", err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeForecastCreated(ctx, riskWorker.HandleForecastCreated)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("Skipping forecast consumption, risk is reassessed every interval only",
			"interval", cfg.RiskInterval)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Risk-worker shutdown complete")
}
