package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/cli"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAlert)
	logger.Info("Starting alert-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("alert-worker requires AMQP_URL")
		os.Exit(1)
	}

	backend := cli.InitStore(context.Background(), logger, cfg)

	amqpClient := cli.InitAMQP(logger, cfg, cfg.AMQPQueue, amqp.RoutingAlertRaised)
	if amqpClient == nil {
		logger.Error("Failed to connect to the broker")
		os.Exit(1)
	}

	alertWorker := worker.NewAlertWorker(backend.Store)
	alertWorker.OnStored(func(a core.Alert) {
		if a.Level == core.AlertCritical {
			logger.Warn("Critical alert stored",
				log.FieldBusinessID, a.BusinessID,
				"alert_id", a.ID,
				"message", a.Message)
		}
	})

	seenManager := cache.NewManager()
	seenManager.Register(alertWorker.Seen())
	seenManager.StartCleanup(time.Hour)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		seenManager.Stop()
		amqpClient.Close()
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	go func() {
		err := amqpClient.ConsumeAlerts(ctx, alertWorker.HandleAlertMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Alert-worker shutdown complete")
}
