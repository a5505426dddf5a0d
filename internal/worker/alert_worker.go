// Package worker holds the message handlers run by the background binaries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/datasource"
)

const (
	seenCapacity = 10000
	seenTTL      = 24 * time.Hour
)

type alertDeps interface {
	datasource.BusinessReader
	datasource.AlertStore
}

// AlertWorker persists alerts published by the API and the risk worker.
type AlertWorker struct {
	store alertDeps
	// seen remembers delivered message ids so a redelivery after a lost ack
	// does not store the alert twice.
	seen     *cache.LRUCache[int64]
	onStored func(core.Alert)
}

func NewAlertWorker(store alertDeps) *AlertWorker {
	return &AlertWorker{
		store: store,
		seen:  cache.NewLRUCache[int64](seenCapacity, seenTTL),
	}
}

// OnStored registers a callback run after each alert is persisted.
func (w *AlertWorker) OnStored(fn func(core.Alert)) {
	w.onStored = fn
}

// Seen exposes the dedup cache for periodic cleanup.
func (w *AlertWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleAlertMessage stores one alert. Alerts for unknown businesses are
// dropped, since requeueing them can never succeed.
func (w *AlertWorker) HandleAlertMessage(ctx context.Context, msg *amqp.AlertMessage) error {
	if id, ok := w.seen.Get(msg.MessageID); ok && msg.MessageID != "" {
		slog.InfoContext(ctx, "Skipping duplicate alert message",
			"message_id", msg.MessageID,
			"alert_id", id)
		return nil
	}

	if _, err := w.store.GetBusiness(ctx, msg.BusinessID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Dropping alert for unknown business",
				"message_id", msg.MessageID,
				"business_id", msg.BusinessID)
			return nil
		}
		return fmt.Errorf("get business: %w", err)
	}

	stored, err := w.store.SaveAlert(ctx, msg.Alert())
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	if msg.MessageID != "" {
		w.seen.Set(msg.MessageID, stored.ID)
	}

	slog.InfoContext(ctx, "Alert stored",
		"message_id", msg.MessageID,
		"alert_id", stored.ID,
		"business_id", stored.BusinessID,
		"level", stored.Level)

	if w.onStored != nil {
		w.onStored(stored)
	}
	return nil
}
