package services

import (
	"context"
	"fmt"
	"log/slog"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/datasource"
)

// EventPublisher is the outbound messaging port. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishForecastCreated(ctx context.Context, msg *amqp.ForecastCreatedMessage) error
	PublishAlert(ctx context.Context, msg *amqp.AlertMessage) error
}

// AlertDispatcher publishes alerts for the alert worker and stores them
// directly when messaging is unavailable.
type AlertDispatcher struct {
	publisher EventPublisher
	store     datasource.AlertStore
}

func NewAlertDispatcher(publisher EventPublisher, store datasource.AlertStore) *AlertDispatcher {
	return &AlertDispatcher{publisher: publisher, store: store}
}

// Raise delivers a to the alert pipeline. Returns the stored alert when it was
// persisted directly, or nil when it was handed to the broker.
func (d *AlertDispatcher) Raise(ctx context.Context, a core.Alert) (*core.Alert, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("raise alert: %w", err)
	}

	if d.publisher != nil {
		err := d.publisher.PublishAlert(ctx, amqp.NewAlertMessage(a))
		if err == nil {
			return nil, nil
		}
		slog.ErrorContext(ctx, "Failed to publish alert, storing directly",
			"business_id", a.BusinessID,
			"level", a.Level,
			"error", err)
	} else {
		slog.WarnContext(ctx, "AMQP client not available, storing alert directly")
	}

	saved, err := d.store.SaveAlert(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}
	return &saved, nil
}
