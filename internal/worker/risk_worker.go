package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/services"
)

// RiskWorker rescores a business whenever a new forecast is announced.
type RiskWorker struct {
	risk *services.RiskProcessor
}

func NewRiskWorker(risk *services.RiskProcessor) *RiskWorker {
	return &RiskWorker{risk: risk}
}

// HandleForecastCreated reassesses the forecast's business. Unknown
// businesses are acknowledged and dropped.
func (w *RiskWorker) HandleForecastCreated(ctx context.Context, msg *amqp.ForecastCreatedMessage) error {
	slog.InfoContext(ctx, "Processing forecast created message",
		"message_id", msg.MessageID,
		"forecast_id", msg.ForecastID,
		"business_id", msg.BusinessID)

	score, err := w.risk.Assess(ctx, msg.BusinessID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Dropping forecast for unknown business",
				"message_id", msg.MessageID,
				"business_id", msg.BusinessID)
			return nil
		}
		return fmt.Errorf("assess business %d: %w", msg.BusinessID, err)
	}

	slog.InfoContext(ctx, "Business reassessed after forecast",
		"business_id", msg.BusinessID,
		"forecast_id", msg.ForecastID,
		"risk_score_id", score.ID)
	return nil
}
