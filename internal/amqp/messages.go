package amqp

import (
	"encoding/json"
	"time"

	"cashflow/internal/core"

	"github.com/google/uuid"
)

// Routing keys on the topic exchange.
const (
	RoutingForecastCreated = "forecast.created"
	RoutingAlertRaised     = "alert.raised"
)

// ForecastCreatedMessage announces a persisted forecast. Consumers fetch
// anything beyond the headline figures from storage.
type ForecastCreatedMessage struct {
	MessageID      string    `json:"message_id"`
	ForecastID     int64     `json:"forecast_id"`
	BusinessID     int64     `json:"business_id"`
	PredictedValue string    `json:"predicted_value"`
	LowerBound     string    `json:"lower_bound"`
	UpperBound     string    `json:"upper_bound"`
	PeriodEnd      string    `json:"period_end"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewForecastCreatedMessage(f core.ForecastResult) *ForecastCreatedMessage {
	return &ForecastCreatedMessage{
		MessageID:      uuid.NewString(),
		ForecastID:     f.ID,
		BusinessID:     f.BusinessID,
		PredictedValue: f.PredictedValue.String(),
		LowerBound:     f.LowerBound.String(),
		UpperBound:     f.UpperBound.String(),
		PeriodEnd:      f.PeriodEnd.Key(),
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ForecastCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ForecastCreatedMessageFromJSON(data []byte) (*ForecastCreatedMessage, error) {
	var msg ForecastCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AlertMessage carries a complete alert to the alert worker.
type AlertMessage struct {
	MessageID           string          `json:"message_id"`
	BusinessID          int64           `json:"business_id"`
	Level               core.AlertLevel `json:"level"`
	Message             string          `json:"message"`
	LinkedTransactionID *int64          `json:"linked_transaction_id,omitempty"`
	LinkedForecastID    *int64          `json:"linked_forecast_id,omitempty"`
	Metadata            map[string]any  `json:"metadata,omitempty"`
	Timestamp           time.Time       `json:"timestamp"`
}

func NewAlertMessage(a core.Alert) *AlertMessage {
	ts := a.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &AlertMessage{
		MessageID:           uuid.NewString(),
		BusinessID:          a.BusinessID,
		Level:               a.Level,
		Message:             a.Message,
		LinkedTransactionID: a.LinkedTransactionID,
		LinkedForecastID:    a.LinkedForecastID,
		Metadata:            a.Metadata,
		Timestamp:           ts,
	}
}

// Alert converts the message back to a storable alert.
func (m *AlertMessage) Alert() core.Alert {
	return core.Alert{
		BusinessID:          m.BusinessID,
		CreatedAt:           m.Timestamp,
		Level:               m.Level,
		Message:             m.Message,
		LinkedTransactionID: m.LinkedTransactionID,
		LinkedForecastID:    m.LinkedForecastID,
		Metadata:            m.Metadata,
	}
}

// ToJSON converts the message to JSON bytes
func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON decodes and validates an alert message.
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Alert().Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
