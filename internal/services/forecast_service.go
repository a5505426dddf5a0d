package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/datasource"
)

// DefaultMaxHorizonDays bounds projection requests.
const DefaultMaxHorizonDays = 365

// ProjectionRequest is a forecast submission built from declared recurring items.
type ProjectionRequest struct {
	Granularity core.Granularity     `json:"granularity" yaml:"granularity"`
	HorizonDays int                  `json:"horizon_days" yaml:"horizon_days"`
	Description string               `json:"description,omitempty" yaml:"description"`
	Inflows     []core.RecurringItem `json:"inflows" yaml:"inflows"`
	Outflows    []core.RecurringItem `json:"outflows" yaml:"outflows"`
}

// Validate checks the request against maxHorizon and fills the default granularity.
func (r *ProjectionRequest) Validate(maxHorizon int) error {
	if r.Granularity == "" {
		r.Granularity = core.GranularityMonthly
	}
	if !r.Granularity.IsValid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidGranularity, r.Granularity)
	}
	if r.HorizonDays < 0 || r.HorizonDays > maxHorizon {
		return fmt.Errorf("%w: %d days, must be between 0 and %d", core.ErrInvalidHorizon, r.HorizonDays, maxHorizon)
	}
	if len(strings.TrimSpace(r.Description)) > core.MaxRecurringDescriptionLength {
		return core.ErrDescriptionTooLong
	}
	for i, item := range r.Inflows {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("inflow %d: %w", i, err)
		}
	}
	for i, item := range r.Outflows {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("outflow %d: %w", i, err)
		}
	}
	return nil
}

// BuildForecast validates req and projects it from today without persisting.
func BuildForecast(req ProjectionRequest, today core.Date, maxHorizon int) (core.ForecastResult, error) {
	if err := req.Validate(maxHorizon); err != nil {
		return core.ForecastResult{}, err
	}
	p, err := Project(req.Inflows, req.Outflows, req.HorizonDays, today)
	if err != nil {
		return core.ForecastResult{}, err
	}
	f := p.Result
	f.Granularity = req.Granularity
	if d := strings.TrimSpace(req.Description); d != "" {
		f.Metadata["description"] = d
	}
	return f, nil
}

type forecastDeps interface {
	datasource.BusinessReader
	datasource.TransactionReader
	datasource.ForecastStore
}

// ForecastService projects, persists and announces forecasts.
type ForecastService struct {
	store      forecastDeps
	publisher  EventPublisher
	alerts     *AlertDispatcher
	maxHorizon int
	now        func() time.Time
	onChange   func(businessID int64)
}

func NewForecastService(store forecastDeps, publisher EventPublisher, alerts *AlertDispatcher, maxHorizon int) *ForecastService {
	if maxHorizon <= 0 {
		maxHorizon = DefaultMaxHorizonDays
	}
	return &ForecastService{
		store:      store,
		publisher:  publisher,
		alerts:     alerts,
		maxHorizon: maxHorizon,
		now:        time.Now,
	}
}

// OnChange registers a callback run after a forecast is stored.
func (s *ForecastService) OnChange(fn func(businessID int64)) {
	s.onChange = fn
}

// CreateProjection projects req for the business, stores the result and
// raises alerts for a negative outlook.
func (s *ForecastService) CreateProjection(ctx context.Context, businessID int64, req ProjectionRequest) (core.ForecastResult, error) {
	if _, err := s.store.GetBusiness(ctx, businessID); err != nil {
		return core.ForecastResult{}, err
	}

	f, err := BuildForecast(req, core.DateOf(s.now()), s.maxHorizon)
	if err != nil {
		return core.ForecastResult{}, err
	}
	f.BusinessID = businessID

	txs, err := s.store.ListTransactions(ctx, businessID, &f.PeriodStart, &f.PeriodEnd)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("%w: count transactions: %w", core.ErrUpstream, err)
	}
	f.Metadata["transaction_count"] = len(txs)

	return s.persist(ctx, f)
}

// Submit stores an externally computed forecast record after checking its band.
func (s *ForecastService) Submit(ctx context.Context, f core.ForecastResult) (core.ForecastResult, error) {
	if _, err := s.store.GetBusiness(ctx, f.BusinessID); err != nil {
		return core.ForecastResult{}, err
	}
	if err := f.Validate(); err != nil {
		return core.ForecastResult{}, err
	}
	return s.persist(ctx, f)
}

func (s *ForecastService) List(ctx context.Context, businessID int64) ([]core.ForecastResult, error) {
	if _, err := s.store.GetBusiness(ctx, businessID); err != nil {
		return nil, err
	}
	return s.store.ListForecasts(ctx, businessID)
}

func (s *ForecastService) persist(ctx context.Context, f core.ForecastResult) (core.ForecastResult, error) {
	saved, err := s.store.SaveForecast(ctx, f)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("save forecast: %w", err)
	}

	slog.InfoContext(ctx, "Forecast stored",
		"id", saved.ID,
		"business_id", saved.BusinessID,
		"predicted_value", saved.PredictedValue.String(),
		"period_end", saved.PeriodEnd.Key())

	if s.onChange != nil {
		s.onChange(saved.BusinessID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishForecastCreated(ctx, amqp.NewForecastCreatedMessage(saved)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish forecast created message", "id", saved.ID, "error", err)
		}
	} else {
		slog.WarnContext(ctx, "AMQP client not available, skipping forecast created message")
	}

	if alert, ok := ForecastAlert(saved); ok && s.alerts != nil {
		if _, err := s.alerts.Raise(ctx, alert); err != nil {
			slog.ErrorContext(ctx, "Failed to raise forecast alert", "id", saved.ID, "error", err)
		}
	}
	return saved, nil
}

// ForecastAlert returns the alert a forecast warrants: critical when even the
// upper bound is negative, warning when only the prediction is.
func ForecastAlert(f core.ForecastResult) (core.Alert, bool) {
	var level core.AlertLevel
	var msg string
	switch {
	case f.UpperBound.IsNegative():
		level = core.AlertCritical
		msg = fmt.Sprintf("Forecast ending %s is negative across its whole band (upper bound %s)",
			f.PeriodEnd.Key(), core.RoundForDisplay(f.UpperBound))
	case f.PredictedValue.IsNegative():
		level = core.AlertWarning
		msg = fmt.Sprintf("Forecast ending %s predicts a net shortfall of %s",
			f.PeriodEnd.Key(), core.RoundForDisplay(f.PredictedValue.Abs()))
	default:
		return core.Alert{}, false
	}

	id := f.ID
	return core.Alert{
		BusinessID:       f.BusinessID,
		Level:            level,
		Message:          msg,
		LinkedForecastID: &id,
		Metadata: map[string]any{
			"predicted_value": f.PredictedValue.String(),
			"lower_bound":     f.LowerBound.String(),
			"upper_bound":     f.UpperBound.String(),
		},
	}, true
}
