package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/datasource"
)

// RiskProcessorConfig holds configuration for the risk processor.
type RiskProcessorConfig struct {
	// Interval between full reassessments of every business (default: 1h)
	Interval time.Duration

	// CriticalDeclinePercent is the net cashflow change that triggers a critical alert.
	CriticalDeclinePercent float64
}

func DefaultRiskProcessorConfig() RiskProcessorConfig {
	return RiskProcessorConfig{
		Interval:               time.Hour,
		CriticalDeclinePercent: DefaultCriticalDeclinePercent,
	}
}

type riskDeps interface {
	datasource.LedgerReader
	datasource.ForecastStore
	datasource.RiskScoreStore
}

// RiskProcessor periodically scores every business and persists the result.
type RiskProcessor struct {
	store    riskDeps
	alerts   *AlertDispatcher
	config   RiskProcessorConfig
	now      func() time.Time
	onChange func(businessID int64)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRiskProcessor(store riskDeps, alerts *AlertDispatcher, config RiskProcessorConfig) *RiskProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRiskProcessorConfig().Interval
	}
	return &RiskProcessor{
		store:  store,
		alerts: alerts,
		config: config,
		now:    time.Now,
	}
}

// OnChange registers a callback run after a risk score is stored.
func (p *RiskProcessor) OnChange(fn func(businessID int64)) {
	p.onChange = fn
}

// Assess scores one business from its current window and stores the result.
func (p *RiskProcessor) Assess(ctx context.Context, businessID int64) (core.RiskScore, error) {
	data, err := FetchDashboardData(ctx, DashboardSources{Ledger: p.store, Forecasts: p.store}, businessID)
	if err != nil {
		return core.RiskScore{}, err
	}

	now := p.now()
	today := core.DateOf(now)
	snap, err := Assemble(DashboardInput{
		Business:               data.Business,
		Transactions:           data.Transactions,
		Categories:             data.Categories,
		LatestForecast:         data.LatestForecast,
		Today:                  today,
		CriticalDeclinePercent: p.config.CriticalDeclinePercent,
	})
	if err != nil {
		return core.RiskScore{}, fmt.Errorf("assemble business %d: %w", businessID, err)
	}
	m := ComputeWindowMetrics(data.Transactions, data.Business.CurrentCash, today.AddDays(-(WindowDays - 1)), today)

	score := core.RiskScore{
		BusinessID:        businessID,
		AssessedAt:        now,
		LiquidityScore:    m.Liquidity,
		CashflowRiskScore: m.CashflowRisk(),
		VolatilityIndex:   m.Volatility / 100,
		DrawdownProb:      m.Drawdown,
		Details: map[string]any{
			"net_cashflow":      m.Net,
			"net_cashflow_band": string(snap.Headlines.NetCashflow.Band),
			"projected_risk":    snap.Headlines.ProjectedRisk.Level,
			"transaction_count": snap.TransactionCount,
			"window_start":      snap.WindowStart.Key(),
			"window_end":        snap.WindowEnd.Key(),
			DetailInflow:        m.Inflow.String(),
			DetailOutflow:       m.Outflow.String(),
		},
	}
	if data.LatestForecast != nil {
		id := data.LatestForecast.ID
		score.SourceForecastID = &id
	}
	if change := snap.Headlines.NetCashflow.ChangePercent; change != nil {
		score.Details["net_change_percent"] = *change
	}

	saved, err := p.store.SaveRiskScore(ctx, score)
	if err != nil {
		return core.RiskScore{}, fmt.Errorf("save risk score: %w", err)
	}
	slog.InfoContext(ctx, "Risk score stored",
		"business_id", businessID,
		"liquidity", saved.LiquidityScore,
		"cashflow_risk", saved.CashflowRiskScore,
		"volatility_index", saved.VolatilityIndex)

	if p.onChange != nil {
		p.onChange(businessID)
	}

	if snap.Headlines.NetCashflow.Band == core.BandCritical && p.alerts != nil {
		alert := core.Alert{
			BusinessID: businessID,
			Level:      core.AlertCritical,
			Message: fmt.Sprintf("Net cashflow for %s fell %.1f%% against the previous %d days",
				data.Business.Name, -derefOrZero(snap.Headlines.NetCashflow.ChangePercent), WindowDays),
			LinkedForecastID: saved.SourceForecastID,
			Metadata: map[string]any{
				"risk_score_id": saved.ID,
				"net_cashflow":  m.Net,
			},
		}
		if _, err := p.alerts.Raise(ctx, alert); err != nil {
			slog.ErrorContext(ctx, "Failed to raise cashflow alert", "business_id", businessID, "error", err)
		}
	}
	return saved, nil
}

// AssessAll scores every business. One failing business does not stop the rest.
func (p *RiskProcessor) AssessAll(ctx context.Context) (int, error) {
	businesses, err := p.store.ListBusinesses(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list businesses: %w", core.ErrUpstream, err)
	}

	var errs []error
	assessed := 0
	for _, b := range businesses {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := p.Assess(ctx, b.ID); err != nil {
			slog.ErrorContext(ctx, "Risk assessment failed", "business_id", b.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		assessed++
	}
	return assessed, errors.Join(errs...)
}

// Start begins the assessment loop. Returns an error if already running.
func (p *RiskProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("risk processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Risk processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (p *RiskProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Risk processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Risk processor stop timed out")
		return ctx.Err()
	}
}

func (p *RiskProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RiskProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runPass(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runPass(ctx)
		}
	}
}

func (p *RiskProcessor) runPass(ctx context.Context) {
	n, err := p.AssessAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Risk pass finished with errors", "assessed", n, "error", err)
		return
	}
	slog.InfoContext(ctx, "Risk pass finished", "assessed", n)
}

func derefOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
