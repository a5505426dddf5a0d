package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

const (
	BandLow      Band = "low"
	BandMedium   Band = "medium"
	BandHigh     Band = "high"
	BandCritical Band = "critical"
)

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertError    AlertLevel = "error"
	AlertCritical AlertLevel = "critical"
)

type (
	Trend      string
	Band       string
	AlertLevel string

	// DateBucket is a cashflow summary for one time slice (day, week or month).
	DateBucket struct {
		Date    string          `json:"date"`
		CashIn  decimal.Decimal `json:"cash_in"`
		CashOut decimal.Decimal `json:"cash_out"`
		Anomaly bool            `json:"anomaly"`
	}

	// CategoryAmount represents an amount aggregated by category name.
	CategoryAmount struct {
		Label string          `json:"label"`
		Total decimal.Decimal `json:"total"`
	}

	// ForecastResult is a projected net value with a symmetric band.
	ForecastResult struct {
		ID             int64           `json:"id,omitempty"`
		BusinessID     int64           `json:"business_id"`
		Granularity    Granularity     `json:"granularity"`
		PeriodStart    Date            `json:"period_start"`
		PeriodEnd      Date            `json:"period_end"`
		PredictedValue decimal.Decimal `json:"predicted_value"`
		LowerBound     decimal.Decimal `json:"lower_bound"`
		UpperBound     decimal.Decimal `json:"upper_bound"`
		Metadata       map[string]any  `json:"metadata,omitempty"`
		CreatedAt      time.Time       `json:"created_at,omitempty"`
	}

	// RiskScore is a persisted risk assessment snapshot.
	RiskScore struct {
		ID                int64          `json:"id,omitempty"`
		BusinessID        int64          `json:"business_id"`
		AssessedAt        time.Time      `json:"assessed_at"`
		LiquidityScore    float64        `json:"liquidity_score"`
		CashflowRiskScore float64        `json:"cashflow_risk_score"`
		VolatilityIndex   float64        `json:"volatility_index"`
		DrawdownProb      float64        `json:"drawdown_prob"`
		SourceForecastID  *int64         `json:"source_forecast_id,omitempty"`
		Details           map[string]any `json:"details,omitempty"`
	}

	Alert struct {
		ID                  int64          `json:"id,omitempty"`
		BusinessID          int64          `json:"business_id"`
		CreatedAt           time.Time      `json:"created_at"`
		Level               AlertLevel     `json:"level"`
		Message             string         `json:"message"`
		LinkedTransactionID *int64         `json:"linked_transaction_id,omitempty"`
		LinkedForecastID    *int64         `json:"linked_forecast_id,omitempty"`
		Resolved            bool           `json:"resolved"`
		ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
		Metadata            map[string]any `json:"metadata,omitempty"`
	}

	// RiskAssessment is the scorer output for one numeric value.
	RiskAssessment struct {
		Level int   `json:"level"`
		Band  Band  `json:"band"`
		Trend Trend `json:"trend"`
	}

	// RiskMetric is one row of the displayed risk list. Never persisted.
	RiskMetric struct {
		Category    string `json:"category"`
		Level       int    `json:"level"`
		Band        Band   `json:"band"`
		Description string `json:"description"`
	}

	// HeadlineMetric is one dashboard card.
	HeadlineMetric struct {
		Name          string   `json:"name"`
		Value         float64  `json:"value"`
		ChangePercent *float64 `json:"change_percent,omitempty"`
		Trend         Trend    `json:"trend"`
		Level         int      `json:"level"`
		Band          Band     `json:"band"`
	}

	Headlines struct {
		NetCashflow    HeadlineMetric `json:"net_cashflow"`
		LiquidityScore HeadlineMetric `json:"liquidity_score"`
		Volatility     HeadlineMetric `json:"volatility"`
		ProjectedRisk  HeadlineMetric `json:"projected_risk"`
	}

	CashflowSeries struct {
		Daily   []DateBucket `json:"daily"`
		Weekly  []DateBucket `json:"weekly"`
		Monthly []DateBucket `json:"monthly"`
	}

	// DashboardSnapshot is the immutable view-model for one business.
	DashboardSnapshot struct {
		BusinessID         int64            `json:"business_id"`
		GeneratedAt        time.Time        `json:"generated_at"`
		WindowStart        Date             `json:"window_start"`
		WindowEnd          Date             `json:"window_end"`
		Headlines          Headlines        `json:"headlines"`
		Series             CashflowSeries   `json:"series"`
		IncomeComposition  []CategoryAmount `json:"income_composition"`
		ExpenseComposition []CategoryAmount `json:"expense_composition"`
		Risks              []RiskMetric     `json:"risks"`
		Recommendations    []string         `json:"recommendations"`
		TransactionCount   int              `json:"transaction_count"`
	}
)

func (l AlertLevel) IsValid() bool {
	switch l {
	case AlertInfo, AlertWarning, AlertError, AlertCritical:
		return true
	default:
		return false
	}
}

// Variance returns the half-width of the band.
func (f ForecastResult) Variance() decimal.Decimal {
	return f.UpperBound.Sub(f.PredictedValue)
}

// Validate checks the symmetric band invariant of a forecast record.
func (f ForecastResult) Validate() error {
	if f.BusinessID <= 0 {
		return fmt.Errorf("%w: missing business", ErrInvalidInput)
	}
	if !f.Granularity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, f.Granularity)
	}
	if err := f.PeriodStart.Validate(); err != nil {
		return fmt.Errorf("period start: %w", err)
	}
	if err := f.PeriodEnd.Validate(); err != nil {
		return fmt.Errorf("period end: %w", err)
	}
	if f.PeriodEnd.Before(f.PeriodStart.Time) {
		return fmt.Errorf("%w: period end before period start", ErrInvalidDate)
	}
	upper := f.UpperBound.Sub(f.PredictedValue)
	lower := f.PredictedValue.Sub(f.LowerBound)
	if upper.IsNegative() || !upper.Equal(lower) {
		return fmt.Errorf("%w: predicted %s not centered in [%s, %s]",
			ErrInvalidBounds, f.PredictedValue, f.LowerBound, f.UpperBound)
	}
	return nil
}

func (a Alert) Validate() error {
	if a.BusinessID <= 0 {
		return fmt.Errorf("%w: missing business", ErrInvalidInput)
	}
	if !a.Level.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAlertLevel, a.Level)
	}
	if strings.TrimSpace(a.Message) == "" {
		return ErrEmptyDescription
	}
	return nil
}
