package services

import (
	"fmt"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

const (
	// WindowDays is the length of the current and previous metric windows.
	WindowDays = 30

	// DefaultCriticalDeclinePercent is the net cashflow change below which the
	// headline band becomes critical.
	DefaultCriticalDeclinePercent = -10.0
)

// Risk list categories.
const (
	RiskCashflow   = "Cashflow Risk"
	RiskLiquidity  = "Liquidity Risk"
	RiskVolatility = "Volatility Index"
	RiskForecast   = "Forecast Risk"
)

// RiskScore detail keys holding the window totals as decimal strings.
const (
	DetailInflow  = "inflow"
	DetailOutflow = "outflow"
)

// Forecast risk levels by band position.
const (
	forecastRiskNegative = 90
	forecastRiskExposed  = 55
	forecastRiskSafe     = 15
)

type (
	// DashboardInput is everything the assembler reads for one business.
	DashboardInput struct {
		Business        core.Business
		Transactions    []core.Transaction
		Categories      []core.Category
		LatestForecast  *core.ForecastResult
		LatestRiskScore *core.RiskScore
		Today           core.Date

		// From and To limit the charted series and compositions. Headline
		// windows always end at Today.
		From, To *core.Date

		// CriticalDeclinePercent overrides DefaultCriticalDeclinePercent when non-zero.
		CriticalDeclinePercent float64
	}

	// WindowMetrics are the raw headline figures for one window.
	WindowMetrics struct {
		Inflow     decimal.Decimal
		Outflow    decimal.Decimal
		Net        float64
		Liquidity  float64
		Volatility float64
		Drawdown   float64
	}
)

// ComputeWindowMetrics summarizes the transactions dated in [from, to].
func ComputeWindowMetrics(txs []core.Transaction, cash decimal.Decimal, from, to core.Date) WindowMetrics {
	in, out := decimal.Zero, decimal.Zero
	days := map[string]*core.DateBucket{}
	for _, tx := range txs {
		if !inRange(tx.Date, &from, &to) {
			continue
		}
		b, ok := days[tx.Date.Key()]
		if !ok {
			b = &core.DateBucket{CashIn: decimal.Zero, CashOut: decimal.Zero}
			days[tx.Date.Key()] = b
		}
		fold(b, tx.Direction, tx.Amount, tx.IsAnomalous)
		if tx.Direction == core.Inflow {
			in = in.Add(tx.Amount)
		} else {
			out = out.Add(tx.Amount)
		}
	}

	m := WindowMetrics{Inflow: in, Outflow: out, Net: in.Sub(out).InexactFloat64()}
	if out.IsPositive() {
		m.Liquidity = cash.Div(out).InexactFloat64() * 100
	}
	if total := in.Add(out); total.IsPositive() {
		m.Volatility = in.Sub(out).Abs().Div(total).InexactFloat64() * 100
	}
	if len(days) > 0 {
		draining := 0
		for _, b := range days {
			if b.CashOut.GreaterThan(b.CashIn) {
				draining++
			}
		}
		m.Drawdown = float64(draining) / float64(len(days))
	}
	return m
}

// CashflowRisk is outflow/inflow scaled so that break-even scores 50.
func (m WindowMetrics) CashflowRisk() float64 {
	if !m.Inflow.IsPositive() {
		if m.Outflow.IsPositive() {
			return 100
		}
		return 0
	}
	return m.Outflow.Div(m.Inflow).InexactFloat64() * 50
}

// LiquidityRisk falls as the cash cover of outflows grows.
func (m WindowMetrics) LiquidityRisk() float64 {
	if !m.Outflow.IsPositive() {
		return 0
	}
	return liquidityRisk(m.Liquidity)
}

func liquidityRisk(liquidity float64) float64 {
	return 100 - liquidity/2
}

// ForecastRisk scores where zero falls relative to a forecast band.
func ForecastRisk(f core.ForecastResult) int {
	switch {
	case f.UpperBound.IsNegative() && f.LowerBound.IsNegative():
		return forecastRiskNegative
	case f.LowerBound.IsNegative():
		return forecastRiskExposed
	default:
		return forecastRiskSafe
	}
}

// Assemble composes the dashboard snapshot for one business. It performs no
// I/O; the caller supplies already-fetched data.
func Assemble(in DashboardInput) (core.DashboardSnapshot, error) {
	if err := in.Today.Validate(); err != nil {
		return core.DashboardSnapshot{}, fmt.Errorf("assemble: %w", err)
	}

	ranged := make([]core.Transaction, 0, len(in.Transactions))
	for _, tx := range in.Transactions {
		if inRange(tx.Date, in.From, in.To) {
			ranged = append(ranged, tx)
		}
	}

	daily, err := AggregateDaily(ranged)
	if err != nil {
		return core.DashboardSnapshot{}, fmt.Errorf("assemble daily: %w", err)
	}
	weekly, err := RebucketWeekly(daily)
	if err != nil {
		return core.DashboardSnapshot{}, fmt.Errorf("assemble weekly: %w", err)
	}
	monthly, err := RebucketMonthly(daily)
	if err != nil {
		return core.DashboardSnapshot{}, fmt.Errorf("assemble monthly: %w", err)
	}

	curStart := in.Today.AddDays(-(WindowDays - 1))
	prevEnd := curStart.AddDays(-1)
	prevStart := prevEnd.AddDays(-(WindowDays - 1))
	cur := ComputeWindowMetrics(in.Transactions, in.Business.CurrentCash, curStart, in.Today)
	prev := ComputeWindowMetrics(in.Transactions, in.Business.CurrentCash, prevStart, prevEnd)

	risks := riskList(cur, in.LatestRiskScore, in.LatestForecast)
	prevRisks := riskList(prev, nil, in.LatestForecast)

	threshold := in.CriticalDeclinePercent
	if threshold == 0 {
		threshold = DefaultCriticalDeclinePercent
	}

	headlines := core.Headlines{
		NetCashflow:    headline("Net Cashflow", cur.Net, PercentChange(cur.Net, prev.Net), cur.CashflowRisk()),
		LiquidityScore: headline("Liquidity Score", cur.Liquidity, PercentChange(cur.Liquidity, prev.Liquidity), cur.LiquidityRisk()),
		Volatility:     headline("Volatility", cur.Volatility, PercentChange(cur.Volatility, prev.Volatility), cur.Volatility),
	}
	projected := meanLevel(risks)
	headlines.ProjectedRisk = headline("Projected Risk", projected, PercentChange(projected, meanLevel(prevRisks)), projected)

	if pct := headlines.NetCashflow.ChangePercent; pct != nil && *pct < threshold {
		headlines.NetCashflow.Band = core.BandCritical
	}

	return core.DashboardSnapshot{
		BusinessID:  in.Business.ID,
		WindowStart: curStart,
		WindowEnd:   in.Today,
		Headlines:   headlines,
		Series: core.CashflowSeries{
			Daily:   daily,
			Weekly:  weekly,
			Monthly: monthly,
		},
		IncomeComposition:  CategoryComposition(ranged, in.Categories, core.Inflow),
		ExpenseComposition: CategoryComposition(ranged, in.Categories, core.Outflow),
		Risks:              risks,
		Recommendations:    recommend(headlines, risks),
		TransactionCount:   len(ranged),
	}, nil
}

func headline(name string, value float64, change *float64, risk float64) core.HeadlineMetric {
	a := ScoreRisk(risk, change)
	return core.HeadlineMetric{
		Name:          name,
		Value:         value,
		ChangePercent: change,
		Trend:         a.Trend,
		Level:         a.Level,
		Band:          a.Band,
	}
}

func riskList(m WindowMetrics, persisted *core.RiskScore, forecast *core.ForecastResult) []core.RiskMetric {
	cashflow, liquidity, volatility := m.CashflowRisk(), m.LiquidityRisk(), m.Volatility
	if persisted != nil {
		cashflow = persisted.CashflowRiskScore
		liquidity = persistedLiquidityRisk(*persisted)
		volatility = persisted.VolatilityIndex * 100
	}

	out := []core.RiskMetric{
		riskMetric(RiskCashflow, cashflow, "Outflows relative to inflows over the last 30 days"),
		riskMetric(RiskLiquidity, liquidity, "Cash on hand relative to recent outflows"),
		riskMetric(RiskVolatility, volatility, "Imbalance between inflows and outflows"),
	}
	if forecast != nil {
		out = append(out, riskMetric(RiskForecast, float64(ForecastRisk(*forecast)),
			fmt.Sprintf("Latest forecast ends %s", forecast.PeriodEnd.Key())))
	}
	return out
}

// persistedLiquidityRisk mirrors WindowMetrics.LiquidityRisk for a stored
// snapshot. A zero liquidity score only means "no risk" when the window had no
// outflows, which the score alone cannot tell.
func persistedLiquidityRisk(r core.RiskScore) float64 {
	if raw, ok := r.Details[DetailOutflow].(string); ok {
		outflow, err := decimal.NewFromString(raw)
		if err == nil {
			if !outflow.IsPositive() {
				return 0
			}
			return liquidityRisk(r.LiquidityScore)
		}
	}
	if r.LiquidityScore > 0 {
		return liquidityRisk(r.LiquidityScore)
	}
	return 0
}

func riskMetric(category string, value float64, description string) core.RiskMetric {
	level := ClampLevel(value)
	return core.RiskMetric{
		Category:    category,
		Level:       level,
		Band:        BandFor(level),
		Description: description,
	}
}

func meanLevel(risks []core.RiskMetric) float64 {
	if len(risks) == 0 {
		return 0
	}
	sum := 0
	for _, r := range risks {
		sum += r.Level
	}
	return float64(sum) / float64(len(risks))
}

func recommend(h core.Headlines, risks []core.RiskMetric) []string {
	out := []string{}
	if h.NetCashflow.Band == core.BandCritical {
		out = append(out, "Net cashflow is declining sharply; review upcoming outflows.")
	}
	for _, r := range risks {
		if r.Band != core.BandHigh {
			continue
		}
		switch r.Category {
		case RiskCashflow:
			out = append(out, "Outflows are outpacing inflows; defer non-essential spending.")
		case RiskLiquidity:
			out = append(out, "Cash reserves cover little of recent outflows; build a buffer.")
		case RiskVolatility:
			out = append(out, "Cashflow is one-sided; diversify income or smooth expenses.")
		case RiskForecast:
			out = append(out, "The latest forecast projects a shortfall; adjust recurring items.")
		}
	}
	return out
}

func inRange(d core.Date, from, to *core.Date) bool {
	if from != nil && d.Before(from.Time) {
		return false
	}
	if to != nil && d.After(to.Time) {
		return false
	}
	return true
}
