package services

import (
	"fmt"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

const (
	ProjectionMethod = "linear_recurring"
	BandLabel        = "deterministic ±20%, not a statistical confidence interval"
	DaysPerMonth     = 30
)

// VarianceRatio is the fixed half-width of the forecast band relative to the
// absolute predicted value.
var VarianceRatio = decimal.RequireFromString("0.20")

// Projection carries the intermediate figures of a forecast alongside the result.
type Projection struct {
	MonthlyInflow  decimal.Decimal
	MonthlyOutflow decimal.Decimal
	NetMonthly     decimal.Decimal
	Months         decimal.Decimal
	Result         core.ForecastResult
}

// Project builds a linear forecast from declared recurring items over
// horizonDays starting at today. Empty item lists count as zero. The result is
// deterministic for identical inputs.
func Project(inflows, outflows []core.RecurringItem, horizonDays int, today core.Date) (Projection, error) {
	if horizonDays < 0 {
		return Projection{}, fmt.Errorf("%w: %d days", core.ErrInvalidHorizon, horizonDays)
	}
	if err := today.Validate(); err != nil {
		return Projection{}, fmt.Errorf("project: %w", err)
	}

	monthlyIn, err := monthlyTotal(inflows)
	if err != nil {
		return Projection{}, fmt.Errorf("project inflows: %w", err)
	}
	monthlyOut, err := monthlyTotal(outflows)
	if err != nil {
		return Projection{}, fmt.Errorf("project outflows: %w", err)
	}

	net := monthlyIn.Sub(monthlyOut)
	months := decimal.NewFromInt(int64(horizonDays)).Div(decimal.NewFromInt(DaysPerMonth))
	predicted := net.Mul(months)
	variance := predicted.Abs().Mul(VarianceRatio)

	p := Projection{
		MonthlyInflow:  monthlyIn,
		MonthlyOutflow: monthlyOut,
		NetMonthly:     net,
		Months:         months,
		Result: core.ForecastResult{
			PeriodStart:    today,
			PeriodEnd:      today.AddDays(horizonDays),
			PredictedValue: predicted,
			LowerBound:     predicted.Sub(variance),
			UpperBound:     predicted.Add(variance),
		},
	}
	p.Result.Metadata = map[string]any{
		"method":          ProjectionMethod,
		"band":            BandLabel,
		"variance_ratio":  VarianceRatio.String(),
		"monthly_inflow":  monthlyIn.String(),
		"monthly_outflow": monthlyOut.String(),
		"monthly_net":     net.String(),
		"months":          months.String(),
		"horizon_days":    horizonDays,
		"inflow_count":    len(inflows),
		"outflow_count":   len(outflows),
	}
	return p, nil
}

func monthlyTotal(items []core.RecurringItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return decimal.Zero, fmt.Errorf("item %d: %w", i, err)
		}
		m, err := NormalizeMonthly(item.Amount, item.Frequency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("item %d: %w", i, err)
		}
		total = total.Add(m)
	}
	return total, nil
}
