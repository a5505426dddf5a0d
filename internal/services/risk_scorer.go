package services

import (
	"math"

	"cashflow/internal/core"
)

// Band thresholds, inclusive lower bounds.
const (
	MediumRiskThreshold = 30
	HighRiskThreshold   = 60
)

// ScoreRisk maps a raw value to a clamped 0-100 level, its band and the trend
// implied by change. A nil change means no comparison is available.
func ScoreRisk(value float64, change *float64) core.RiskAssessment {
	level := ClampLevel(value)
	return core.RiskAssessment{
		Level: level,
		Band:  BandFor(level),
		Trend: TrendFor(change),
	}
}

// ClampLevel rounds value to the nearest integer within 0-100.
func ClampLevel(value float64) int {
	if math.IsNaN(value) {
		return 0
	}
	switch {
	case value <= 0:
		return 0
	case value >= 100:
		return 100
	}
	return int(math.Round(value))
}

// BandFor classifies a level. It never returns core.BandCritical; that band is
// applied by the dashboard assembler on top of the net cashflow metric.
func BandFor(level int) core.Band {
	switch {
	case level < MediumRiskThreshold:
		return core.BandLow
	case level < HighRiskThreshold:
		return core.BandMedium
	default:
		return core.BandHigh
	}
}

// TrendFor returns the direction of a percentage change. Trend is independent
// of the risk band.
func TrendFor(change *float64) core.Trend {
	switch {
	case change == nil || math.IsNaN(*change):
		return core.TrendNeutral
	case *change > 0:
		return core.TrendUp
	case *change < 0:
		return core.TrendDown
	default:
		return core.TrendNeutral
	}
}

// PercentChange returns (current-previous)/|previous|*100, or nil when the
// previous value is zero.
func PercentChange(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	pct := (current - previous) / math.Abs(previous) * 100
	return &pct
}
