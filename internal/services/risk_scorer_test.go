package services

import (
	"math"
	"testing"

	"cashflow/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestBandFor_Boundaries(t *testing.T) {
	tests := []struct {
		level int
		want  core.Band
	}{
		{0, core.BandLow},
		{29, core.BandLow},
		{30, core.BandMedium},
		{59, core.BandMedium},
		{60, core.BandHigh},
		{100, core.BandHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.level), "level %d", tt.level)
	}
}

func TestClampLevel(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{-15, 0},
		{0, 0},
		{29.4, 29},
		{29.5, 30},
		{99.6, 100},
		{250, 100},
		{math.Inf(1), 100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLevel(tt.value), "value %v", tt.value)
	}
}

func TestTrendFor(t *testing.T) {
	tests := []struct {
		name   string
		change *float64
		want   core.Trend
	}{
		{"unavailable", nil, core.TrendNeutral},
		{"zero", ptr(0), core.TrendNeutral},
		{"positive", ptr(0.01), core.TrendUp},
		{"negative", ptr(-12), core.TrendDown},
		{"nan", ptr(math.NaN()), core.TrendNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendFor(tt.change))
		})
	}
}

func TestScoreRisk_TrendIndependentOfBand(t *testing.T) {
	got := ScoreRisk(85, ptr(20))
	assert.Equal(t, core.RiskAssessment{Level: 85, Band: core.BandHigh, Trend: core.TrendUp}, got)

	got = ScoreRisk(5, ptr(-3))
	assert.Equal(t, core.RiskAssessment{Level: 5, Band: core.BandLow, Trend: core.TrendDown}, got)
}

func TestPercentChange(t *testing.T) {
	assert.Nil(t, PercentChange(10, 0))

	got := PercentChange(50, 100)
	require.NotNil(t, got)
	assert.InDelta(t, -50, *got, 1e-9)

	got = PercentChange(-50, -100)
	require.NotNil(t, got)
	assert.InDelta(t, 50, *got, 1e-9)
}
