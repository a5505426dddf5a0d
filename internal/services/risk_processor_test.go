package services

import (
	"context"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/datasource/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRiskProcessor(t *testing.T) (*RiskProcessor, *fakePublisher) {
	t.Helper()
	store, _ := newTestStore(t)
	return newRiskProcessorWith(store)
}

func newRiskProcessorWith(store *memory.Store) (*RiskProcessor, *fakePublisher) {
	pub := &fakePublisher{}
	p := NewRiskProcessor(store, NewAlertDispatcher(pub, store), DefaultRiskProcessorConfig())
	p.now = func() time.Time { return fixedNow }
	return p, pub
}

func TestRiskProcessor_Assess(t *testing.T) {
	ctx := context.Background()
	p, pub := newRiskProcessor(t)

	var changed []int64
	p.OnChange(func(id int64) { changed = append(changed, id) })

	score, err := p.Assess(ctx, 1)
	require.NoError(t, err)

	assert.NotZero(t, score.ID)
	assert.Equal(t, fixedNow, score.AssessedAt)
	assert.InDelta(t, 250, score.LiquidityScore, 1e-9)
	assert.InDelta(t, 40, score.CashflowRiskScore, 1e-9)
	assert.InDelta(t, 1.0/9, score.VolatilityIndex, 1e-9)
	assert.InDelta(t, 2.0/3, score.DrawdownProb, 1e-9)
	assert.Nil(t, score.SourceForecastID)
	assert.Equal(t, "critical", score.Details["net_cashflow_band"])
	assert.Equal(t, []int64{1}, changed)

	require.Len(t, pub.alerts, 1)
	assert.Equal(t, core.AlertCritical, pub.alerts[0].Level)
	assert.Contains(t, pub.alerts[0].Message, "Warung")

	latest, err := p.store.LatestRiskScore(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, score.ID, latest.ID)
}

func TestRiskProcessor_LinksLatestForecast(t *testing.T) {
	ctx := context.Background()
	p, _ := newRiskProcessor(t)

	f, err := p.store.SaveForecast(ctx, core.ForecastResult{
		BusinessID:     1,
		Granularity:    core.GranularityMonthly,
		PeriodStart:    core.NewDate(2025, 3, 31),
		PeriodEnd:      core.NewDate(2025, 4, 30),
		PredictedValue: dec("100"),
		LowerBound:     dec("80"),
		UpperBound:     dec("120"),
	})
	require.NoError(t, err)

	score, err := p.Assess(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, score.SourceForecastID)
	assert.Equal(t, f.ID, *score.SourceForecastID)
}

func TestRiskProcessor_NoAlertAboveThreshold(t *testing.T) {
	p, pub := newRiskProcessor(t)
	p.config.CriticalDeclinePercent = -95

	_, err := p.Assess(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, pub.alerts)
}

func TestRiskProcessor_AssessAll(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, err := store.CreateBusiness(ctx, core.Business{Name: "Empty", Currency: "IDR"})
	require.NoError(t, err)
	p, _ := newRiskProcessorWith(store)

	n, err := p.AssessAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRiskProcessor_AssessUnknown(t *testing.T) {
	p, _ := newRiskProcessor(t)
	_, err := p.Assess(context.Background(), 404)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRiskProcessor_Lifecycle(t *testing.T) {
	p, _ := newRiskProcessor(t)
	p.config.Interval = time.Hour
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx))
}
