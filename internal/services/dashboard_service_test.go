package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/datasource"
	"cashflow/internal/datasource/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLedger counts transaction reads and can fail them.
type countingLedger struct {
	datasource.LedgerReader
	reads atomic.Int32
	err   error
}

func (l *countingLedger) ListTransactions(ctx context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error) {
	l.reads.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.LedgerReader.ListTransactions(ctx, businessID, from, to)
}

func newDashboardService(store *memory.Store, ledger datasource.LedgerReader) *DashboardService {
	svc := NewDashboardService(DashboardSources{
		Ledger:     ledger,
		Forecasts:  store,
		RiskScores: store,
	}, cache.NewLRUCache[core.DashboardSnapshot](10, time.Minute), 0)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestDashboardService_Snapshot(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)
	svc := newDashboardService(store, store)

	snap, err := svc.Snapshot(ctx, b.ID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, b.ID, snap.BusinessID)
	assert.Equal(t, fixedNow, snap.GeneratedAt)
	assert.Equal(t, 5, snap.TransactionCount)
	assert.Equal(t, core.BandCritical, snap.Headlines.NetCashflow.Band)
	assert.Len(t, snap.Risks, 3)
}

func TestDashboardService_UsesLatestRecords(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)
	svc := newDashboardService(store, store)

	_, err := store.SaveRiskScore(ctx, core.RiskScore{BusinessID: b.ID, CashflowRiskScore: 70, LiquidityScore: 50, VolatilityIndex: 0.2})
	require.NoError(t, err)
	_, err = store.SaveForecast(ctx, core.ForecastResult{
		BusinessID:     b.ID,
		Granularity:    core.GranularityMonthly,
		PeriodStart:    core.NewDate(2025, 3, 31),
		PeriodEnd:      core.NewDate(2025, 4, 30),
		PredictedValue: dec("-1000"),
		LowerBound:     dec("-1200"),
		UpperBound:     dec("-800"),
	})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, b.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, snap.Risks, 4)
	assert.Equal(t, 70, snap.Risks[0].Level)
	assert.Equal(t, RiskForecast, snap.Risks[3].Category)
	assert.Equal(t, 90, snap.Risks[3].Level)
}

func TestDashboardService_Cache(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)
	ledger := &countingLedger{LedgerReader: store}
	svc := newDashboardService(store, ledger)

	_, err := svc.Snapshot(ctx, b.ID, nil, nil)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx, b.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ledger.reads.Load())

	from := core.NewDate(2025, 3, 1)
	ranged, err := svc.Snapshot(ctx, b.ID, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ranged.TransactionCount)
	assert.Equal(t, int32(2), ledger.reads.Load())

	svc.Invalidate(b.ID)
	_, err = svc.Snapshot(ctx, b.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), ledger.reads.Load())
}

func TestDashboardService_Errors(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)

	t.Run("unknown business keeps not found", func(t *testing.T) {
		svc := newDashboardService(store, store)
		_, err := svc.Snapshot(ctx, 404, nil, nil)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NotErrorIs(t, err, core.ErrUpstream)
	})

	t.Run("source failure is upstream", func(t *testing.T) {
		svc := newDashboardService(store, &countingLedger{LedgerReader: store, err: errors.New("sheet unavailable")})
		_, err := svc.Snapshot(ctx, b.ID, nil, nil)
		assert.ErrorIs(t, err, core.ErrUpstream)
		assert.Contains(t, err.Error(), "sheet unavailable")
	})
}

func TestSnapshotKey(t *testing.T) {
	today := core.NewDate(2025, 3, 31)
	from := core.NewDate(2025, 3, 1)

	assert.Equal(t, "business:7:2025-03-31:*:*", snapshotKey(7, today, nil, nil))
	assert.Equal(t, "business:7:2025-03-31:2025-03-01:*", snapshotKey(7, today, &from, nil))
	assert.NotContains(t, snapshotKey(70, today, nil, nil), businessPrefix(7))
}
