package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cashflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	repo.now = func() time.Time { return time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC) }
	return repo
}

func seedBusiness(t *testing.T, repo *SQLiteRepository) core.Business {
	t.Helper()
	b, err := repo.CreateBusiness(context.Background(), core.Business{
		Name:        "Kopi Kita",
		Currency:    "IDR",
		CurrentCash: decimal.RequireFromString("1500000.25"),
	})
	require.NoError(t, err)
	return b
}

func TestSQLiteRepository_Businesses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	b := seedBusiness(t, repo)

	assert.NotZero(t, b.ID)
	assert.Equal(t, "UTC", b.Timezone)
	assert.True(t, b.CurrentCash.Equal(decimal.RequireFromString("1500000.25")))

	got, err := repo.GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Name, got.Name)

	_, err = repo.GetBusiness(ctx, 404)
	assert.ErrorIs(t, err, core.ErrNotFound)

	all, err := repo.ListBusinesses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteRepository_UpsertBusiness(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	b, err := repo.UpsertBusiness(ctx, core.Business{ID: 7, Name: "Sheet Shop", Currency: "IDR", CurrentCash: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), b.ID)

	b, err = repo.UpsertBusiness(ctx, core.Business{ID: 7, Name: "Sheet Shop", Currency: "IDR", CurrentCash: decimal.NewFromInt(25)})
	require.NoError(t, err)
	assert.True(t, b.CurrentCash.Equal(decimal.NewFromInt(25)))

	all, err := repo.ListBusinesses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.UpsertBusiness(ctx, core.Business{Name: "No ID", Currency: "IDR"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSQLiteRepository_Transactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	b := seedBusiness(t, repo)

	rent, err := repo.CreateCategory(ctx, core.Category{BusinessID: b.ID, Name: "Rent", Type: core.ExpenseCategory})
	require.NoError(t, err)

	dangling := int64(999)
	inputs := []core.Transaction{
		{BusinessID: b.ID, Date: core.NewDate(2025, 3, 2), Amount: decimal.RequireFromString("0.1"), Direction: core.Inflow},
		{BusinessID: b.ID, Date: core.NewDate(2025, 3, 1), Amount: decimal.RequireFromString("250.005"), Direction: core.Outflow, CategoryID: &rent.ID, IsAnomalous: true},
		{BusinessID: b.ID, Date: core.NewDate(2025, 4, 1), Amount: decimal.RequireFromString("7"), Direction: core.Outflow, CategoryID: &dangling},
	}
	for _, in := range inputs {
		_, err := repo.CreateTransaction(ctx, in)
		require.NoError(t, err)
	}

	all, err := repo.ListTransactions(ctx, b.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2025-03-01", all[0].Date.Key(), "ordered by date")
	assert.True(t, all[0].Amount.Equal(decimal.RequireFromString("250.005")), "full precision kept")
	assert.True(t, all[0].IsAnomalous)
	require.NotNil(t, all[0].CategoryID)
	assert.Equal(t, rent.ID, *all[0].CategoryID)
	assert.Equal(t, int64(999), *all[2].CategoryID)

	from, to := core.NewDate(2025, 3, 2), core.NewDate(2025, 3, 31)
	march, err := repo.ListTransactions(ctx, b.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, "2025-03-02", march[0].Date.Key())

	_, err = repo.CreateTransaction(ctx, core.Transaction{BusinessID: b.ID, Date: from, Amount: decimal.NewFromInt(-1), Direction: core.Inflow})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	other, err := repo.ListTransactions(ctx, b.ID+1, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteRepository_Forecasts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	b := seedBusiness(t, repo)

	latest, err := repo.LatestForecast(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	f := core.ForecastResult{
		BusinessID:     b.ID,
		Granularity:    core.GranularityMonthly,
		PeriodStart:    core.NewDate(2025, 3, 31),
		PeriodEnd:      core.NewDate(2025, 4, 30),
		PredictedValue: decimal.NewFromInt(1000),
		LowerBound:     decimal.NewFromInt(800),
		UpperBound:     decimal.NewFromInt(1200),
		Metadata:       map[string]any{"method": "linear_recurring", "horizon_days": 30},
	}
	saved, err := repo.SaveForecast(ctx, f)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, "linear_recurring", saved.Metadata["method"])
	assert.Equal(t, float64(30), saved.Metadata["horizon_days"])

	f.PredictedValue = decimal.NewFromInt(-50)
	f.LowerBound = decimal.NewFromInt(-60)
	f.UpperBound = decimal.NewFromInt(-40)
	second, err := repo.SaveForecast(ctx, f)
	require.NoError(t, err)

	latest, err = repo.LatestForecast(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, latest.LowerBound.Equal(decimal.NewFromInt(-60)))

	list, err := repo.ListForecasts(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	f.UpperBound = decimal.NewFromInt(0)
	_, err = repo.SaveForecast(ctx, f)
	assert.ErrorIs(t, err, core.ErrInvalidBounds)
}

func TestSQLiteRepository_RiskScores(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	b := seedBusiness(t, repo)

	none, err := repo.LatestRiskScore(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, cf := range []float64{10, 20, 30} {
		_, err := repo.SaveRiskScore(ctx, core.RiskScore{
			BusinessID:        b.ID,
			CashflowRiskScore: cf,
			VolatilityIndex:   0.25,
			Details:           map[string]any{"source": "test"},
		})
		require.NoError(t, err)
	}

	latest, err := repo.LatestRiskScore(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 30.0, latest.CashflowRiskScore)
	assert.Equal(t, "test", latest.Details["source"])
	assert.Equal(t, 2025, latest.AssessedAt.Year())

	two, err := repo.ListRiskScores(ctx, b.ID, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestSQLiteRepository_Alerts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	b := seedBusiness(t, repo)

	a, err := repo.SaveAlert(ctx, core.Alert{BusinessID: b.ID, Level: core.AlertCritical, Message: "cash runs out"})
	require.NoError(t, err)
	assert.False(t, a.Resolved)

	_, err = repo.SaveAlert(ctx, core.Alert{BusinessID: b.ID, Level: "panic", Message: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidAlertLevel)

	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	resolved, err := repo.ResolveAlert(ctx, b.ID, a.ID, at)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, at.Equal(*resolved.ResolvedAt))

	_, err = repo.ResolveAlert(ctx, b.ID+1, a.ID, at)
	assert.ErrorIs(t, err, core.ErrNotFound)

	open, err := repo.ListAlerts(ctx, b.ID, false)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := repo.ListAlerts(ctx, b.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMigrations_Rollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	require.NoError(t, RunMigrations(path))

	version, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, RunMigrations(path), "re-running is a no-op")
	require.NoError(t, RollbackMigrations(path, 1))

	version, _, err = MigrationVersion(path)
	require.NoError(t, err)
	assert.Zero(t, version)
}
