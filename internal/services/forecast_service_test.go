package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/datasource/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	forecasts []*amqp.ForecastCreatedMessage
	alerts    []*amqp.AlertMessage
}

func (p *fakePublisher) PublishForecastCreated(_ context.Context, msg *amqp.ForecastCreatedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.forecasts = append(p.forecasts, msg)
	return nil
}

func (p *fakePublisher) PublishAlert(_ context.Context, msg *amqp.AlertMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, msg)
	return nil
}

// newTestStore seeds one business with the dashboard fixture transactions.
func newTestStore(t *testing.T) (*memory.Store, core.Business) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	b, err := store.CreateBusiness(ctx, core.Business{Name: "Warung", Currency: "IDR", CurrentCash: dec("2000")})
	require.NoError(t, err)
	for _, tx := range dashboardFixture().Transactions {
		tx.BusinessID = b.ID
		_, err := store.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
	return store, b
}

func newForecastService(store *memory.Store, pub EventPublisher) *ForecastService {
	svc := NewForecastService(store, pub, NewAlertDispatcher(pub, store), 0)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestForecastService_CreateProjection(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)
	pub := &fakePublisher{}
	svc := newForecastService(store, pub)

	var changed []int64
	svc.OnChange(func(id int64) { changed = append(changed, id) })

	f, err := svc.CreateProjection(ctx, b.ID, ProjectionRequest{
		HorizonDays: 90,
		Description: "Q2 outlook",
		Inflows:     []core.RecurringItem{item("1000", core.Monthly)},
		Outflows:    []core.RecurringItem{item("300", core.Monthly)},
	})
	require.NoError(t, err)

	assert.NotZero(t, f.ID)
	assert.Equal(t, core.GranularityMonthly, f.Granularity)
	assert.Equal(t, "2025-03-31", f.PeriodStart.Key())
	assert.Equal(t, "2025-06-29", f.PeriodEnd.Key())
	assert.True(t, f.PredictedValue.Equal(dec("2100")), f.PredictedValue.String())
	assert.True(t, f.LowerBound.Equal(dec("1680")))
	assert.True(t, f.UpperBound.Equal(dec("2520")))
	assert.Equal(t, "Q2 outlook", f.Metadata["description"])
	assert.Equal(t, 0, f.Metadata["transaction_count"])
	assert.Equal(t, []int64{b.ID}, changed)

	require.Len(t, pub.forecasts, 1)
	assert.Equal(t, f.ID, pub.forecasts[0].ForecastID)
	assert.Empty(t, pub.alerts)

	latest, err := store.LatestForecast(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, f.ID, latest.ID)
}

func TestForecastService_CountsTransactionsInPeriod(t *testing.T) {
	store, b := newTestStore(t)
	svc := newForecastService(store, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	f, err := svc.CreateProjection(context.Background(), b.ID, ProjectionRequest{HorizonDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Metadata["transaction_count"])
}

func TestForecastService_NegativeForecastAlerts(t *testing.T) {
	tests := []struct {
		name      string
		publisher *fakePublisher
		wantStore bool
	}{
		{"published", &fakePublisher{}, false},
		{"broker failure falls back to store", &fakePublisher{err: errors.New("connection refused")}, true},
		{"no broker", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, b := newTestStore(t)

			var pub EventPublisher
			if tt.publisher != nil {
				pub = tt.publisher
			}
			svc := newForecastService(store, pub)

			f, err := svc.CreateProjection(ctx, b.ID, ProjectionRequest{
				HorizonDays: 30,
				Outflows:    []core.RecurringItem{item("500", core.Monthly)},
			})
			require.NoError(t, err)
			assert.True(t, f.UpperBound.IsNegative())

			stored, err := store.ListAlerts(ctx, b.ID, false)
			require.NoError(t, err)

			if tt.wantStore {
				require.Len(t, stored, 1)
				assert.Equal(t, core.AlertCritical, stored[0].Level)
				require.NotNil(t, stored[0].LinkedForecastID)
				assert.Equal(t, f.ID, *stored[0].LinkedForecastID)
				return
			}
			assert.Empty(t, stored)
			require.Len(t, tt.publisher.alerts, 1)
			assert.Equal(t, core.AlertCritical, tt.publisher.alerts[0].Level)
		})
	}
}

func TestForecastService_Errors(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)
	svc := newForecastService(store, nil)

	t.Run("unknown business", func(t *testing.T) {
		_, err := svc.CreateProjection(ctx, 999, ProjectionRequest{HorizonDays: 30})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("horizon beyond max", func(t *testing.T) {
		_, err := svc.CreateProjection(ctx, b.ID, ProjectionRequest{HorizonDays: DefaultMaxHorizonDays + 1})
		assert.ErrorIs(t, err, core.ErrInvalidHorizon)
	})

	t.Run("bad granularity", func(t *testing.T) {
		_, err := svc.CreateProjection(ctx, b.ID, ProjectionRequest{Granularity: "hourly", HorizonDays: 30})
		assert.ErrorIs(t, err, core.ErrInvalidGranularity)
	})

	t.Run("bad item", func(t *testing.T) {
		_, err := svc.CreateProjection(ctx, b.ID, ProjectionRequest{
			HorizonDays: 30,
			Inflows:     []core.RecurringItem{item("10", "fortnightly")},
		})
		assert.ErrorIs(t, err, core.ErrInvalidFrequency)
	})

	forecasts, err := svc.List(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, forecasts)
}

func TestForecastService_Submit(t *testing.T) {
	ctx := context.Background()
	store, b := newTestStore(t)
	svc := newForecastService(store, nil)

	valid := core.ForecastResult{
		BusinessID:     b.ID,
		Granularity:    core.GranularityWeekly,
		PeriodStart:    core.NewDate(2025, 4, 1),
		PeriodEnd:      core.NewDate(2025, 4, 30),
		PredictedValue: dec("100"),
		LowerBound:     dec("80"),
		UpperBound:     dec("120"),
	}

	saved, err := svc.Submit(ctx, valid)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	skewed := valid
	skewed.UpperBound = dec("150")
	_, err = svc.Submit(ctx, skewed)
	assert.ErrorIs(t, err, core.ErrInvalidBounds)

	missing := valid
	missing.BusinessID = 404
	_, err = svc.Submit(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)

	all, err := svc.List(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestForecastAlert(t *testing.T) {
	tests := []struct {
		name                    string
		predicted, lower, upper string
		wantLevel               core.AlertLevel
		wantAlert               bool
	}{
		{"band entirely negative", "-100", "-120", "-80", core.AlertCritical, true},
		{"narrow negative band", "-10", "-12", "-8", core.AlertCritical, true},
		{"positive", "100", "80", "120", "", false},
		{"zero", "0", "0", "0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := ForecastAlert(core.ForecastResult{
				ID:             5,
				BusinessID:     1,
				PeriodEnd:      core.NewDate(2025, 4, 30),
				PredictedValue: dec(tt.predicted),
				LowerBound:     dec(tt.lower),
				UpperBound:     dec(tt.upper),
			})
			assert.Equal(t, tt.wantAlert, ok)
			if ok {
				assert.Equal(t, tt.wantLevel, a.Level)
				assert.Equal(t, int64(5), *a.LinkedForecastID)
				assert.NoError(t, a.Validate())
			}
		})
	}
}

func TestForecastAlert_WarningWhenUpperBoundPositive(t *testing.T) {
	// only submitted records can have a band wider than the prediction
	a, ok := ForecastAlert(core.ForecastResult{
		BusinessID:     1,
		PeriodEnd:      core.NewDate(2025, 4, 30),
		PredictedValue: dec("-10"),
		LowerBound:     dec("-30"),
		UpperBound:     dec("10"),
	})
	require.True(t, ok)
	assert.Equal(t, core.AlertWarning, a.Level)
}
