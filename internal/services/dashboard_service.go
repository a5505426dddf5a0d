package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/datasource"

	"golang.org/x/sync/errgroup"
)

// DashboardSources are the reads needed to assemble a snapshot.
type DashboardSources struct {
	Ledger     datasource.LedgerReader
	Forecasts  datasource.ForecastStore
	RiskScores datasource.RiskScoreStore
}

// DashboardData is one consistent fetch for a business.
type DashboardData struct {
	Business        core.Business
	Transactions    []core.Transaction
	Categories      []core.Category
	LatestForecast  *core.ForecastResult
	LatestRiskScore *core.RiskScore
}

// FetchDashboardData loads everything concurrently. A missing business keeps
// core.ErrNotFound; every other failure is marked core.ErrUpstream.
func FetchDashboardData(ctx context.Context, src DashboardSources, businessID int64) (DashboardData, error) {
	var data DashboardData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := src.Ledger.GetBusiness(gctx, businessID)
		if err != nil {
			return upstream("get business", err)
		}
		data.Business = b
		return nil
	})
	g.Go(func() error {
		txs, err := src.Ledger.ListTransactions(gctx, businessID, nil, nil)
		if err != nil {
			return upstream("list transactions", err)
		}
		data.Transactions = txs
		return nil
	})
	g.Go(func() error {
		cats, err := src.Ledger.ListCategories(gctx, businessID)
		if err != nil {
			return upstream("list categories", err)
		}
		data.Categories = cats
		return nil
	})
	if src.Forecasts != nil {
		g.Go(func() error {
			f, err := src.Forecasts.LatestForecast(gctx, businessID)
			if err != nil {
				return upstream("latest forecast", err)
			}
			data.LatestForecast = f
			return nil
		})
	}
	if src.RiskScores != nil {
		g.Go(func() error {
			r, err := src.RiskScores.LatestRiskScore(gctx, businessID)
			if err != nil {
				return upstream("latest risk score", err)
			}
			data.LatestRiskScore = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return DashboardData{}, err
	}
	return data, nil
}

func upstream(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrUpstream, op, err)
}

// DashboardService serves assembled snapshots, cached per business and range.
type DashboardService struct {
	sources         DashboardSources
	cache           cache.Cache[core.DashboardSnapshot]
	criticalDecline float64
	now             func() time.Time
}

// NewDashboardService creates the service. snapshots may be nil to disable caching.
func NewDashboardService(sources DashboardSources, snapshots cache.Cache[core.DashboardSnapshot], criticalDecline float64) *DashboardService {
	return &DashboardService{
		sources:         sources,
		cache:           snapshots,
		criticalDecline: criticalDecline,
		now:             time.Now,
	}
}

// Snapshot returns the dashboard for a business, optionally limiting the
// charted series to [from, to].
func (s *DashboardService) Snapshot(ctx context.Context, businessID int64, from, to *core.Date) (core.DashboardSnapshot, error) {
	now := s.now()
	key := snapshotKey(businessID, core.DateOf(now), from, to)
	if s.cache != nil {
		if snap, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Dashboard cache hit", "business_id", businessID)
			return snap, nil
		}
	}

	data, err := FetchDashboardData(ctx, s.sources, businessID)
	if err != nil {
		return core.DashboardSnapshot{}, err
	}

	snap, err := Assemble(DashboardInput{
		Business:               data.Business,
		Transactions:           data.Transactions,
		Categories:             data.Categories,
		LatestForecast:         data.LatestForecast,
		LatestRiskScore:        data.LatestRiskScore,
		Today:                  core.DateOf(now),
		From:                   from,
		To:                     to,
		CriticalDeclinePercent: s.criticalDecline,
	})
	if err != nil {
		return core.DashboardSnapshot{}, fmt.Errorf("assemble dashboard: %w", err)
	}
	snap.GeneratedAt = now

	if s.cache != nil {
		s.cache.Set(key, snap)
	}
	slog.InfoContext(ctx, "Dashboard assembled",
		"business_id", businessID,
		"transactions", snap.TransactionCount,
		"net_cashflow_band", snap.Headlines.NetCashflow.Band)
	return snap, nil
}

// Invalidate drops every cached snapshot of a business.
func (s *DashboardService) Invalidate(businessID int64) {
	if s.cache == nil {
		return
	}
	s.cache.DeletePrefix(businessPrefix(businessID))
}

func businessPrefix(businessID int64) string {
	return "business:" + strconv.FormatInt(businessID, 10) + ":"
}

func snapshotKey(businessID int64, today core.Date, from, to *core.Date) string {
	key := businessPrefix(businessID) + today.Key()
	for _, d := range []*core.Date{from, to} {
		if d == nil {
			key += ":*"
		} else {
			key += ":" + d.Key()
		}
	}
	return key
}
