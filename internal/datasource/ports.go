// Package datasource defines the ports through which services read ledger
// data and persist derived records.
package datasource

import (
	"context"
	"time"

	"cashflow/internal/core"
)

// Ports for outbound adapters.
type (
	BusinessReader interface {
		ListBusinesses(ctx context.Context) ([]core.Business, error)
		// GetBusiness returns core.ErrNotFound when the business does not exist.
		GetBusiness(ctx context.Context, id int64) (core.Business, error)
	}

	// TransactionReader lists a business' transactions ordered by date.
	// Nil bounds are open; both bounds are inclusive.
	TransactionReader interface {
		ListTransactions(ctx context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context, businessID int64) ([]core.Category, error)
	}

	// LedgerReader is everything the dashboard needs to read.
	LedgerReader interface {
		BusinessReader
		TransactionReader
		CategoryReader
	}

	LedgerWriter interface {
		CreateBusiness(ctx context.Context, b core.Business) (core.Business, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	ForecastStore interface {
		SaveForecast(ctx context.Context, f core.ForecastResult) (core.ForecastResult, error)
		ListForecasts(ctx context.Context, businessID int64) ([]core.ForecastResult, error)
		// LatestForecast returns nil when the business has no forecast.
		LatestForecast(ctx context.Context, businessID int64) (*core.ForecastResult, error)
	}

	RiskScoreStore interface {
		SaveRiskScore(ctx context.Context, r core.RiskScore) (core.RiskScore, error)
		ListRiskScores(ctx context.Context, businessID int64, limit int) ([]core.RiskScore, error)
		// LatestRiskScore returns nil when the business has never been assessed.
		LatestRiskScore(ctx context.Context, businessID int64) (*core.RiskScore, error)
	}

	AlertStore interface {
		SaveAlert(ctx context.Context, a core.Alert) (core.Alert, error)
		ListAlerts(ctx context.Context, businessID int64, includeResolved bool) ([]core.Alert, error)
		// ResolveAlert returns core.ErrNotFound for an unknown alert of the business.
		ResolveAlert(ctx context.Context, businessID, alertID int64, at time.Time) (core.Alert, error)
	}

	// Store is a complete backend.
	Store interface {
		LedgerReader
		LedgerWriter
		ForecastStore
		RiskScoreStore
		AlertStore
		Close() error
	}
)
