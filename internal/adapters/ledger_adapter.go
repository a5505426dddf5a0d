// Package adapters composes datasource ports into complete backends.
package adapters

import (
	"context"
	"fmt"
	"log/slog"

	"cashflow/internal/core"
	"cashflow/internal/datasource"
)

// ErrReadOnlyLedger is returned for ledger writes against an externally owned ledger.
var ErrReadOnlyLedger = fmt.Errorf("%w: ledger is read-only, edit the spreadsheet instead", core.ErrInvalidInput)

// DerivedStore persists the records computed from a ledger. It must be able
// to mirror businesses under their ledger ids. *storage.SQLiteRepository
// satisfies it.
type DerivedStore interface {
	datasource.ForecastStore
	datasource.RiskScoreStore
	datasource.AlertStore
	UpsertBusiness(ctx context.Context, b core.Business) (core.Business, error)
	Close() error
}

// LedgerAdapter serves ledger reads from an external source and keeps
// forecasts, risk scores and alerts in a local store.
type LedgerAdapter struct {
	datasource.LedgerReader
	DerivedStore
}

var _ datasource.Store = (*LedgerAdapter)(nil)

// NewLedgerAdapter mirrors the ledger's businesses into derived before
// returning, so derived records can reference them.
func NewLedgerAdapter(ctx context.Context, ledger datasource.LedgerReader, derived DerivedStore) (*LedgerAdapter, error) {
	a := &LedgerAdapter{LedgerReader: ledger, DerivedStore: derived}
	if err := a.SyncBusinesses(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// SyncBusinesses copies every ledger business profile into the derived store.
func (a *LedgerAdapter) SyncBusinesses(ctx context.Context) error {
	businesses, err := a.LedgerReader.ListBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("read ledger businesses: %w", err)
	}
	for _, b := range businesses {
		if _, err := a.DerivedStore.UpsertBusiness(ctx, b); err != nil {
			return fmt.Errorf("mirror business %d: %w", b.ID, err)
		}
		slog.DebugContext(ctx, "Mirrored ledger business", "business_id", b.ID, "name", b.Name)
	}
	return nil
}

func (a *LedgerAdapter) CreateBusiness(context.Context, core.Business) (core.Business, error) {
	return core.Business{}, ErrReadOnlyLedger
}

func (a *LedgerAdapter) CreateCategory(context.Context, core.Category) (core.Category, error) {
	return core.Category{}, ErrReadOnlyLedger
}

func (a *LedgerAdapter) CreateTransaction(context.Context, core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, ErrReadOnlyLedger
}

// Ping reports the derived store's readiness. The ledger is not probed.
func (a *LedgerAdapter) Ping(ctx context.Context) error {
	if p, ok := a.DerivedStore.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
