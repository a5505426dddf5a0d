package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cashflow/internal/core"
	"cashflow/internal/datasource/memory"
	"cashflow/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T) (*LedgerAdapter, core.Business) {
	t.Helper()
	ctx := context.Background()

	ledger := memory.New()
	_, err := ledger.CreateBusiness(ctx, core.Business{Name: "Placeholder", Currency: "IDR", CurrentCash: decimal.Zero})
	require.NoError(t, err)
	b, err := ledger.CreateBusiness(ctx, core.Business{Name: "Warung", Currency: "IDR", CurrentCash: decimal.NewFromInt(5000)})
	require.NoError(t, err)

	derived, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "derived.db"))
	require.NoError(t, err)
	t.Cleanup(func() { derived.Close() })

	a, err := NewLedgerAdapter(ctx, ledger, derived)
	require.NoError(t, err)
	return a, b
}

func TestLedgerAdapter_MirrorsBusinesses(t *testing.T) {
	ctx := context.Background()
	a, b := newAdapter(t)

	mirrored, err := a.DerivedStore.(*storage.SQLiteRepository).GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Warung", mirrored.Name)

	saved, err := a.SaveAlert(ctx, core.Alert{BusinessID: b.ID, Level: core.AlertWarning, Message: "low cash"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, saved.BusinessID)

	alerts, err := a.ListAlerts(ctx, b.ID, false)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	require.NoError(t, a.SyncBusinesses(ctx), "sync is repeatable")
	require.NoError(t, a.Ping(ctx))
}

func TestLedgerAdapter_ReadsComeFromLedger(t *testing.T) {
	ctx := context.Background()
	a, b := newAdapter(t)

	got, err := a.GetBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentCash.Equal(decimal.NewFromInt(5000)))

	businesses, err := a.ListBusinesses(ctx)
	require.NoError(t, err)
	assert.Len(t, businesses, 2)
}

func TestLedgerAdapter_WritesAreRejected(t *testing.T) {
	ctx := context.Background()
	a, b := newAdapter(t)

	_, err := a.CreateTransaction(ctx, core.Transaction{BusinessID: b.ID})
	assert.ErrorIs(t, err, ErrReadOnlyLedger)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = a.CreateBusiness(ctx, core.Business{Name: "New"})
	assert.ErrorIs(t, err, ErrReadOnlyLedger)
	_, err = a.CreateCategory(ctx, core.Category{BusinessID: b.ID, Name: "x"})
	assert.ErrorIs(t, err, ErrReadOnlyLedger)
}
