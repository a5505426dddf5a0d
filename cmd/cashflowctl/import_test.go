package main

import (
	"context"
	"path/filepath"
	"testing"

	"cashflow/internal/core"
	"cashflow/internal/datasource/google"
	"cashflow/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func sampleLedger() google.Ledger {
	return google.Ledger{
		Business: core.Business{ID: 4, Name: "Kedai Kopi", Currency: "IDR", Timezone: "UTC", CurrentCash: decimal.NewFromInt(750000)},
		Categories: []core.Category{
			{ID: 1, BusinessID: 4, Name: "Sales", Type: core.IncomeCategory},
			// child listed before its parent
			{ID: 2, BusinessID: 4, Name: "Electricity", Type: core.ExpenseCategory, ParentID: int64p(3)},
			{ID: 3, BusinessID: 4, Name: "Utilities", Type: core.ExpenseCategory},
		},
		Transactions: []core.Transaction{
			{BusinessID: 4, Date: core.NewDate(2025, 3, 1), Amount: decimal.NewFromInt(200000), Direction: core.Inflow, CategoryID: int64p(1)},
			{BusinessID: 4, Date: core.NewDate(2025, 3, 2), Amount: decimal.NewFromInt(50000), Direction: core.Outflow, CategoryID: int64p(2)},
			{BusinessID: 4, Date: core.NewDate(2025, 3, 3), Amount: decimal.NewFromInt(1000), Direction: core.Outflow, CategoryID: int64p(99)},
		},
	}
}

func TestImportLedger(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cashflow.db"))
	require.NoError(t, err)
	defer repo.Close()

	stats, err := importLedger(ctx, repo, sampleLedger(), false)
	require.NoError(t, err)
	assert.Equal(t, importStats{Categories: 3, Transactions: 3}, stats)

	b, err := repo.GetBusiness(ctx, 4)
	require.NoError(t, err, "business keeps its ledger id")
	assert.Equal(t, "Kedai Kopi", b.Name)

	cats, err := repo.ListCategories(ctx, 4)
	require.NoError(t, err)
	byName := map[string]core.Category{}
	for _, c := range cats {
		byName[c.Name] = c
	}
	require.NotNil(t, byName["Electricity"].ParentID)
	assert.Equal(t, byName["Utilities"].ID, *byName["Electricity"].ParentID)

	txs, err := repo.ListTransactions(ctx, 4, nil, nil)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, byName["Electricity"].ID, *txs[1].CategoryID)
	assert.Equal(t, int64(99), *txs[2].CategoryID, "unknown categories stay dangling")
	assert.Equal(t, "sheets", txs[0].Source)

	_, err = importLedger(ctx, repo, sampleLedger(), false)
	require.Error(t, err, "second import needs --force")

	stats, err = importLedger(ctx, repo, sampleLedger(), true)
	require.NoError(t, err)
	assert.Equal(t, importStats{Categories: 0, Transactions: 3}, stats, "categories are reused by name")
	txs, err = repo.ListTransactions(ctx, 4, nil, nil)
	require.NoError(t, err)
	assert.Len(t, txs, 6)
}

func TestImportLedger_ParentCycle(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cashflow.db"))
	require.NoError(t, err)
	defer repo.Close()

	l := sampleLedger()
	l.Categories = []core.Category{
		{ID: 1, Name: "A", Type: core.ExpenseCategory, ParentID: int64p(2)},
		{ID: 2, Name: "B", Type: core.ExpenseCategory, ParentID: int64p(1)},
	}
	_, err = importLedger(ctx, repo, l, false)
	assert.ErrorContains(t, err, "cycle")
}
