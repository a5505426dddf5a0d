package google

import (
	"testing"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategories(t *testing.T) {
	values := [][]any{
		{"Name", "Type", "Parent"},
		{"Sales", "Income", ""},
		{"Rent", "expense", ""},
		{"Utilities", "expense", "Rent"},
		{"# comment", "", ""},
		{"Bogus", "asset", ""},
		{"rent", "expense", ""},
		{"", "", ""},
	}

	cats, skipped, err := parseCategories(values, 3)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Len(t, skipped, 2)

	assert.Equal(t, core.Category{ID: 1, BusinessID: 3, Name: "Sales", Type: core.IncomeCategory}, cats[0])
	assert.Equal(t, int64(2), cats[1].ID)
	require.NotNil(t, cats[2].ParentID)
	assert.Equal(t, int64(2), *cats[2].ParentID)
}

func TestParseCategories_BadHeader(t *testing.T) {
	_, _, err := parseCategories([][]any{{"Label", "Kind"}}, 1)
	assert.ErrorContains(t, err, "unexpected categories header")
}

func TestParseTransactions(t *testing.T) {
	cats := []core.Category{{ID: 1, BusinessID: 1, Name: "Sales"}, {ID: 2, BusinessID: 1, Name: "Rent"}}
	values := [][]any{
		{"Date", "Description", "Amount", "Direction", "Category", "Anomalous", "Source"},
		{"2025-03-01", "Lunch crowd", "150000", "inflow", "sales", "", ""},
		{"2025-03-01", "Cash sale", "50000,50", "in", "", "x", "pos"},
		{"2025-03-02", "Landlord", 1250.5, "expense", "Rent", "FALSE", ""},
		{"2025-03-03", "Flyers", "30000", "outflow", "Marketing", "", ""},
		{"not a date", "", "10", "inflow", "", "", ""},
		{"2025-03-04", "", "-10", "inflow", "", "", ""},
		{"2025-03-04", "", "10", "sideways", "", "", ""},
		{"", "", "", "", "", "", ""},
	}

	txs, skipped, err := parseTransactions(values, 1, cats)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.Len(t, skipped, 3)

	assert.Equal(t, int64(2), txs[0].ID)
	assert.Equal(t, "2025-03-01", txs[0].Date.Key())
	assert.Equal(t, core.Inflow, txs[0].Direction)
	require.NotNil(t, txs[0].CategoryID)
	assert.Equal(t, int64(1), *txs[0].CategoryID)
	assert.Equal(t, "sheets", txs[0].Source)

	assert.True(t, txs[1].Amount.Equal(decimal.RequireFromString("50000.50")))
	assert.True(t, txs[1].IsAnomalous)
	assert.Nil(t, txs[1].CategoryID)
	assert.Equal(t, "pos", txs[1].Source)

	assert.Equal(t, core.Outflow, txs[2].Direction)
	assert.True(t, txs[2].Amount.Equal(decimal.RequireFromString("1250.5")))
	assert.False(t, txs[2].IsAnomalous)

	require.NotNil(t, txs[3].CategoryID)
	assert.Equal(t, int64(-5), *txs[3].CategoryID, "unknown names get a dangling id")

	assert.Equal(t, 6, skipped[0].Row)
}

func TestParseTransactions_SignedAmounts(t *testing.T) {
	values := [][]any{
		{"Date", "Amount"},
		{"2025-01-01", "100"},
		{"2025-01-02", "-40.5"},
	}
	txs, skipped, err := parseTransactions(values, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, txs, 2)
	assert.Equal(t, core.Inflow, txs[0].Direction)
	assert.Equal(t, core.Outflow, txs[1].Direction)
	assert.True(t, txs[1].Amount.Equal(decimal.RequireFromString("40.5")))
}

func TestParseTransactions_BadHeader(t *testing.T) {
	_, _, err := parseTransactions([][]any{{"When", "Description"}}, 1, nil)
	assert.ErrorContains(t, err, "missing Date,Amount")
}

func TestParseTransactions_Empty(t *testing.T) {
	txs, _, err := parseTransactions(nil, 1, nil)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}
