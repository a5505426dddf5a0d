package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestYAML = `granularity: monthly
horizon_days: 30
description: April outlook
inflows:
  - description: catering contract
    amount: 5000
    frequency: monthly
outflows:
  - description: wages
    amount: "1000"
    frequency: weekly
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProjectionRequest(t *testing.T) {
	req, err := loadProjectionRequest(writeFile(t, "req.yaml", requestYAML))
	require.NoError(t, err)

	assert.Equal(t, core.GranularityMonthly, req.Granularity)
	assert.Equal(t, 30, req.HorizonDays)
	require.Len(t, req.Inflows, 1)
	assert.True(t, req.Inflows[0].Amount.Equal(decimal.NewFromInt(5000)))
	require.Len(t, req.Outflows, 1)
	assert.Equal(t, core.Weekly, req.Outflows[0].Frequency)

	_, err = loadProjectionRequest(writeFile(t, "bad.yaml", "inflows: [unclosed"))
	assert.Error(t, err)
	_, err = loadProjectionRequest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestForecastCmd_Local(t *testing.T) {
	var out bytes.Buffer
	cmd := forecastCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{writeFile(t, "req.yaml", requestYAML), "--today", "2025-04-01"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var f core.ForecastResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &f))
	assert.True(t, f.PredictedValue.Equal(decimal.NewFromInt(1000)), "predicted %s", f.PredictedValue)
	assert.True(t, f.LowerBound.Equal(decimal.NewFromInt(800)))
	assert.True(t, f.UpperBound.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, "2025-05-01", f.PeriodEnd.Key())
	assert.Equal(t, "April outlook", f.Metadata["description"])
}

func TestForecastCmd_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"horizon over limit", []string{"--max-horizon", "10"}},
		{"bad today", []string{"--today", "01/04/2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := forecastCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(append([]string{writeFile(t, "req.yaml", requestYAML)}, tt.args...))
			assert.Error(t, cmd.ExecuteContext(context.Background()))
		})
	}
}
