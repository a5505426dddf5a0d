package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.005", true}, // no rounding on input
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidAmount, "%q", tc.in)
			continue
		}
		if assert.NoError(t, err, "%q", tc.in) {
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "%q: got %s", tc.in, got)
		}
	}
}

func TestParsePositiveAmount(t *testing.T) {
	_, err := ParsePositiveAmount("0")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	d, err := ParsePositiveAmount("12,5")
	assert.NoError(t, err)
	assert.Equal(t, "12.5", d.String())
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		want     string
	}{
		{"1250.5", "IDR", "IDR 1250.50"},
		{"0.005", "", "0.01"},
		{"-3.333", "EUR", "EUR -3.33"},
		{"333.3333333333", "", "333.33"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatAmount(decimal.RequireFromString(tc.in), tc.currency))
	}
	assert.Equal(t, "1.01", RoundForDisplay(decimal.RequireFromString("1.005")).String())
}
