// Package core provides money parsing and handling utilities.
//
// Amounts are carried as shopspring decimals end to end. Rounding only
// happens when a value is formatted for display.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of fractional digits shown to users.
const DisplayPlaces = 2

// ParseAmount converts a decimal string to a non-negative decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and keeps
// every fractional digit. Signs are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.345, nil
//	ParseAmount("-1")     -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, fmt.Errorf("%w: signed value %q", ErrInvalidAmount, s)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: exponent notation %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParsePositiveAmount is ParseAmount restricted to values above zero.
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return d, nil
}

// RoundForDisplay rounds half away from zero to DisplayPlaces.
func RoundForDisplay(d decimal.Decimal) decimal.Decimal {
	return d.Round(DisplayPlaces)
}

// FormatAmount renders d with the currency code, e.g. "IDR 1250.50".
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.StringFixed(DisplayPlaces)
	if currency == "" {
		return s
	}
	return currency + " " + s
}
