// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for cadence normalization.
// Each frequency (daily, weekly, monthly, quarterly, annual) has its own
// normalizer that converts a recurring amount to its monthly equivalent.

package services

import (
	"fmt"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

// Normalizer is the strategy interface for converting a recurring amount to a
// monthly-equivalent amount.
type Normalizer interface {
	// Monthly returns the amount expressed as if it recurred once a month.
	Monthly(amount decimal.Decimal) decimal.Decimal
}

// multiplyBy scales the amount up for cadences shorter than a month.
type multiplyBy int64

func (m multiplyBy) Monthly(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(m)))
}

// divideBy spreads the amount over the months of a longer cadence.
type divideBy int64

func (d divideBy) Monthly(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(decimal.NewFromInt(int64(d)))
}

// frequencyStrategies maps each cadence to its fixed conversion factor. Its
// keys are exactly the frequencies core.Frequency.IsValid accepts.
var frequencyStrategies = map[core.Frequency]Normalizer{
	core.Daily:     multiplyBy(30),
	core.Weekly:    multiplyBy(4),
	core.Monthly:   multiplyBy(1),
	core.Quarterly: divideBy(3),
	core.Annual:    divideBy(12),
}

// GetNormalizer returns the normalizer for a frequency.
// Returns an error if the frequency is not supported.
func GetNormalizer(frequency core.Frequency) (Normalizer, error) {
	n, ok := frequencyStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return n, nil
}

// NormalizeMonthly returns the monthly-equivalent of amount at the given
// cadence. No rounding is applied.
func NormalizeMonthly(amount decimal.Decimal, frequency core.Frequency) (decimal.Decimal, error) {
	n, err := GetNormalizer(frequency)
	if err != nil {
		return decimal.Zero, err
	}
	return n.Monthly(amount), nil
}
