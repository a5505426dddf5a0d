package core

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidHorizon     = errors.New("invalid horizon")
	ErrInvalidBounds      = errors.New("invalid forecast bounds")
	ErrInvalidAlertLevel  = errors.New("invalid alert level")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrNotFound reports a missing business, forecast or alert.
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks a data source failure. It is distinct from an empty result.
	ErrUpstream = errors.New("upstream data source failure")
)

// IsInputError reports whether err is an input contract violation.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrInvalidDate, ErrInvalidAmount, ErrInvalidDirection,
		ErrInvalidFrequency, ErrInvalidGranularity, ErrInvalidHorizon, ErrInvalidBounds,
		ErrInvalidAlertLevel, ErrEmptyDescription, ErrDescriptionTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
