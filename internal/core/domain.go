package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

const (
	IncomeCategory  CategoryType = "income"
	ExpenseCategory CategoryType = "expense"
)

// UnknownCategory labels transactions whose category cannot be resolved.
const UnknownCategory = "Unknown"

// DateLayout is the canonical day key format.
const DateLayout = "2006-01-02"

const (
	MaxDescriptionLength          = 200
	MaxRecurringDescriptionLength = 100
)

type (
	Direction    string
	Frequency    string
	Granularity  string
	CategoryType string

	// Date is a calendar day without time-of-day, always in UTC.
	Date struct {
		time.Time
	}

	Business struct {
		ID          int64           `json:"id"`
		Name        string          `json:"name"`
		Currency    string          `json:"currency"`
		Timezone    string          `json:"timezone"`
		CurrentCash decimal.Decimal `json:"current_cash"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	Category struct {
		ID         int64        `json:"id"`
		BusinessID int64        `json:"business_id"`
		Name       string       `json:"name"`
		Type       CategoryType `json:"type,omitempty"`
		ParentID   *int64       `json:"parent_id,omitempty"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		BusinessID  int64           `json:"business_id"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Direction   Direction       `json:"direction"`
		CategoryID  *int64          `json:"category_id,omitempty"`
		Source      string          `json:"source,omitempty"`
		IsAnomalous bool            `json:"is_anomalous"`
		CreatedAt   time.Time       `json:"created_at,omitempty"`
	}

	// RecurringItem is a declared future inflow or outflow with a cadence.
	RecurringItem struct {
		Description string          `json:"description,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Frequency   Frequency       `json:"frequency"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf strips the time-of-day from t, keeping its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO day ("2006-01-02") or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// Key returns the canonical day key.
func (d Date) Key() string {
	return d.Format(DateLayout)
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Key())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Direction) IsValid() bool {
	return d == Inflow || d == Outflow
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Quarterly, Annual:
		return true
	default:
		return false
	}
}

func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	default:
		return false
	}
}

func (t Transaction) Validate() error {
	if t.BusinessID <= 0 {
		return fmt.Errorf("%w: missing business", ErrInvalidInput)
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, t.Amount)
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, t.Direction)
	}
	if len(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if c.BusinessID <= 0 {
		return fmt.Errorf("%w: missing business", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: empty category name", ErrInvalidInput)
	}
	switch c.Type {
	case "", IncomeCategory, ExpenseCategory:
	default:
		return fmt.Errorf("%w: category type %q", ErrInvalidInput, c.Type)
	}
	return nil
}

func (r RecurringItem) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: recurring amount must be positive", ErrInvalidAmount)
	}
	if !r.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if len(r.Description) > MaxRecurringDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (b Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: empty business name", ErrInvalidInput)
	}
	if strings.TrimSpace(b.Currency) == "" {
		return fmt.Errorf("%w: empty currency", ErrInvalidInput)
	}
	return nil
}
