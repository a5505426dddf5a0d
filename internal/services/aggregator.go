package services

import (
	"fmt"
	"sort"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

// AggregateDaily folds transactions into one bucket per calendar day, sorted
// ascending. A bucket is anomalous as soon as any folded transaction is.
// An empty input yields an empty, non-nil sequence.
func AggregateDaily(txs []core.Transaction) ([]core.DateBucket, error) {
	byDay := make(map[string]*core.DateBucket, len(txs))
	for i, tx := range txs {
		if err := tx.Date.Validate(); err != nil {
			return nil, fmt.Errorf("aggregate transaction %d: %w", i, err)
		}
		key := tx.Date.Key()
		b, ok := byDay[key]
		if !ok {
			b = &core.DateBucket{Date: key, CashIn: decimal.Zero, CashOut: decimal.Zero}
			byDay[key] = b
		}
		fold(b, tx.Direction, tx.Amount, tx.IsAnomalous)
	}
	return sortedBuckets(byDay), nil
}

// RebucketWeekly re-aggregates daily buckets into consecutive 7-day windows
// anchored at the earliest bucket date. Each window is labeled by its first day.
func RebucketWeekly(daily []core.DateBucket) ([]core.DateBucket, error) {
	if len(daily) == 0 {
		return []core.DateBucket{}, nil
	}
	anchor, err := earliest(daily)
	if err != nil {
		return nil, err
	}
	return rebucket(daily, func(d core.Date) string {
		days := int(d.Sub(anchor.Time).Hours() / 24)
		return anchor.AddDays(days / 7 * 7).Key()
	})
}

// RebucketMonthly re-aggregates daily buckets into calendar months labeled
// "YYYY-MM".
func RebucketMonthly(daily []core.DateBucket) ([]core.DateBucket, error) {
	return rebucket(daily, func(d core.Date) string {
		return d.Format(monthLayout)
	})
}

// CategoryComposition sums the amounts of one direction per resolved category
// name, in order of first occurrence. Unresolved categories are labeled
// core.UnknownCategory.
func CategoryComposition(txs []core.Transaction, categories []core.Category, dir core.Direction) []core.CategoryAmount {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := []core.CategoryAmount{}
	index := make(map[string]int)
	for _, tx := range txs {
		if tx.Direction != dir {
			continue
		}
		label := core.UnknownCategory
		if tx.CategoryID != nil {
			if name, ok := names[*tx.CategoryID]; ok {
				label = name
			}
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, core.CategoryAmount{Label: label, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
	}
	return out
}

func rebucket(daily []core.DateBucket, window func(core.Date) string) ([]core.DateBucket, error) {
	byWindow := make(map[string]*core.DateBucket)
	for _, day := range daily {
		d, err := core.ParseDate(day.Date)
		if err != nil {
			return nil, fmt.Errorf("rebucket %q: %w", day.Date, err)
		}
		key := window(d)
		b, ok := byWindow[key]
		if !ok {
			b = &core.DateBucket{Date: key, CashIn: decimal.Zero, CashOut: decimal.Zero}
			byWindow[key] = b
		}
		b.CashIn = b.CashIn.Add(day.CashIn)
		b.CashOut = b.CashOut.Add(day.CashOut)
		b.Anomaly = b.Anomaly || day.Anomaly
	}
	return sortedBuckets(byWindow), nil
}

func fold(b *core.DateBucket, dir core.Direction, amount decimal.Decimal, anomalous bool) {
	if dir == core.Inflow {
		b.CashIn = b.CashIn.Add(amount)
	} else {
		b.CashOut = b.CashOut.Add(amount)
	}
	b.Anomaly = b.Anomaly || anomalous
}

// sortedBuckets relies on day, week and month labels sorting lexically.
func sortedBuckets(m map[string]*core.DateBucket) []core.DateBucket {
	out := make([]core.DateBucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func earliest(buckets []core.DateBucket) (core.Date, error) {
	var first core.Date
	for _, b := range buckets {
		d, err := core.ParseDate(b.Date)
		if err != nil {
			return core.Date{}, fmt.Errorf("rebucket %q: %w", b.Date, err)
		}
		if first.IsZero() || d.Before(first.Time) {
			first = d
		}
	}
	return first, nil
}
