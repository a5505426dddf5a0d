// Package memory is an in-process datasource backed by slices, seeded from YAML.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/datasource"
)

type Store struct {
	mu           sync.Mutex
	nextID       int64
	businesses   []core.Business
	categories   []core.Category
	transactions []core.Transaction
	forecasts    []core.ForecastResult
	riskScores   []core.RiskScore
	alerts       []core.Alert
	now          func() time.Time
}

var _ datasource.Store = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromFile builds a store from a YAML seed. A missing path yields an empty store.
func NewFromFile(ctx context.Context, path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	seed, err := datasource.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	if _, err := seed.Apply(ctx, s); err != nil {
		return nil, fmt.Errorf("apply seed: %w", err)
	}
	return s, nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateBusiness(_ context.Context, b core.Business) (core.Business, error) {
	if err := b.Validate(); err != nil {
		return core.Business{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}
	b.CreatedAt = s.now()
	s.businesses = append(s.businesses, b)
	return b, nil
}

func (s *Store) GetBusiness(_ context.Context, id int64) (core.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.businesses {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Business{}, fmt.Errorf("business %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListBusinesses(_ context.Context) ([]core.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Business{}, s.businesses...), nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.BusinessID == c.BusinessID && existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("%w: duplicate category %q", core.ErrInvalidInput, c.Name)
		}
	}
	c.ID = s.id()
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, businessID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter(s.categories, func(c core.Category) bool { return c.BusinessID == businessID }), nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	t.CreatedAt = s.now()
	s.transactions = append(s.transactions, t)
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	out := filter(s.transactions, func(t core.Transaction) bool {
		if t.BusinessID != businessID {
			return false
		}
		if from != nil && t.Date.Before(from.Time) {
			return false
		}
		return to == nil || !t.Date.After(to.Time)
	})
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) SaveForecast(_ context.Context, f core.ForecastResult) (core.ForecastResult, error) {
	if err := f.Validate(); err != nil {
		return core.ForecastResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.id()
	f.CreatedAt = s.now()
	s.forecasts = append(s.forecasts, f)
	return f, nil
}

func (s *Store) ListForecasts(_ context.Context, businessID int64) ([]core.ForecastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(filter(s.forecasts, func(f core.ForecastResult) bool { return f.BusinessID == businessID })), nil
}

func (s *Store) LatestForecast(ctx context.Context, businessID int64) (*core.ForecastResult, error) {
	all, _ := s.ListForecasts(ctx, businessID)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (s *Store) SaveRiskScore(_ context.Context, r core.RiskScore) (core.RiskScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	if r.AssessedAt.IsZero() {
		r.AssessedAt = s.now()
	}
	s.riskScores = append(s.riskScores, r)
	return r, nil
}

func (s *Store) ListRiskScores(_ context.Context, businessID int64, limit int) ([]core.RiskScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newestFirst(filter(s.riskScores, func(r core.RiskScore) bool { return r.BusinessID == businessID }))
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LatestRiskScore(ctx context.Context, businessID int64) (*core.RiskScore, error) {
	scores, _ := s.ListRiskScores(ctx, businessID, 1)
	if len(scores) == 0 {
		return nil, nil
	}
	return &scores[0], nil
}

func (s *Store) SaveAlert(_ context.Context, a core.Alert) (core.Alert, error) {
	if err := a.Validate(); err != nil {
		return core.Alert{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.alerts = append(s.alerts, a)
	return a, nil
}

func (s *Store) ListAlerts(_ context.Context, businessID int64, includeResolved bool) ([]core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(filter(s.alerts, func(a core.Alert) bool {
		return a.BusinessID == businessID && (includeResolved || !a.Resolved)
	})), nil
}

func (s *Store) ResolveAlert(_ context.Context, businessID, alertID int64, at time.Time) (core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.ID != alertID || a.BusinessID != businessID {
			continue
		}
		if !a.Resolved {
			a.Resolved = true
			a.ResolvedAt = &at
		}
		return *a, nil
	}
	return core.Alert{}, fmt.Errorf("alert %d: %w", alertID, core.ErrNotFound)
}

func (s *Store) Close() error { return nil }

func filter[T any](in []T, keep func(T) bool) []T {
	out := []T{}
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// newestFirst reverses insertion order in place.
func newestFirst[T any](in []T) []T {
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	return in
}
