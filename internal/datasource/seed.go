package datasource

import (
	"context"
	"fmt"
	"os"

	"cashflow/internal/core"

	"gopkg.in/yaml.v3"
)

type (
	// Seed is a YAML fixture describing businesses and their ledgers.
	Seed struct {
		Businesses []SeedBusiness `yaml:"businesses"`
	}

	SeedBusiness struct {
		Name         string            `yaml:"name"`
		Currency     string            `yaml:"currency"`
		Timezone     string            `yaml:"timezone"`
		CurrentCash  string            `yaml:"current_cash"`
		Categories   []SeedCategory    `yaml:"categories"`
		Transactions []SeedTransaction `yaml:"transactions"`
	}

	SeedCategory struct {
		Name   string `yaml:"name"`
		Type   string `yaml:"type"`
		Parent string `yaml:"parent"`
	}

	// SeedTransaction references its category by name. An unknown name is
	// kept as a dangling reference.
	SeedTransaction struct {
		Date        string `yaml:"date"`
		Description string `yaml:"description"`
		Amount      string `yaml:"amount"`
		Direction   string `yaml:"direction"`
		Category    string `yaml:"category"`
		Source      string `yaml:"source"`
		Anomalous   bool   `yaml:"anomalous"`
	}
)

// danglingCategoryID marks transactions whose seed category does not exist.
const danglingCategoryID int64 = -1

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("%w: seed: %v", core.ErrInvalidInput, err)
	}
	return s, nil
}

// Apply writes the seed through w and returns the created businesses.
func (s Seed) Apply(ctx context.Context, w LedgerWriter) ([]core.Business, error) {
	created := make([]core.Business, 0, len(s.Businesses))
	for _, sb := range s.Businesses {
		amount, err := core.ParseAmount(orZero(sb.CurrentCash))
		if err != nil {
			return nil, fmt.Errorf("business %q cash: %w", sb.Name, err)
		}
		currency := sb.Currency
		if currency == "" {
			currency = "IDR"
		}
		b, err := w.CreateBusiness(ctx, core.Business{
			Name:        sb.Name,
			Currency:    currency,
			Timezone:    sb.Timezone,
			CurrentCash: amount,
		})
		if err != nil {
			return nil, fmt.Errorf("seed business %q: %w", sb.Name, err)
		}

		ids := make(map[string]int64, len(sb.Categories))
		for _, sc := range sb.Categories {
			c := core.Category{BusinessID: b.ID, Name: sc.Name, Type: core.CategoryType(sc.Type)}
			if sc.Parent != "" {
				if pid, ok := ids[sc.Parent]; ok {
					c.ParentID = &pid
				}
			}
			saved, err := w.CreateCategory(ctx, c)
			if err != nil {
				return nil, fmt.Errorf("seed category %q: %w", sc.Name, err)
			}
			ids[saved.Name] = saved.ID
		}

		for i, st := range sb.Transactions {
			tx, err := st.toTransaction(b.ID, ids)
			if err != nil {
				return nil, fmt.Errorf("seed business %q transaction %d: %w", sb.Name, i, err)
			}
			if _, err := w.CreateTransaction(ctx, tx); err != nil {
				return nil, fmt.Errorf("seed business %q transaction %d: %w", sb.Name, i, err)
			}
		}
		created = append(created, b)
	}
	return created, nil
}

func (st SeedTransaction) toTransaction(businessID int64, categories map[string]int64) (core.Transaction, error) {
	date, err := core.ParseDate(st.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(st.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		BusinessID:  businessID,
		Date:        date,
		Description: st.Description,
		Amount:      amount,
		Direction:   core.Direction(st.Direction),
		Source:      st.Source,
		IsAnomalous: st.Anomalous,
	}
	if tx.Source == "" {
		tx.Source = "seed"
	}
	if st.Category != "" {
		id, ok := categories[st.Category]
		if !ok {
			id = danglingCategoryID
		}
		tx.CategoryID = &id
	}
	return tx, tx.Validate()
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
