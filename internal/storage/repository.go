package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateBusiness(ctx context.Context, b core.Business) (core.Business, error) {
	if err := b.Validate(); err != nil {
		return core.Business{}, err
	}
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}
	row, err := r.queries.CreateBusiness(ctx, CreateBusinessParams{
		Name:        b.Name,
		Currency:    b.Currency,
		Timezone:    b.Timezone,
		CurrentCash: b.CurrentCash.String(),
		CreatedAt:   r.timestamp(),
	})
	if err != nil {
		return core.Business{}, fmt.Errorf("create business: %w", err)
	}

	slog.InfoContext(ctx, "Business saved to SQLite", "id", row.ID, "name", row.Name)
	return toBusiness(row)
}

// UpsertBusiness stores b under its own id, updating the profile when the
// row exists. Mirrors of external ledgers use it to keep ids stable.
func (r *SQLiteRepository) UpsertBusiness(ctx context.Context, b core.Business) (core.Business, error) {
	if b.ID <= 0 {
		return core.Business{}, fmt.Errorf("%w: upsert needs a business id", core.ErrInvalidInput)
	}
	if err := b.Validate(); err != nil {
		return core.Business{}, err
	}
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}
	row, err := r.queries.UpsertBusiness(ctx, UpsertBusinessParams{
		ID:          b.ID,
		Name:        b.Name,
		Currency:    b.Currency,
		Timezone:    b.Timezone,
		CurrentCash: b.CurrentCash.String(),
		CreatedAt:   r.timestamp(),
	})
	if err != nil {
		return core.Business{}, fmt.Errorf("upsert business: %w", err)
	}
	return toBusiness(row)
}

func (r *SQLiteRepository) GetBusiness(ctx context.Context, id int64) (core.Business, error) {
	row, err := r.queries.GetBusiness(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Business{}, fmt.Errorf("business %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Business{}, fmt.Errorf("get business: %w", err)
	}
	return toBusiness(row)
}

func (r *SQLiteRepository) ListBusinesses(ctx context.Context) ([]core.Business, error) {
	rows, err := r.queries.ListBusinesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return convertAll(rows, toBusiness)
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		BusinessID: c.BusinessID,
		Name:       c.Name,
		Type:       string(c.Type),
		ParentID:   nullInt(c.ParentID),
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return toCategory(row), nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, businessID int64) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, row := range rows {
		out[i] = toCategory(row)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	anomalous := int64(0)
	if t.IsAnomalous {
		anomalous = 1
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		BusinessID:  t.BusinessID,
		Date:        t.Date.Key(),
		Description: t.Description,
		Amount:      t.Amount.String(),
		Direction:   string(t.Direction),
		CategoryID:  nullInt(t.CategoryID),
		Source:      t.Source,
		IsAnomalous: anomalous,
		CreatedAt:   r.timestamp(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"business_id", row.BusinessID,
		"amount", row.Amount,
		"direction", row.Direction,
		"date", row.Date)
	return toTransaction(row)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		BusinessID: businessID,
		From:       dateKey(from),
		To:         dateKey(to),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return convertAll(rows, toTransaction)
}

func (r *SQLiteRepository) SaveForecast(ctx context.Context, f core.ForecastResult) (core.ForecastResult, error) {
	if err := f.Validate(); err != nil {
		return core.ForecastResult{}, err
	}
	meta, err := encodeJSON(f.Metadata)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("encode forecast metadata: %w", err)
	}
	row, err := r.queries.CreateForecast(ctx, CreateForecastParams{
		BusinessID:     f.BusinessID,
		Granularity:    string(f.Granularity),
		PeriodStart:    f.PeriodStart.Key(),
		PeriodEnd:      f.PeriodEnd.Key(),
		PredictedValue: f.PredictedValue.String(),
		LowerBound:     f.LowerBound.String(),
		UpperBound:     f.UpperBound.String(),
		Metadata:       meta,
		CreatedAt:      r.timestamp(),
	})
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("create forecast: %w", err)
	}

	slog.InfoContext(ctx, "Forecast saved to SQLite",
		"id", row.ID,
		"business_id", row.BusinessID,
		"predicted_value", row.PredictedValue,
		"period_end", row.PeriodEnd)
	return toForecast(row)
}

func (r *SQLiteRepository) ListForecasts(ctx context.Context, businessID int64) ([]core.ForecastResult, error) {
	rows, err := r.queries.ListForecasts(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	return convertAll(rows, toForecast)
}

func (r *SQLiteRepository) LatestForecast(ctx context.Context, businessID int64) (*core.ForecastResult, error) {
	row, err := r.queries.GetLatestForecast(ctx, businessID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest forecast: %w", err)
	}
	f, err := toForecast(row)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *SQLiteRepository) SaveRiskScore(ctx context.Context, s core.RiskScore) (core.RiskScore, error) {
	details, err := encodeJSON(s.Details)
	if err != nil {
		return core.RiskScore{}, fmt.Errorf("encode risk details: %w", err)
	}
	assessed := s.AssessedAt
	if assessed.IsZero() {
		assessed = r.now()
	}
	row, err := r.queries.CreateRiskScore(ctx, CreateRiskScoreParams{
		BusinessID:        s.BusinessID,
		AssessedAt:        assessed.UTC().Format(timestampLayout),
		LiquidityScore:    s.LiquidityScore,
		CashflowRiskScore: s.CashflowRiskScore,
		VolatilityIndex:   s.VolatilityIndex,
		DrawdownProb:      s.DrawdownProb,
		SourceForecastID:  nullInt(s.SourceForecastID),
		Details:           details,
	})
	if err != nil {
		return core.RiskScore{}, fmt.Errorf("create risk score: %w", err)
	}
	return toRiskScore(row)
}

func (r *SQLiteRepository) ListRiskScores(ctx context.Context, businessID int64, limit int) ([]core.RiskScore, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.queries.ListRiskScores(ctx, ListRiskScoresParams{BusinessID: businessID, Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("list risk scores: %w", err)
	}
	return convertAll(rows, toRiskScore)
}

func (r *SQLiteRepository) LatestRiskScore(ctx context.Context, businessID int64) (*core.RiskScore, error) {
	scores, err := r.ListRiskScores(ctx, businessID, 1)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}
	return &scores[0], nil
}

func (r *SQLiteRepository) SaveAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	if err := a.Validate(); err != nil {
		return core.Alert{}, err
	}
	meta, err := encodeJSON(a.Metadata)
	if err != nil {
		return core.Alert{}, fmt.Errorf("encode alert metadata: %w", err)
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	row, err := r.queries.CreateAlert(ctx, CreateAlertParams{
		BusinessID:          a.BusinessID,
		CreatedAt:           created.UTC().Format(timestampLayout),
		Level:               string(a.Level),
		Message:             a.Message,
		LinkedTransactionID: nullInt(a.LinkedTransactionID),
		LinkedForecastID:    nullInt(a.LinkedForecastID),
		Metadata:            meta,
	})
	if err != nil {
		return core.Alert{}, fmt.Errorf("create alert: %w", err)
	}

	slog.InfoContext(ctx, "Alert saved to SQLite",
		"id", row.ID,
		"business_id", row.BusinessID,
		"level", row.Level)
	return toAlert(row)
}

func (r *SQLiteRepository) ListAlerts(ctx context.Context, businessID int64, includeResolved bool) ([]core.Alert, error) {
	include := int64(0)
	if includeResolved {
		include = 1
	}
	rows, err := r.queries.ListAlerts(ctx, ListAlertsParams{BusinessID: businessID, IncludeResolved: include})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return convertAll(rows, toAlert)
}

func (r *SQLiteRepository) ResolveAlert(ctx context.Context, businessID, alertID int64, at time.Time) (core.Alert, error) {
	row, err := r.queries.ResolveAlert(ctx, ResolveAlertParams{
		ResolvedAt: at.UTC().Format(timestampLayout),
		ID:         alertID,
		BusinessID: businessID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Alert{}, fmt.Errorf("alert %d: %w", alertID, core.ErrNotFound)
	}
	if err != nil {
		return core.Alert{}, fmt.Errorf("resolve alert: %w", err)
	}

	slog.InfoContext(ctx, "Alert resolved", "id", row.ID, "business_id", row.BusinessID)
	return toAlert(row)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timestampLayout)
}

func toBusiness(row Business) (core.Business, error) {
	cash, err := decimal.NewFromString(row.CurrentCash)
	if err != nil {
		return core.Business{}, fmt.Errorf("business %d cash: %w", row.ID, err)
	}
	return core.Business{
		ID:          row.ID,
		Name:        row.Name,
		Currency:    row.Currency,
		Timezone:    row.Timezone,
		CurrentCash: cash,
		CreatedAt:   parseTimestamp(row.CreatedAt),
	}, nil
}

func toCategory(row Category) core.Category {
	return core.Category{
		ID:         row.ID,
		BusinessID: row.BusinessID,
		Name:       row.Name,
		Type:       core.CategoryType(row.Type),
		ParentID:   intPtr(row.ParentID),
	}
}

func toTransaction(row Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", row.ID, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount: %w", row.ID, err)
	}
	return core.Transaction{
		ID:          row.ID,
		BusinessID:  row.BusinessID,
		Date:        date,
		Description: row.Description,
		Amount:      amount,
		Direction:   core.Direction(row.Direction),
		CategoryID:  intPtr(row.CategoryID),
		Source:      row.Source,
		IsAnomalous: row.IsAnomalous != 0,
		CreatedAt:   parseTimestamp(row.CreatedAt),
	}, nil
}

func toForecast(row Forecast) (core.ForecastResult, error) {
	start, err := core.ParseDate(row.PeriodStart)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("forecast %d: %w", row.ID, err)
	}
	end, err := core.ParseDate(row.PeriodEnd)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("forecast %d: %w", row.ID, err)
	}
	values := make([]decimal.Decimal, 3)
	for i, s := range []string{row.PredictedValue, row.LowerBound, row.UpperBound} {
		if values[i], err = decimal.NewFromString(s); err != nil {
			return core.ForecastResult{}, fmt.Errorf("forecast %d value: %w", row.ID, err)
		}
	}
	return core.ForecastResult{
		ID:             row.ID,
		BusinessID:     row.BusinessID,
		Granularity:    core.Granularity(row.Granularity),
		PeriodStart:    start,
		PeriodEnd:      end,
		PredictedValue: values[0],
		LowerBound:     values[1],
		UpperBound:     values[2],
		Metadata:       decodeJSON(row.Metadata),
		CreatedAt:      parseTimestamp(row.CreatedAt),
	}, nil
}

func toRiskScore(row RiskScore) (core.RiskScore, error) {
	return core.RiskScore{
		ID:                row.ID,
		BusinessID:        row.BusinessID,
		AssessedAt:        parseTimestamp(row.AssessedAt),
		LiquidityScore:    row.LiquidityScore,
		CashflowRiskScore: row.CashflowRiskScore,
		VolatilityIndex:   row.VolatilityIndex,
		DrawdownProb:      row.DrawdownProb,
		SourceForecastID:  intPtr(row.SourceForecastID),
		Details:           decodeJSON(row.Details),
	}, nil
}

func toAlert(row Alert) (core.Alert, error) {
	a := core.Alert{
		ID:                  row.ID,
		BusinessID:          row.BusinessID,
		CreatedAt:           parseTimestamp(row.CreatedAt),
		Level:               core.AlertLevel(row.Level),
		Message:             row.Message,
		LinkedTransactionID: intPtr(row.LinkedTransactionID),
		LinkedForecastID:    intPtr(row.LinkedForecastID),
		Resolved:            row.Resolved != 0,
		Metadata:            decodeJSON(row.Metadata),
	}
	if row.ResolvedAt.Valid {
		at := parseTimestamp(row.ResolvedAt.String)
		a.ResolvedAt = &at
	}
	return a, nil
}

func convertAll[R, T any](rows []R, convert func(R) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := convert(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func dateKey(d *core.Date) string {
	if d == nil {
		return ""
	}
	return d.Key()
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string) map[string]any {
	m := map[string]any{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		slog.Warn("Discarding malformed JSON column", "error", err)
	}
	return m
}
