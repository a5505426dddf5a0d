package storage

import (
	"context"
	"database/sql"
)

const businessColumns = `id, name, currency, timezone, current_cash, created_at`

const createBusiness = `
INSERT INTO businesses (name, currency, timezone, current_cash, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + businessColumns

type CreateBusinessParams struct {
	Name        string
	Currency    string
	Timezone    string
	CurrentCash string
	CreatedAt   string
}

func (q *Queries) CreateBusiness(ctx context.Context, arg CreateBusinessParams) (Business, error) {
	row := q.db.QueryRowContext(ctx, createBusiness,
		arg.Name, arg.Currency, arg.Timezone, arg.CurrentCash, arg.CreatedAt)
	return scanBusiness(row)
}

const upsertBusiness = `
INSERT INTO businesses (id, name, currency, timezone, current_cash, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    currency = excluded.currency,
    timezone = excluded.timezone,
    current_cash = excluded.current_cash
RETURNING ` + businessColumns

type UpsertBusinessParams struct {
	ID          int64
	Name        string
	Currency    string
	Timezone    string
	CurrentCash string
	CreatedAt   string
}

func (q *Queries) UpsertBusiness(ctx context.Context, arg UpsertBusinessParams) (Business, error) {
	row := q.db.QueryRowContext(ctx, upsertBusiness,
		arg.ID, arg.Name, arg.Currency, arg.Timezone, arg.CurrentCash, arg.CreatedAt)
	return scanBusiness(row)
}

const getBusiness = `SELECT ` + businessColumns + ` FROM businesses WHERE id = ?`

func (q *Queries) GetBusiness(ctx context.Context, id int64) (Business, error) {
	return scanBusiness(q.db.QueryRowContext(ctx, getBusiness, id))
}

const listBusinesses = `SELECT ` + businessColumns + ` FROM businesses ORDER BY id`

func (q *Queries) ListBusinesses(ctx context.Context) ([]Business, error) {
	rows, err := q.db.QueryContext(ctx, listBusinesses)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBusiness)
}

const categoryColumns = `id, business_id, name, type, parent_id`

const createCategory = `
INSERT INTO categories (business_id, name, type, parent_id)
VALUES (?, ?, ?, ?)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	BusinessID int64
	Name       string
	Type       string
	ParentID   sql.NullInt64
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.BusinessID, arg.Name, arg.Type, arg.ParentID)
	return scanCategory(row)
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories WHERE business_id = ? ORDER BY id`

func (q *Queries) ListCategories(ctx context.Context, businessID int64) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, businessID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCategory)
}

const transactionColumns = `id, business_id, date, description, amount, direction, category_id, source, is_anomalous, created_at`

const createTransaction = `
INSERT INTO transactions (business_id, date, description, amount, direction, category_id, source, is_anomalous, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	BusinessID  int64
	Date        string
	Description string
	Amount      string
	Direction   string
	CategoryID  sql.NullInt64
	Source      string
	IsAnomalous int64
	CreatedAt   string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.BusinessID, arg.Date, arg.Description, arg.Amount, arg.Direction,
		arg.CategoryID, arg.Source, arg.IsAnomalous, arg.CreatedAt)
	return scanTransaction(row)
}

// Empty From/To leave the range open. Dates are ISO keys and compare lexically.
const listTransactions = `
SELECT ` + transactionColumns + ` FROM transactions
WHERE business_id = ?
  AND (? = '' OR date >= ?)
  AND (? = '' OR date <= ?)
ORDER BY date, id`

type ListTransactionsParams struct {
	BusinessID int64
	From       string
	To         string
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.BusinessID, arg.From, arg.From, arg.To, arg.To)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTransaction)
}

const forecastColumns = `id, business_id, granularity, period_start, period_end, predicted_value, lower_bound, upper_bound, metadata, created_at`

const createForecast = `
INSERT INTO forecasts (business_id, granularity, period_start, period_end, predicted_value, lower_bound, upper_bound, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + forecastColumns

type CreateForecastParams struct {
	BusinessID     int64
	Granularity    string
	PeriodStart    string
	PeriodEnd      string
	PredictedValue string
	LowerBound     string
	UpperBound     string
	Metadata       string
	CreatedAt      string
}

func (q *Queries) CreateForecast(ctx context.Context, arg CreateForecastParams) (Forecast, error) {
	row := q.db.QueryRowContext(ctx, createForecast,
		arg.BusinessID, arg.Granularity, arg.PeriodStart, arg.PeriodEnd,
		arg.PredictedValue, arg.LowerBound, arg.UpperBound, arg.Metadata, arg.CreatedAt)
	return scanForecast(row)
}

const listForecasts = `SELECT ` + forecastColumns + ` FROM forecasts WHERE business_id = ? ORDER BY id DESC`

func (q *Queries) ListForecasts(ctx context.Context, businessID int64) ([]Forecast, error) {
	rows, err := q.db.QueryContext(ctx, listForecasts, businessID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanForecast)
}

const getLatestForecast = `SELECT ` + forecastColumns + ` FROM forecasts WHERE business_id = ? ORDER BY id DESC LIMIT 1`

func (q *Queries) GetLatestForecast(ctx context.Context, businessID int64) (Forecast, error) {
	return scanForecast(q.db.QueryRowContext(ctx, getLatestForecast, businessID))
}

const riskScoreColumns = `id, business_id, assessed_at, liquidity_score, cashflow_risk_score, volatility_index, drawdown_prob, source_forecast_id, details`

const createRiskScore = `
INSERT INTO risk_scores (business_id, assessed_at, liquidity_score, cashflow_risk_score, volatility_index, drawdown_prob, source_forecast_id, details)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + riskScoreColumns

type CreateRiskScoreParams struct {
	BusinessID        int64
	AssessedAt        string
	LiquidityScore    float64
	CashflowRiskScore float64
	VolatilityIndex   float64
	DrawdownProb      float64
	SourceForecastID  sql.NullInt64
	Details           string
}

func (q *Queries) CreateRiskScore(ctx context.Context, arg CreateRiskScoreParams) (RiskScore, error) {
	row := q.db.QueryRowContext(ctx, createRiskScore,
		arg.BusinessID, arg.AssessedAt, arg.LiquidityScore, arg.CashflowRiskScore,
		arg.VolatilityIndex, arg.DrawdownProb, arg.SourceForecastID, arg.Details)
	return scanRiskScore(row)
}

const listRiskScores = `SELECT ` + riskScoreColumns + ` FROM risk_scores WHERE business_id = ? ORDER BY id DESC LIMIT ?`

type ListRiskScoresParams struct {
	BusinessID int64
	Limit      int64
}

func (q *Queries) ListRiskScores(ctx context.Context, arg ListRiskScoresParams) ([]RiskScore, error) {
	rows, err := q.db.QueryContext(ctx, listRiskScores, arg.BusinessID, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRiskScore)
}

const alertColumns = `id, business_id, created_at, level, message, linked_transaction_id, linked_forecast_id, resolved, resolved_at, metadata`

const createAlert = `
INSERT INTO alerts (business_id, created_at, level, message, linked_transaction_id, linked_forecast_id, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + alertColumns

type CreateAlertParams struct {
	BusinessID          int64
	CreatedAt           string
	Level               string
	Message             string
	LinkedTransactionID sql.NullInt64
	LinkedForecastID    sql.NullInt64
	Metadata            string
}

func (q *Queries) CreateAlert(ctx context.Context, arg CreateAlertParams) (Alert, error) {
	row := q.db.QueryRowContext(ctx, createAlert,
		arg.BusinessID, arg.CreatedAt, arg.Level, arg.Message,
		arg.LinkedTransactionID, arg.LinkedForecastID, arg.Metadata)
	return scanAlert(row)
}

const listAlerts = `
SELECT ` + alertColumns + ` FROM alerts
WHERE business_id = ? AND (? = 1 OR resolved = 0)
ORDER BY id DESC`

type ListAlertsParams struct {
	BusinessID      int64
	IncludeResolved int64
}

func (q *Queries) ListAlerts(ctx context.Context, arg ListAlertsParams) ([]Alert, error) {
	rows, err := q.db.QueryContext(ctx, listAlerts, arg.BusinessID, arg.IncludeResolved)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAlert)
}

const resolveAlert = `
UPDATE alerts SET resolved = 1, resolved_at = COALESCE(resolved_at, ?)
WHERE id = ? AND business_id = ?
RETURNING ` + alertColumns

type ResolveAlertParams struct {
	ResolvedAt string
	ID         int64
	BusinessID int64
}

func (q *Queries) ResolveAlert(ctx context.Context, arg ResolveAlertParams) (Alert, error) {
	return scanAlert(q.db.QueryRowContext(ctx, resolveAlert, arg.ResolvedAt, arg.ID, arg.BusinessID))
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBusiness(s scanner) (Business, error) {
	var i Business
	err := s.Scan(&i.ID, &i.Name, &i.Currency, &i.Timezone, &i.CurrentCash, &i.CreatedAt)
	return i, err
}

func scanCategory(s scanner) (Category, error) {
	var i Category
	err := s.Scan(&i.ID, &i.BusinessID, &i.Name, &i.Type, &i.ParentID)
	return i, err
}

func scanTransaction(s scanner) (Transaction, error) {
	var i Transaction
	err := s.Scan(&i.ID, &i.BusinessID, &i.Date, &i.Description, &i.Amount, &i.Direction,
		&i.CategoryID, &i.Source, &i.IsAnomalous, &i.CreatedAt)
	return i, err
}

func scanForecast(s scanner) (Forecast, error) {
	var i Forecast
	err := s.Scan(&i.ID, &i.BusinessID, &i.Granularity, &i.PeriodStart, &i.PeriodEnd,
		&i.PredictedValue, &i.LowerBound, &i.UpperBound, &i.Metadata, &i.CreatedAt)
	return i, err
}

func scanRiskScore(s scanner) (RiskScore, error) {
	var i RiskScore
	err := s.Scan(&i.ID, &i.BusinessID, &i.AssessedAt, &i.LiquidityScore, &i.CashflowRiskScore,
		&i.VolatilityIndex, &i.DrawdownProb, &i.SourceForecastID, &i.Details)
	return i, err
}

func scanAlert(s scanner) (Alert, error) {
	var i Alert
	err := s.Scan(&i.ID, &i.BusinessID, &i.CreatedAt, &i.Level, &i.Message,
		&i.LinkedTransactionID, &i.LinkedForecastID, &i.Resolved, &i.ResolvedAt, &i.Metadata)
	return i, err
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	items := []T{}
	for rows.Next() {
		i, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
