package storage

import "database/sql"

type Business struct {
	ID          int64
	Name        string
	Currency    string
	Timezone    string
	CurrentCash string
	CreatedAt   string
}

type Category struct {
	ID         int64
	BusinessID int64
	Name       string
	Type       string
	ParentID   sql.NullInt64
}

type Transaction struct {
	ID          int64
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

type Forecast struct {
	ID             int64
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

type RiskScore struct {
	ID                int64
	BusinessID        int64
	AssessedAt        string
	LiquidityScore    float64
	CashflowRiskScore float64
	VolatilityIndex   float64
	DrawdownProb      float64
	SourceForecastID  sql.NullInt64
	Details           string
}

type Alert struct {
	ID                  int64
	BusinessID          int64
	CreatedAt           string
	Level               string
	Message             string
	LinkedTransactionID sql.NullInt64
	LinkedForecastID    sql.NullInt64
	Resolved            int64
	ResolvedAt          sql.NullString
	Metadata            string
}
