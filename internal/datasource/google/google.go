// Package google reads a single business ledger from a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/datasource"

	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultTransactionsSheet = "Transactions"
	DefaultCategoriesSheet   = "Categories"
	DefaultCacheTTL          = time.Minute

	ledgerKey = "ledger"
)

var _ datasource.LedgerReader = (*Client)(nil)

// Credentials selects how the client authenticates. A service account wins
// over an OAuth token.
type Credentials struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientFile    string
	OAuthTokenFile     string
}

type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	CategoriesSheet   string
	BusinessID        int64
	Currency          string
	// CashCell is an A1 reference holding the business' current cash, e.g. "Summary!B2".
	CashCell    string
	CacheTTL    time.Duration
	Credentials Credentials
}

// Ledger is one read of the spreadsheet.
type Ledger struct {
	Business     core.Business
	Categories   []core.Category
	Transactions []core.Transaction
}

// sheetsAPI is the slice of the Sheets service the client needs.
type sheetsAPI interface {
	Values(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Title(ctx context.Context, spreadsheetID string) (string, error)
}

type gsheetAPI struct {
	svc *gsheet.Service
}

func (a gsheetAPI) Values(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a gsheetAPI) Title(ctx context.Context, spreadsheetID string) (string, error) {
	resp, err := a.svc.Spreadsheets.Get(spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Properties == nil {
		return "", nil
	}
	return resp.Properties.Title, nil
}

type Client struct {
	api    sheetsAPI
	cfg    Config
	ledger *cache.LRUCache[Ledger]
}

// New creates a reader over cfg.SpreadsheetID.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	opts, err := ClientOptions(ctx, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("sheets credentials: %w", err)
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return newClient(gsheetAPI{svc: svc}, cfg), nil
}

func newClient(api sheetsAPI, cfg Config) *Client {
	if cfg.TransactionsSheet == "" {
		cfg.TransactionsSheet = DefaultTransactionsSheet
	}
	if cfg.CategoriesSheet == "" {
		cfg.CategoriesSheet = DefaultCategoriesSheet
	}
	if cfg.BusinessID <= 0 {
		cfg.BusinessID = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Client{
		api:    api,
		cfg:    cfg,
		ledger: cache.NewLRUCache[Ledger](1, cfg.CacheTTL),
	}
}

// ClientOptions builds Sheets client options from a service account or a
// stored OAuth token.
func ClientOptions(ctx context.Context, c Credentials) ([]goption.ClientOption, error) {
	if c.ServiceAccountJSON == "" && c.ServiceAccountFile == "" && c.OAuthTokenFile == "" {
		c.ServiceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case c.ServiceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return serviceAccount([]byte(c.ServiceAccountJSON)), nil
	case c.ServiceAccountFile != "":
		b, err := os.ReadFile(c.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Using service account file", "path", c.ServiceAccountFile)
		return serviceAccount(b), nil
	case c.OAuthTokenFile != "":
		if c.OAuthClientFile == "" {
			return nil, errors.New("OAuth token requires an OAuth client file")
		}
		clientJSON, err := os.ReadFile(c.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		tok, err := LoadToken(c.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using stored OAuth token", "path", c.OAuthTokenFile)
		return []goption.ClientOption{goption.WithTokenSource(cfg.TokenSource(ctx, tok))}, nil
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_TOKEN_FILE)")
	}
}

func serviceAccount(b []byte) []goption.ClientOption {
	return []goption.ClientOption{
		goption.WithCredentialsJSON(b),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
	}
}

// ReadLedger returns the cached ledger or reads it from the spreadsheet.
func (c *Client) ReadLedger(ctx context.Context) (Ledger, error) {
	if l, ok := c.ledger.Get(ledgerKey); ok {
		return l, nil
	}

	l, err := c.readLedger(ctx)
	if err != nil {
		return Ledger{}, fmt.Errorf("%w: sheets: %w", core.ErrUpstream, err)
	}
	c.ledger.Set(ledgerKey, l)
	return l, nil
}

// Invalidate drops the cached ledger.
func (c *Client) Invalidate() {
	c.ledger.Delete(ledgerKey)
}

func (c *Client) readLedger(ctx context.Context) (Ledger, error) {
	title, err := c.api.Title(ctx, c.cfg.SpreadsheetID)
	if err != nil {
		return Ledger{}, fmt.Errorf("read title: %w", err)
	}
	b := core.Business{
		ID:       c.cfg.BusinessID,
		Name:     title,
		Currency: c.cfg.Currency,
		Timezone: "UTC",
	}
	if b.Name == "" {
		b.Name = c.cfg.SpreadsheetID
	}
	if c.cfg.CashCell != "" {
		values, err := c.api.Values(ctx, c.cfg.SpreadsheetID, c.cfg.CashCell)
		if err != nil {
			return Ledger{}, fmt.Errorf("read %s: %w", c.cfg.CashCell, err)
		}
		if len(values) > 0 && len(values[0]) > 0 {
			cash, err := core.ParseAmount(strings.ReplaceAll(fmt.Sprint(values[0][0]), " ", ""))
			if err != nil {
				return Ledger{}, fmt.Errorf("read %s: %w", c.cfg.CashCell, err)
			}
			b.CurrentCash = cash
		}
	}

	catRange := c.cfg.CategoriesSheet + "!A:C"
	catValues, err := c.api.Values(ctx, c.cfg.SpreadsheetID, catRange)
	if err != nil {
		return Ledger{}, fmt.Errorf("read %s: %w", catRange, err)
	}
	cats, catSkipped, err := parseCategories(catValues, b.ID)
	if err != nil {
		return Ledger{}, err
	}

	txRange := c.cfg.TransactionsSheet + "!A:G"
	txValues, err := c.api.Values(ctx, c.cfg.SpreadsheetID, txRange)
	if err != nil {
		return Ledger{}, fmt.Errorf("read %s: %w", txRange, err)
	}
	txs, txSkipped, err := parseTransactions(txValues, b.ID, cats)
	if err != nil {
		return Ledger{}, err
	}

	if err := errors.Join(
		rowsErr(c.cfg.CategoriesSheet, catSkipped),
		rowsErr(c.cfg.TransactionsSheet, txSkipped),
	); err != nil {
		slog.WarnContext(ctx, "Rejecting ledger with malformed rows",
			"spreadsheet_id", c.cfg.SpreadsheetID,
			"category_rows", len(catSkipped),
			"transaction_rows", len(txSkipped))
		return Ledger{}, err
	}
	slog.InfoContext(ctx, "Ledger read from sheets",
		"spreadsheet_id", c.cfg.SpreadsheetID,
		"categories", len(cats),
		"transactions", len(txs))

	return Ledger{
		Business:     b,
		Categories:   cats,
		Transactions: txs,
	}, nil
}

func (c *Client) ListBusinesses(ctx context.Context) ([]core.Business, error) {
	l, err := c.ReadLedger(ctx)
	if err != nil {
		return nil, err
	}
	return []core.Business{l.Business}, nil
}

func (c *Client) GetBusiness(ctx context.Context, id int64) (core.Business, error) {
	if id != c.cfg.BusinessID {
		return core.Business{}, fmt.Errorf("business %d: %w", id, core.ErrNotFound)
	}
	l, err := c.ReadLedger(ctx)
	if err != nil {
		return core.Business{}, err
	}
	return l.Business, nil
}

func (c *Client) ListCategories(ctx context.Context, businessID int64) ([]core.Category, error) {
	if businessID != c.cfg.BusinessID {
		return []core.Category{}, nil
	}
	l, err := c.ReadLedger(ctx)
	if err != nil {
		return nil, err
	}
	return append([]core.Category{}, l.Categories...), nil
}

func (c *Client) ListTransactions(ctx context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error) {
	if businessID != c.cfg.BusinessID {
		return []core.Transaction{}, nil
	}
	l, err := c.ReadLedger(ctx)
	if err != nil {
		return nil, err
	}
	out := []core.Transaction{}
	for _, t := range l.Transactions {
		if from != nil && t.Date.Before(from.Time) {
			continue
		}
		if to != nil && t.Date.After(to.Time) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
