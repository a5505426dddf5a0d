// Package remote reads ledger data and dashboards from a running cashflow API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/datasource"
	"cashflow/internal/services"
)

const DefaultTimeout = 10 * time.Second

var _ datasource.LedgerReader = (*Client)(nil)

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a client for the API rooted at baseURL. A nil httpClient uses
// one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) ListBusinesses(ctx context.Context) ([]core.Business, error) {
	var out []core.Business
	return out, c.get(ctx, "/api/businesses", nil, &out)
}

func (c *Client) GetBusiness(ctx context.Context, id int64) (core.Business, error) {
	var out core.Business
	return out, c.get(ctx, businessPath(id, ""), nil, &out)
}

func (c *Client) ListTransactions(ctx context.Context, businessID int64, from, to *core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	return out, c.get(ctx, businessPath(businessID, "/transactions"), rangeQuery(from, to), &out)
}

func (c *Client) ListCategories(ctx context.Context, businessID int64) ([]core.Category, error) {
	var out []core.Category
	return out, c.get(ctx, businessPath(businessID, "/categories"), nil, &out)
}

// Dashboard fetches the server-side assembled snapshot.
func (c *Client) Dashboard(ctx context.Context, businessID int64, from, to *core.Date) (core.DashboardSnapshot, error) {
	var out core.DashboardSnapshot
	return out, c.get(ctx, businessPath(businessID, "/dashboard"), rangeQuery(from, to), &out)
}

func (c *Client) ListAlerts(ctx context.Context, businessID int64, includeResolved bool) ([]core.Alert, error) {
	q := url.Values{}
	if includeResolved {
		q.Set("include_resolved", "true")
	}
	var out []core.Alert
	return out, c.get(ctx, businessPath(businessID, "/alerts"), q, &out)
}

// Project submits a projection request and returns the stored forecast.
func (c *Client) Project(ctx context.Context, businessID int64, req services.ProjectionRequest) (core.ForecastResult, error) {
	var out core.ForecastResult
	return out, c.post(ctx, businessPath(businessID, "/forecasts/project"), req, &out)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, out any) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", core.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", core.ErrUpstream, path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = core.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		kind = core.ErrInvalidInput
	default:
		kind = core.ErrUpstream
	}
	return fmt.Errorf("%w: %s (status %d)", kind, body.Error, resp.StatusCode)
}

func businessPath(id int64, suffix string) string {
	return "/api/businesses/" + strconv.FormatInt(id, 10) + suffix
}

func rangeQuery(from, to *core.Date) url.Values {
	q := url.Values{}
	if from != nil {
		q.Set("from", from.Key())
	}
	if to != nil {
		q.Set("to", to.Key())
	}
	return q
}
