// Package client provides an HTTP client for the RAG Grid API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/engine"
)

// Client is an HTTP client for the RAG Grid API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the API server.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts. Zero means no limit.
	MaxIdleConns int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		Timeout:         30 * time.Second,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:      cfg.MaxIdleConns,
		IdleConnTimeout:   cfg.IdleConnTimeout,
		ForceAttemptHTTP2: true,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ToggleResponse reports how a toggle changed a column.
type ToggleResponse struct {
	Transition string `json:"transition"`
	Column     int    `json:"column"`
}

// ColumnsResponse is the column list plus display permutation.
type ColumnsResponse struct {
	Columns []engine.ColumnView `json:"columns"`
	Order   []int               `json:"order"`
}

// AggregatesResponse carries the per-value means of the active metric.
type AggregatesResponse struct {
	Metric     string `json:"metric"`
	Aggregates []struct {
		Dimension  string  `json:"dimension"`
		ValueIndex int     `json:"value_index"`
		Mean       float64 `json:"mean"`
		Count      int     `json:"count"`
	} `json:"aggregates"`
}

// APIError represents an API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// envelope is the data/meta wrapper the server puts around /v1 responses.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// Health checks if the API is healthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot fetches the full grid state.
func (c *Client) Snapshot(ctx context.Context) (*engine.Snapshot, error) {
	var snap engine.Snapshot
	if err := c.get(ctx, "/v1/grid", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Columns fetches the column views and display order.
func (c *Client) Columns(ctx context.Context) (*ColumnsResponse, error) {
	var resp ColumnsResponse
	if err := c.get(ctx, "/v1/grid/columns", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Aggregates fetches the per-value means of the active metric.
func (c *Client) Aggregates(ctx context.Context) (*AggregatesResponse, error) {
	var resp AggregatesResponse
	if err := c.get(ctx, "/v1/grid/aggregates", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AutoFill fills every column with its canonical combination.
func (c *Client) AutoFill(ctx context.Context) error {
	return c.post(ctx, "/v1/grid/autofill", nil, nil)
}

// Toggle edits one cell of a column.
func (c *Client) Toggle(ctx context.Context, column int, dimension string, valueIndex int) (*ToggleResponse, error) {
	req := map[string]interface{}{
		"column":      column,
		"dimension":   dimension,
		"value_index": valueIndex,
	}
	var resp ToggleResponse
	if err := c.post(ctx, "/v1/grid/toggle", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry re-schedules a failed evaluation.
func (c *Client) Retry(ctx context.Context, column int) error {
	return c.post(ctx, "/v1/grid/retry", map[string]int{"column": column}, nil)
}

// SetMetric switches the active display metric.
func (c *Client) SetMetric(ctx context.Context, metric string) error {
	return c.put(ctx, "/v1/grid/metric", map[string]string{"metric": metric}, nil)
}

// SetSortMode switches the display order mode.
func (c *Client) SetSortMode(ctx context.Context, mode string) error {
	return c.put(ctx, "/v1/grid/sort", map[string]string{"mode": mode}, nil)
}

// Catalog fetches the current dimension catalog.
func (c *Client) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	var cat catalog.Catalog
	if err := c.get(ctx, "/v1/catalog", &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// SetCatalog replaces the dimension catalog, resetting the grid.
func (c *Client) SetCatalog(ctx context.Context, cat *catalog.Catalog) error {
	return c.put(ctx, "/v1/catalog", cat, nil)
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post performs a POST request.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

// put performs a PUT request.
func (c *Client) put(ctx context.Context, path string, body, result interface{}) error {
	return c.send(ctx, http.MethodPut, path, body, result)
}

func (c *Client) send(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// do executes a request, unwrapping the /v1 response envelope.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}
		return &apiErr
	}

	if result == nil || len(body) == 0 {
		return nil
	}

	// /v1 responses arrive wrapped in a data/meta envelope; /healthz and
	// friends do not.
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
