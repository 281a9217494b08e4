package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
)

// Client is an HTTP client for the scoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the scoring service.
	BaseURL string

	// Timeout is the per-evaluation request timeout. Evaluations run a
	// whole question set through the pipeline, so this is generous.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections. Zero means the transport default.
	MaxIdleConns int

	// IdleConnTimeout is how long an idle connection is kept open.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:6006",
		Timeout:         10 * time.Minute,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewClient creates a scoring service client.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    cfg.MaxIdleConns,
				IdleConnTimeout: cfg.IdleConnTimeout,
			},
		},
	}
}

// evaluateRequest is the wire format the scoring service accepts. Every
// parameter value travels as a single-element list.
type evaluateRequest struct {
	SelectedParameters struct {
		Values map[string][]string `json:"values"`
	} `json:"selectedParameters"`
	ConcurrentWorkers int `json:"concurrentWorkers"`
}

// evaluateResponse is the scoring service's result payload.
type evaluateResponse struct {
	RagAccuracy    *float64 `json:"ragAccuracy"`
	RagRecall      *float64 `json:"ragRecall"`
	RagMrr         *float64 `json:"ragMrr"`
	RagMap         *float64 `json:"ragMap"`
	TotalQuestions int      `json:"totalQuestions"`
	FromCache      bool     `json:"fromCache"`
	Error          string   `json:"error"`
}

// Evaluate runs one configuration through the scoring service.
func (c *Client) Evaluate(ctx context.Context, params catalog.Params, workers int) (Metrics, error) {
	if workers <= 0 {
		workers = 1
	}

	var req evaluateRequest
	req.SelectedParameters.Values = make(map[string][]string, len(params))
	for k, v := range params {
		req.SelectedParameters.Values[k] = []string{v}
	}
	req.ConcurrentWorkers = workers

	body, err := json.Marshal(req)
	if err != nil {
		return Metrics{}, errors.InternalError("encoding evaluation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/evaluate_configuration", bytes.NewReader(body))
	if err != nil {
		return Metrics{}, errors.InternalError("building evaluation request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return Metrics{}, errors.TimeoutError("scoring evaluation")
		}
		return Metrics{}, errors.ScoringError("evaluation request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Metrics{}, errors.ScoringError("reading evaluation response", err)
	}

	var out evaluateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Metrics{}, errors.ScoringError("decoding evaluation response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("scoring service returned status %d", resp.StatusCode)
		}
		return Metrics{}, errors.ScoringError(msg, nil)
	}

	if out.RagAccuracy == nil || out.RagRecall == nil || out.RagMrr == nil || out.RagMap == nil {
		return Metrics{}, errors.ScoringError("scoring response missing metric fields", nil)
	}

	return Metrics{
		Accuracy:       *out.RagAccuracy,
		Recall:         *out.RagRecall,
		MRR:            *out.RagMrr,
		MAP:            *out.RagMap,
		TotalQuestions: out.TotalQuestions,
	}, nil
}
