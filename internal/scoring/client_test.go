package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
)

func TestMetricsValue(t *testing.T) {
	m := Metrics{Accuracy: 80, Recall: 0.7, MRR: 0.5, MAP: 0.4, TotalQuestions: 100}

	tests := []struct {
		name string
		want float64
	}{
		{MetricAccuracy, 80},
		{MetricRecall, 0.7},
		{MetricMRR, 0.5},
		{MetricMAP, 0.4},
	}
	for _, tt := range tests {
		got, ok := m.Value(tt.name)
		if !ok || got != tt.want {
			t.Errorf("Value(%s) = %v, %v; want %v, true", tt.name, got, ok, tt.want)
		}
	}

	if _, ok := m.Value("f1"); ok {
		t.Error("Value(f1) ok, want unknown metric")
	}
}

func TestSentinel(t *testing.T) {
	s := Sentinel()
	for _, name := range MetricNames {
		if v, _ := s.Value(name); v != -1 {
			t.Errorf("Sentinel().%s = %v, want -1", name, v)
		}
	}
	if s.TotalQuestions != -1 {
		t.Errorf("Sentinel().TotalQuestions = %d, want -1", s.TotalQuestions)
	}
}

func TestClientEvaluate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evaluate_configuration" {
			t.Errorf("path = %q, want /evaluate_configuration", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}

		var req struct {
			SelectedParameters struct {
				Values map[string][]string `json:"values"`
			} `json:"selectedParameters"`
			ConcurrentWorkers int `json:"concurrentWorkers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if got := req.SelectedParameters.Values["chunk_size"]; len(got) != 1 || got[0] != "500" {
			t.Errorf("chunk_size = %v, want [500]", got)
		}
		if req.ConcurrentWorkers != 4 {
			t.Errorf("concurrentWorkers = %d, want 4", req.ConcurrentWorkers)
		}

		acc, rec, mrr, ap := 80.0, 0.75, 0.6, 0.55
		json.NewEncoder(w).Encode(map[string]any{
			"ragAccuracy":    acc,
			"ragRecall":      rec,
			"ragMrr":         mrr,
			"ragMap":         ap,
			"totalQuestions": 125,
			"fromCache":      false,
		})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	m, err := c.Evaluate(context.Background(), catalog.Params{"chunk_size": "500"}, 4)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if m.Accuracy != 80 || m.Recall != 0.75 || m.MRR != 0.6 || m.MAP != 0.55 {
		t.Errorf("metrics = %+v", m)
	}
	if m.TotalQuestions != 125 {
		t.Errorf("TotalQuestions = %d, want 125", m.TotalQuestions)
	}
}

func TestClientEvaluateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "dataset not found"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	_, err := c.Evaluate(context.Background(), catalog.Params{"dataset": "missing"}, 1)
	if err == nil {
		t.Fatal("Evaluate() succeeded, want error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != errors.CodeScoring {
		t.Errorf("error = %v, want SCORING_ERROR", err)
	}
	if appErr.Message != "dataset not found" {
		t.Errorf("message = %q, want service error message", appErr.Message)
	}
}

func TestClientEvaluateMissingMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"totalQuestions": 10})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	if _, err := c.Evaluate(context.Background(), catalog.Params{"k": "5"}, 1); err == nil {
		t.Fatal("Evaluate() succeeded on response without metric fields, want error")
	}
}

func TestClientEvaluateTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient(Config{BaseURL: server.URL})
	_, err := c.Evaluate(ctx, catalog.Params{"k": "5"}, 1)
	if err == nil {
		t.Fatal("Evaluate() succeeded past the deadline, want error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != errors.CodeTimeout {
		t.Errorf("error = %v, want TIMEOUT", err)
	}
}

func TestClientEvaluateContextCanceled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{BaseURL: server.URL})
	if _, err := c.Evaluate(ctx, catalog.Params{"k": "5"}, 1); err == nil {
		t.Fatal("Evaluate() succeeded with canceled context, want error")
	}
}
