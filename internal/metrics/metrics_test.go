package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "A test counter")

	c.Inc()
	c.Inc()
	c.Add(3)
	if c.Value() != 5 {
		t.Errorf("Value() = %d, want 5", c.Value())
	}

	// Counters never decrease.
	c.Add(-10)
	if c.Value() != 5 {
		t.Errorf("Value() after negative Add = %d, want 5", c.Value())
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_ms", "A test histogram", []float64{10, 100, 1000})

	h.Observe(5)
	h.Observe(50)
	h.Observe(500)
	h.Observe(5000)

	buckets, cumulative, sum, count := h.snapshot()
	if len(buckets) != 3 {
		t.Fatalf("buckets = %v", buckets)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
	if sum != 5555 {
		t.Errorf("sum = %g, want 5555", sum)
	}

	wantCumulative := []int64{1, 2, 3, 4}
	for i, w := range wantCumulative {
		if cumulative[i] != w {
			t.Errorf("cumulative[%d] = %d, want %d", i, cumulative[i], w)
		}
	}
}

func TestPrometheusFormat(t *testing.T) {
	m := New()
	m.EvaluationsIssued.Add(7)
	m.CacheHits.Inc()
	m.ObserveBatch(1500 * time.Millisecond)

	out := m.PrometheusFormat()

	for _, want := range []string{
		"# TYPE grid_evaluations_issued_total counter",
		"grid_evaluations_issued_total 7",
		"grid_cache_hits_total 1",
		"# TYPE grid_batch_duration_milliseconds histogram",
		"grid_batch_duration_milliseconds_count 1",
		`grid_batch_duration_milliseconds_bucket{le="+Inf"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrometheusFormat() missing %q", want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.StaleDrops.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "grid_stale_responses_dropped_total 1") {
		t.Error("handler output missing stale drop counter")
	}
}
