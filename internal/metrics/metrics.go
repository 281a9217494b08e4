package metrics

import (
	"net/http"
	"time"
)

// Metrics holds all engine metrics.
type Metrics struct {
	// Scheduler metrics
	EvaluationsIssued *Counter
	EvaluationsDone   *Counter
	EvaluationsFailed *Counter
	StaleDrops        *Counter
	BatchLatency      *Histogram

	// Cache metrics
	CacheHits   *Counter
	CacheMisses *Counter
	StoreHits   *Counter

	// Grid metrics
	ColumnsCompleted *Counter
	CatalogResets    *Counter
}

// New creates a metrics instance with all metrics initialized.
func New() *Metrics {
	return &Metrics{
		EvaluationsIssued: NewCounter(
			"grid_evaluations_issued_total",
			"Total number of evaluation calls issued to the scoring service",
		),
		EvaluationsDone: NewCounter(
			"grid_evaluations_done_total",
			"Total number of evaluations that completed successfully",
		),
		EvaluationsFailed: NewCounter(
			"grid_evaluations_failed_total",
			"Total number of evaluations recorded as errors",
		),
		StaleDrops: NewCounter(
			"grid_stale_responses_dropped_total",
			"Total number of responses discarded for a stale catalog epoch",
		),
		BatchLatency: NewHistogram(
			"grid_batch_duration_milliseconds",
			"Wall time of evaluation batches in milliseconds",
			nil,
		),
		CacheHits: NewCounter(
			"grid_cache_hits_total",
			"Evaluations satisfied by the in-session record cache",
		),
		CacheMisses: NewCounter(
			"grid_cache_misses_total",
			"Evaluations that required a scoring call",
		),
		StoreHits: NewCounter(
			"grid_store_hits_total",
			"Evaluations satisfied by the persistent record store",
		),
		ColumnsCompleted: NewCounter(
			"grid_columns_completed_total",
			"Total number of column-completed transitions",
		),
		CatalogResets: NewCounter(
			"grid_catalog_resets_total",
			"Total number of catalog replacements",
		),
	}
}

// ObserveBatch records one batch's wall time.
func (m *Metrics) ObserveBatch(d time.Duration) {
	m.BatchLatency.Observe(float64(d.Milliseconds()))
}

// Handler returns an HTTP handler serving the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(m.PrometheusFormat()))
	})
}
