// Package scoring defines the contract with the external scoring service
// that evaluates one fully resolved pipeline configuration, and provides
// an HTTP client for it.
package scoring

import (
	"context"

	"github.com/raggrid/rag-grid/internal/catalog"
)

// Metric names accepted as the active display metric.
const (
	MetricAccuracy = "accuracy"
	MetricRecall   = "recall"
	MetricMRR      = "mrr"
	MetricMAP      = "map"
)

// MetricNames lists the selectable display metrics.
var MetricNames = []string{MetricAccuracy, MetricRecall, MetricMRR, MetricMAP}

// Metrics is the result of evaluating one configuration.
type Metrics struct {
	Accuracy       float64 `json:"accuracy"`
	Recall         float64 `json:"recall"`
	MRR            float64 `json:"mrr"`
	MAP            float64 `json:"map"`
	TotalQuestions int     `json:"total_questions"`
}

// Sentinel returns the metrics recorded for a failed evaluation: -1 in
// every numeric field, so failures are visible but never mistaken for
// real scores.
func Sentinel() Metrics {
	return Metrics{
		Accuracy:       -1,
		Recall:         -1,
		MRR:            -1,
		MAP:            -1,
		TotalQuestions: -1,
	}
}

// Value returns the named metric, or false for an unknown name.
func (m Metrics) Value(name string) (float64, bool) {
	switch name {
	case MetricAccuracy:
		return m.Accuracy, true
	case MetricRecall:
		return m.Recall, true
	case MetricMRR:
		return m.MRR, true
	case MetricMAP:
		return m.MAP, true
	default:
		return 0, false
	}
}

// ValidMetric reports whether name is a selectable display metric.
func ValidMetric(name string) bool {
	_, ok := Metrics{}.Value(name)
	return ok
}

// Collaborator evaluates a resolved parameter set. Implementations must
// respect ctx cancellation and bound their own request time; the engine
// treats any returned error as a terminal evaluation failure.
type Collaborator interface {
	Evaluate(ctx context.Context, params catalog.Params, workers int) (Metrics, error)
}
