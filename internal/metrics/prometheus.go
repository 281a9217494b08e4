package metrics

import (
	"fmt"
	"strings"
)

// PrometheusFormat exports all metrics in Prometheus text exposition format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func (m *Metrics) PrometheusFormat() string {
	var sb strings.Builder

	for _, c := range []*Counter{
		m.EvaluationsIssued,
		m.EvaluationsDone,
		m.EvaluationsFailed,
		m.StaleDrops,
		m.CacheHits,
		m.CacheMisses,
		m.StoreHits,
		m.ColumnsCompleted,
		m.CatalogResets,
	} {
		writeCounter(&sb, c)
	}

	writeHistogram(&sb, m.BatchLatency)

	return sb.String()
}

func writeCounter(sb *strings.Builder, c *Counter) {
	fmt.Fprintf(sb, "# HELP %s %s\n", c.Name(), c.Help())
	fmt.Fprintf(sb, "# TYPE %s counter\n", c.Name())
	fmt.Fprintf(sb, "%s %d\n", c.Name(), c.Value())
}

func writeHistogram(sb *strings.Builder, h *Histogram) {
	buckets, cumulative, sum, count := h.snapshot()

	fmt.Fprintf(sb, "# HELP %s %s\n", h.Name(), h.Help())
	fmt.Fprintf(sb, "# TYPE %s histogram\n", h.Name())
	for i, b := range buckets {
		fmt.Fprintf(sb, "%s_bucket{le=\"%g\"} %d\n", h.Name(), b, cumulative[i])
	}
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", h.Name(), cumulative[len(cumulative)-1])
	fmt.Fprintf(sb, "%s_sum %g\n", h.Name(), sum)
	fmt.Fprintf(sb, "%s_count %d\n", h.Name(), count)
}
