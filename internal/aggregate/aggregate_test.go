package aggregate

import (
	"math"
	"testing"
)

func TestMeans(t *testing.T) {
	samples := []Sample{
		{Selection: map[string]int{"dimA": 0, "dimB": 0}, Value: 80, Scored: true},
		{Selection: map[string]int{"dimA": 0, "dimB": 1}, Value: 60, Scored: true},
		{Selection: map[string]int{"dimA": 1, "dimB": 0}, Value: 90, Scored: true},
		// Errored column: excluded everywhere.
		{Selection: map[string]int{"dimA": 1, "dimB": 1}, Scored: false},
	}

	entries := Means(samples)

	want := map[[2]interface{}]struct {
		mean  float64
		count int
	}{
		{"dimA", 0}: {70, 2},
		{"dimA", 1}: {90, 1},
		{"dimB", 0}: {85, 2},
		{"dimB", 1}: {60, 1},
	}

	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for _, e := range entries {
		w, ok := want[[2]interface{}{e.Dimension, e.ValueIndex}]
		if !ok {
			t.Errorf("unexpected entry %+v", e)
			continue
		}
		if math.Abs(e.Mean-w.mean) > 1e-9 {
			t.Errorf("(%s,%d) mean = %v, want %v", e.Dimension, e.ValueIndex, e.Mean, w.mean)
		}
		if e.Count != w.count {
			t.Errorf("(%s,%d) count = %d, want %d", e.Dimension, e.ValueIndex, e.Count, w.count)
		}
	}
}

func TestMeansNoData(t *testing.T) {
	// Nothing scored: no entries at all, not zeros.
	samples := []Sample{
		{Selection: map[string]int{"dimA": 0}, Scored: false},
		{Selection: map[string]int{"dimA": 1}, Scored: false},
	}
	if entries := Means(samples); len(entries) != 0 {
		t.Errorf("Means() = %v, want empty", entries)
	}

	if entries := Means(nil); len(entries) != 0 {
		t.Errorf("Means(nil) = %v, want empty", entries)
	}
}

func TestMeansOrdering(t *testing.T) {
	samples := []Sample{
		{Selection: map[string]int{"zeta": 1, "alpha": 0}, Value: 1, Scored: true},
		{Selection: map[string]int{"zeta": 0, "alpha": 1}, Value: 2, Scored: true},
	}

	entries := Means(samples)
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if prev.Dimension > cur.Dimension ||
			(prev.Dimension == cur.Dimension && prev.ValueIndex > cur.ValueIndex) {
			t.Errorf("entries out of order at %d: %+v before %+v", i, prev, cur)
		}
	}
}
