// Package aggregate derives per-parameter-value statistics from partially
// completed evaluation results.
package aggregate

import "sort"

// Sample is one column's contribution to the aggregates: its selected
// value index per varying dimension and its score on the active metric.
// Unscored columns (incomplete, pending, or errored) carry Scored=false
// and are excluded from every mean.
type Sample struct {
	Selection map[string]int
	Value     float64
	Scored    bool
}

// Entry is the mean metric value over all scored columns that have the
// given value selected for the given dimension.
type Entry struct {
	Dimension  string  `json:"dimension"`
	ValueIndex int     `json:"value_index"`
	Mean       float64 `json:"mean"`
	Count      int     `json:"count"`
}

type key struct {
	dimension  string
	valueIndex int
}

// Means computes the arithmetic mean of the metric per (dimension, value)
// pair. Pairs with no scored contributions are omitted entirely: absent
// data is "no data", never zero. The result is ordered by dimension key,
// then value index.
func Means(samples []Sample) []Entry {
	sums := make(map[key]float64)
	counts := make(map[key]int)

	for _, s := range samples {
		if !s.Scored {
			continue
		}
		for dim, idx := range s.Selection {
			k := key{dimension: dim, valueIndex: idx}
			sums[k] += s.Value
			counts[k]++
		}
	}

	entries := make([]Entry, 0, len(sums))
	for k, sum := range sums {
		entries = append(entries, Entry{
			Dimension:  k.dimension,
			ValueIndex: k.valueIndex,
			Mean:       sum / float64(counts[k]),
			Count:      counts[k],
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Dimension != entries[j].Dimension {
			return entries[i].Dimension < entries[j].Dimension
		}
		return entries[i].ValueIndex < entries[j].ValueIndex
	})
	return entries
}
