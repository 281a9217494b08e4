// Package order produces the presentation permutation of column indices.
// It never mutates column identity; callers index their own state through
// the returned permutation.
package order

import (
	"fmt"
	"sort"

	"github.com/raggrid/rag-grid/internal/pkg/errors"
)

// Mode selects how columns are ordered.
type Mode string

const (
	// Natural presents columns in enumerator order, [0..N).
	Natural Mode = "natural"

	// Sorted presents scored columns by metric descending, then
	// unscored columns in natural order.
	Sorted Mode = "sorted"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Natural, Sorted:
		return Mode(s), nil
	default:
		return "", errors.InvalidRequestError(fmt.Sprintf("unknown sort mode %q", s))
	}
}

// Column is one column's standing on the active metric. Scored is false
// for incomplete, pending, and errored columns.
type Column struct {
	Index  int
	Value  float64
	Scored bool
}

// NaturalOrder returns the identity permutation [0..n).
func NaturalOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// SortedOrder partitions columns into scored and unscored, sorts the
// scored ones by metric descending with ties broken by index ascending,
// and appends the unscored ones in index order.
func SortedOrder(columns []Column) []int {
	scored := make([]Column, 0, len(columns))
	unscored := make([]int, 0, len(columns))

	for _, c := range columns {
		if c.Scored {
			scored = append(scored, c)
		} else {
			unscored = append(unscored, c.Index)
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Value != scored[j].Value {
			return scored[i].Value > scored[j].Value
		}
		return scored[i].Index < scored[j].Index
	})
	sort.Ints(unscored)

	out := make([]int, 0, len(columns))
	for _, c := range scored {
		out = append(out, c.Index)
	}
	return append(out, unscored...)
}

// Controller tracks the active mode and produces permutations on demand.
type Controller struct {
	mode Mode
}

// NewController starts in Natural mode.
func NewController() *Controller {
	return &Controller{mode: Natural}
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// SetMode switches the active mode.
func (c *Controller) SetMode(mode Mode) {
	c.mode = mode
}

// Permutation computes the display order for the given columns. The
// column slice must cover [0..N) exactly once.
func (c *Controller) Permutation(columns []Column) []int {
	if c.mode == Sorted {
		return SortedOrder(columns)
	}
	return NaturalOrder(len(columns))
}
