// Package matrix holds the combinatorial machinery of the experiment grid:
// enumeration of the cartesian product of varying dimensions and the sparse,
// editable selection state of each column.
package matrix

import (
	"fmt"

	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
)

// Enumerator maps column indices to per-dimension value indices and back
// using mixed-radix decomposition. The first varying dimension varies
// fastest. Columns are never materialized; they are coordinates.
type Enumerator struct {
	dims  []catalog.Dimension
	radix []int
	count int
}

// NewEnumerator builds an enumerator over the given varying dimensions.
// With no varying dimensions the matrix degenerates to a single column
// carrying only fixed values.
func NewEnumerator(varying []catalog.Dimension) *Enumerator {
	radix := make([]int, len(varying))
	count := 1
	for i, d := range varying {
		radix[i] = len(d.Values)
		count *= len(d.Values)
	}
	return &Enumerator{dims: varying, radix: radix, count: count}
}

// Count returns the total number of columns.
func (e *Enumerator) Count() int {
	return e.count
}

// Dimensions returns the varying dimensions in enumeration order.
func (e *Enumerator) Dimensions() []catalog.Dimension {
	return e.dims
}

// Decode maps a column index to one value index per varying dimension.
func (e *Enumerator) Decode(column int) ([]int, error) {
	if column < 0 || column >= e.count {
		return nil, errors.InvalidRequestError(fmt.Sprintf("column %d out of range [0,%d)", column, e.count))
	}

	idx := make([]int, len(e.radix))
	rest := column
	for i, m := range e.radix {
		idx[i] = rest % m
		rest /= m
	}
	return idx, nil
}

// Encode maps per-dimension value indices back to a column index.
// It is the inverse of Decode.
func (e *Enumerator) Encode(indices []int) (int, error) {
	if len(indices) != len(e.radix) {
		return 0, errors.InvalidRequestError(fmt.Sprintf("got %d indices, want %d", len(indices), len(e.radix)))
	}

	column := 0
	stride := 1
	for i, m := range e.radix {
		if indices[i] < 0 || indices[i] >= m {
			return 0, errors.InvalidRequestError(fmt.Sprintf("index %d out of range [0,%d) for dimension %q", indices[i], m, e.dims[i].Key))
		}
		column += indices[i] * stride
		stride *= m
	}
	return column, nil
}
