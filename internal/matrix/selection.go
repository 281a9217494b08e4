package matrix

import (
	"fmt"

	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
)

// Transition describes how a toggle changed a column's completeness.
type Transition int

const (
	// StillIncomplete means the column is missing at least one value
	// both before and after the edit.
	StillIncomplete Transition = iota

	// Completed means the edit gave the column its last missing value.
	Completed

	// Recompleted means the column was complete before and after the
	// edit but now resolves to a different parameter set.
	Recompleted

	// Uncompleted means the edit cleared a cell of a complete column.
	Uncompleted
)

// SelectionStore holds the sparse (column, dimension) -> valueIndex state.
// The two-level map makes the at-most-one-value-per-cell invariant hold by
// construction. The store is not goroutine safe; the engine serializes
// access to it.
type SelectionStore struct {
	cat   *catalog.Catalog
	enum  *Enumerator
	cells map[int]map[string]int

	// onCompleted is invoked synchronously whenever a column is complete
	// after an edit (either a fresh completion or a value replacement).
	onCompleted func(column int)
}

// NewSelectionStore creates an empty selection store over the catalog.
func NewSelectionStore(cat *catalog.Catalog, enum *Enumerator) *SelectionStore {
	return &SelectionStore{
		cat:   cat,
		enum:  enum,
		cells: make(map[int]map[string]int),
	}
}

// OnCompleted registers the column-completed notifier.
func (s *SelectionStore) OnCompleted(fn func(column int)) {
	s.onCompleted = fn
}

// AutoFill sets every column to its canonical combination, so the whole
// grid is fully specified. Every column fires the completed notifier.
func (s *SelectionStore) AutoFill() {
	dims := s.enum.Dimensions()
	for c := 0; c < s.enum.Count(); c++ {
		idx, err := s.enum.Decode(c)
		if err != nil {
			continue // unreachable: c iterates the enumerator's own range
		}

		cell := make(map[string]int, len(dims))
		for i, d := range dims {
			cell[d.Key] = idx[i]
		}
		s.cells[c] = cell

		if s.onCompleted != nil {
			s.onCompleted(c)
		}
	}
}

// Toggle edits one cell. Selecting an already-selected value clears it;
// selecting a different value replaces the previous one. The returned
// Transition tells the caller how completeness changed.
func (s *SelectionStore) Toggle(column int, dimKey string, valueIndex int) (Transition, error) {
	if column < 0 || column >= s.enum.Count() {
		return StillIncomplete, errors.InvalidRequestError(fmt.Sprintf("column %d out of range [0,%d)", column, s.enum.Count()))
	}

	dim, ok := s.varyingDimension(dimKey)
	if !ok {
		return StillIncomplete, errors.InvalidRequestError(fmt.Sprintf("%q is not a varying dimension", dimKey))
	}
	if valueIndex < 0 || valueIndex >= len(dim.Values) {
		return StillIncomplete, errors.InvalidRequestError(fmt.Sprintf("value index %d out of range for dimension %q", valueIndex, dimKey))
	}

	wasComplete := s.IsComplete(column)

	cell := s.cells[column]
	if cell == nil {
		cell = make(map[string]int)
		s.cells[column] = cell
	}

	if current, ok := cell[dimKey]; ok && current == valueIndex {
		// Re-selecting the chosen value clears the cell.
		delete(cell, dimKey)
		if len(cell) == 0 {
			delete(s.cells, column)
		}
		if wasComplete {
			return Uncompleted, nil
		}
		return StillIncomplete, nil
	}

	// Setting the cell replaces any previous choice for this dimension.
	cell[dimKey] = valueIndex

	if !s.IsComplete(column) {
		return StillIncomplete, nil
	}

	if s.onCompleted != nil {
		s.onCompleted(column)
	}
	if wasComplete {
		return Recompleted, nil
	}
	return Completed, nil
}

// IsComplete reports whether every varying dimension has a value selected
// for the column.
func (s *SelectionStore) IsComplete(column int) bool {
	cell := s.cells[column]
	for _, d := range s.enum.Dimensions() {
		if _, ok := cell[d.Key]; !ok {
			return false
		}
	}
	return true
}

// Resolve produces the full parameter set for a column: the single value of
// every fixed dimension plus the selected value of every varying dimension.
// Returns false when incomplete.
func (s *SelectionStore) Resolve(column int) (catalog.Params, bool) {
	if !s.IsComplete(column) {
		return nil, false
	}

	params := make(catalog.Params, len(s.cat.Dimensions))
	for _, d := range s.cat.Fixed() {
		params[d.Key] = d.Values[0].ID
	}

	cell := s.cells[column]
	for _, d := range s.enum.Dimensions() {
		params[d.Key] = d.Values[cell[d.Key]].ID
	}
	return params, true
}

// Selected returns a copy of the column's selected value indices by
// dimension key.
func (s *SelectionStore) Selected(column int) map[string]int {
	cell := s.cells[column]
	out := make(map[string]int, len(cell))
	for k, v := range cell {
		out[k] = v
	}
	return out
}

func (s *SelectionStore) varyingDimension(key string) (catalog.Dimension, bool) {
	for _, d := range s.enum.Dimensions() {
		if d.Key == key {
			return d, true
		}
	}
	return catalog.Dimension{}, false
}
