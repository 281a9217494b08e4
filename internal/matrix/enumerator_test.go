package matrix

import (
	"testing"

	"github.com/raggrid/rag-grid/internal/catalog"
)

func varyingDims(cardinalities ...int) []catalog.Dimension {
	letters := []string{"dimA", "dimB", "dimC", "dimD"}
	dims := make([]catalog.Dimension, len(cardinalities))
	for i, m := range cardinalities {
		values := make([]catalog.Value, m)
		for j := range values {
			values[j] = catalog.Value{ID: string(rune('a' + j)), Label: string(rune('a' + j))}
		}
		dims[i] = catalog.Dimension{Key: letters[i], Mode: catalog.Varying, Values: values}
	}
	return dims
}

func TestEnumeratorCount(t *testing.T) {
	tests := []struct {
		name          string
		cardinalities []int
		want          int
	}{
		{"2x3", []int{2, 3}, 6},
		{"single dimension", []int{4}, 4},
		{"three dimensions", []int{2, 3, 4}, 24},
		{"no varying dimensions", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnumerator(varyingDims(tt.cardinalities...))
			if got := e.Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := NewEnumerator(varyingDims(2, 3, 4))

	for c := 0; c < e.Count(); c++ {
		idx, err := e.Decode(c)
		if err != nil {
			t.Fatalf("Decode(%d) error = %v", c, err)
		}
		back, err := e.Encode(idx)
		if err != nil {
			t.Fatalf("Encode(%v) error = %v", idx, err)
		}
		if back != c {
			t.Errorf("Encode(Decode(%d)) = %d", c, back)
		}
	}
}

func TestDecodeSpansProduct(t *testing.T) {
	// 2 varying dimensions with values [x,y] and [p,q,r] give N=6 and
	// the decoded combinations cover the product exactly once.
	e := NewEnumerator(varyingDims(2, 3))
	if e.Count() != 6 {
		t.Fatalf("Count() = %d, want 6", e.Count())
	}

	seen := make(map[[2]int]bool)
	for c := 0; c < 6; c++ {
		idx, err := e.Decode(c)
		if err != nil {
			t.Fatalf("Decode(%d) error = %v", c, err)
		}
		key := [2]int{idx[0], idx[1]}
		if seen[key] {
			t.Errorf("Decode collision at combination %v", key)
		}
		seen[key] = true
	}
	if len(seen) != 6 {
		t.Errorf("decoded %d distinct combinations, want 6", len(seen))
	}

	// First dimension varies fastest.
	first, _ := e.Decode(0)
	second, _ := e.Decode(1)
	if first[0] == second[0] {
		t.Errorf("Decode(0)=%v Decode(1)=%v: first dimension should vary fastest", first, second)
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	e := NewEnumerator(varyingDims(2, 3))

	for _, c := range []int{-1, 6, 100} {
		if _, err := e.Decode(c); err == nil {
			t.Errorf("Decode(%d) succeeded, want error", c)
		}
	}
}

func TestEncodeValidation(t *testing.T) {
	e := NewEnumerator(varyingDims(2, 3))

	if _, err := e.Encode([]int{1}); err == nil {
		t.Error("Encode with wrong arity succeeded, want error")
	}
	if _, err := e.Encode([]int{2, 0}); err == nil {
		t.Error("Encode with out-of-range index succeeded, want error")
	}
	if _, err := e.Encode([]int{0, -1}); err == nil {
		t.Error("Encode with negative index succeeded, want error")
	}
}

func TestZeroVaryingDimensions(t *testing.T) {
	e := NewEnumerator(nil)

	if e.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", e.Count())
	}
	idx, err := e.Decode(0)
	if err != nil {
		t.Fatalf("Decode(0) error = %v", err)
	}
	if len(idx) != 0 {
		t.Errorf("Decode(0) = %v, want empty", idx)
	}
	c, err := e.Encode(nil)
	if err != nil || c != 0 {
		t.Errorf("Encode(nil) = %d, %v; want 0, nil", c, err)
	}
}
