package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func testCatalog() *Catalog {
	return &Catalog{
		Dimensions: []Dimension{
			{
				Key:    "dataset",
				Label:  "Dataset",
				Mode:   Fixed,
				Values: []Value{{ID: "hotpot", Label: "HotpotQA"}},
			},
			{
				Key:    "dimA",
				Label:  "Dimension A",
				Mode:   Varying,
				Values: []Value{{ID: "x", Label: "X"}, {ID: "y", Label: "Y"}},
			},
			{
				Key:    "dimB",
				Label:  "Dimension B",
				Mode:   Varying,
				Values: []Value{{ID: "p", Label: "P"}, {ID: "q", Label: "Q"}, {ID: "r", Label: "R"}},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Catalog)
		wantErr bool
	}{
		{"valid", func(c *Catalog) {}, false},
		{"empty catalog", func(c *Catalog) { c.Dimensions = nil }, true},
		{"empty key", func(c *Catalog) { c.Dimensions[0].Key = "" }, true},
		{"duplicate key", func(c *Catalog) { c.Dimensions[1].Key = "dataset" }, true},
		{"unknown mode", func(c *Catalog) { c.Dimensions[0].Mode = "sometimes" }, true},
		{"no values", func(c *Catalog) { c.Dimensions[2].Values = nil }, true},
		{"empty value id", func(c *Catalog) { c.Dimensions[1].Values[0].ID = "" }, true},
		{"duplicate value id", func(c *Catalog) { c.Dimensions[1].Values[1].ID = "x" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCatalog()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVaryingFixed(t *testing.T) {
	c := testCatalog()

	varying := c.Varying()
	if len(varying) != 2 {
		t.Fatalf("Varying() returned %d dimensions, want 2", len(varying))
	}
	if varying[0].Key != "dimA" || varying[1].Key != "dimB" {
		t.Errorf("Varying() order = %s, %s; want dimA, dimB", varying[0].Key, varying[1].Key)
	}

	fixed := c.Fixed()
	if len(fixed) != 1 || fixed[0].Key != "dataset" {
		t.Errorf("Fixed() = %v, want [dataset]", fixed)
	}
}

func TestDimensionLookup(t *testing.T) {
	c := testCatalog()

	if d, ok := c.Dimension("dimB"); !ok || d.Label != "Dimension B" {
		t.Errorf("Dimension(dimB) = %v, %v", d, ok)
	}
	if _, ok := c.Dimension("missing"); ok {
		t.Error("Dimension(missing) found, want not found")
	}
}

func TestParamsCanonical(t *testing.T) {
	p := Params{"chunk_size": "500", "embedding_model": "bge-m3", "k": "5"}
	want := "chunk_size=500&embedding_model=bge-m3&k=5"
	if got := p.Canonical(); got != want {
		t.Errorf("Canonical() = %q, want %q", got, want)
	}

	// Same contents always serialize identically.
	q := Params{"k": "5", "chunk_size": "500", "embedding_model": "bge-m3"}
	if p.Canonical() != q.Canonical() {
		t.Error("Canonical() differs for equal parameter sets")
	}

	// Different contents never collide on this form.
	r := Params{"chunk_size": "500", "embedding_model": "bge-m3", "k": "3"}
	if p.Canonical() == r.Canonical() {
		t.Error("Canonical() collision for distinct parameter sets")
	}
}

func TestParamsClone(t *testing.T) {
	p := Params{"k": "5"}
	c := p.Clone()
	c["k"] = "10"
	if p["k"] != "5" {
		t.Error("Clone() did not copy the map")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	yaml := `dimensions:
  - key: dataset
    label: Dataset
    mode: fixed
    values:
      - id: hotpot
        label: HotpotQA
  - key: chunk_size
    label: Chunk Size
    mode: varying
    values:
      - id: "500"
        label: 500 tokens
      - id: "1000"
        label: 1000 tokens
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Dimensions) != 2 {
		t.Fatalf("loaded %d dimensions, want 2", len(c.Dimensions))
	}
	if got := c.Varying(); len(got) != 1 || got[0].Key != "chunk_size" {
		t.Errorf("Varying() = %v, want [chunk_size]", got)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded, want error")
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default() catalog invalid: %v", err)
	}
	if len(c.Varying()) == 0 {
		t.Error("Default() catalog has no varying dimensions")
	}
}
