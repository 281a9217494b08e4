// Package catalog describes the parameter space of a retrieval pipeline:
// which dimensions exist, which values each can take, and whether a
// dimension is fixed or part of the combinatorial matrix.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raggrid/rag-grid/internal/pkg/errors"
)

// Mode says whether a dimension participates in the matrix.
type Mode string

const (
	// Fixed dimensions contribute a single value to every column.
	Fixed Mode = "fixed"

	// Varying dimensions span the combinatorial matrix.
	Varying Mode = "varying"
)

// Value is one candidate value of a dimension.
type Value struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Dimension is one axis of the parameter space.
type Dimension struct {
	Key    string  `json:"key" yaml:"key"`
	Label  string  `json:"label" yaml:"label"`
	Mode   Mode    `json:"mode" yaml:"mode"`
	Values []Value `json:"values" yaml:"values"`
}

// Catalog is an ordered list of dimensions.
type Catalog struct {
	Dimensions []Dimension `json:"dimensions" yaml:"dimensions"`
}

// Validate checks catalog invariants: unique keys, non-empty value lists,
// unique value IDs within each dimension, and a known mode.
func (c *Catalog) Validate() error {
	if len(c.Dimensions) == 0 {
		return errors.ValidationError("catalog has no dimensions")
	}

	seen := make(map[string]bool, len(c.Dimensions))
	for _, d := range c.Dimensions {
		if d.Key == "" {
			return errors.ValidationError("dimension key cannot be empty")
		}
		if seen[d.Key] {
			return errors.ValidationError(fmt.Sprintf("duplicate dimension key %q", d.Key))
		}
		seen[d.Key] = true

		if d.Mode != Fixed && d.Mode != Varying {
			return errors.ValidationError(fmt.Sprintf("dimension %q has unknown mode %q", d.Key, d.Mode))
		}
		if len(d.Values) == 0 {
			return errors.ValidationError(fmt.Sprintf("dimension %q has no values", d.Key))
		}

		ids := make(map[string]bool, len(d.Values))
		for _, v := range d.Values {
			if v.ID == "" {
				return errors.ValidationError(fmt.Sprintf("dimension %q has a value with empty id", d.Key))
			}
			if ids[v.ID] {
				return errors.ValidationError(fmt.Sprintf("dimension %q has duplicate value %q", d.Key, v.ID))
			}
			ids[v.ID] = true
		}
	}

	return nil
}

// Varying returns the varying dimensions in catalog order.
func (c *Catalog) Varying() []Dimension {
	var out []Dimension
	for _, d := range c.Dimensions {
		if d.Mode == Varying {
			out = append(out, d)
		}
	}
	return out
}

// Fixed returns the fixed dimensions in catalog order.
func (c *Catalog) Fixed() []Dimension {
	var out []Dimension
	for _, d := range c.Dimensions {
		if d.Mode == Fixed {
			out = append(out, d)
		}
	}
	return out
}

// Dimension looks up a dimension by key.
func (c *Catalog) Dimension(key string) (Dimension, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return Dimension{}, false
}

// Load reads a catalog from a YAML file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Params is a fully resolved parameter assignment: dimension key to value ID.
type Params map[string]string

// Canonical returns a deterministic serialization of the parameter set,
// independent of map iteration order. Used as the cache identity.
func (p Params) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p[k])
	}
	return sb.String()
}

// Clone returns a copy of the parameter set.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Default returns the built-in catalog for a RAG pipeline sweep. The value
// lists mirror the parameter groups the scoring backend exposes.
func Default() *Catalog {
	return &Catalog{
		Dimensions: []Dimension{
			{
				Key:   "dataset",
				Label: "Dataset",
				Mode:  Fixed,
				Values: []Value{
					{ID: "MultiHop-RAG", Label: "MultiHop-RAG"},
				},
			},
			{
				Key:   "rag_response_model",
				Label: "Response Models",
				Mode:  Fixed,
				Values: []Value{
					{ID: "openai/gpt-4o-mini", Label: "gpt-4o-mini"},
					{ID: "google/gemini-2.0-flash-001", Label: "gemini-2.0-flash-001"},
					{ID: "deepseek/deepseek-chat-v3-0324", Label: "deepseek-chat-v3-0324"},
				},
			},
			{
				Key:   "evaluate_model",
				Label: "Evaluate Models",
				Mode:  Fixed,
				Values: []Value{
					{ID: "openai/gpt-4o-mini", Label: "gpt-4o-mini"},
				},
			},
			{
				Key:   "embedding_model",
				Label: "Embedding Models",
				Mode:  Varying,
				Values: []Value{
					{ID: "BAAI/bge-m3", Label: "bge-m3"},
					{ID: "Qwen/Qwen3-Embedding-0.6B", Label: "Qwen3-Emb-0.6B"},
					{ID: "intfloat/multilingual-e5-large", Label: "multilingual-e5-large"},
				},
			},
			{
				Key:   "rerank_model",
				Label: "Rerank Models",
				Mode:  Varying,
				Values: []Value{
					{ID: "none", Label: "No Reranking"},
					{ID: "BAAI/bge-reranker-v2-m3", Label: "bge-reranker-v2-m3"},
				},
			},
			{
				Key:   "k",
				Label: "Top K",
				Mode:  Varying,
				Values: []Value{
					{ID: "3", Label: "3 chunks"},
					{ID: "5", Label: "5 chunks"},
					{ID: "10", Label: "10 chunks"},
				},
			},
			{
				Key:   "rerank_range",
				Label: "Rerank Range",
				Mode:  Fixed,
				Values: []Value{
					{ID: "20", Label: "20 chunks"},
				},
			},
			{
				Key:   "chunk_size",
				Label: "Chunk Size",
				Mode:  Varying,
				Values: []Value{
					{ID: "500", Label: "500 tokens"},
					{ID: "1000", Label: "1000 tokens"},
					{ID: "2000", Label: "2000 tokens"},
				},
			},
			{
				Key:   "chunk_overlap",
				Label: "Chunk Overlap",
				Mode:  Fixed,
				Values: []Value{
					{ID: "100", Label: "100 tokens"},
				},
			},
		},
	}
}
