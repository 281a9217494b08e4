package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"

	"github.com/raggrid/rag-grid/internal/catalog"
)

// Local is an in-process collaborator for development and tests: it
// scores configurations against a fixed query set without a scoring
// service. Rankings are derived deterministically from the parameter
// set, so the same configuration always produces the same metrics and
// different configurations usually differ.
type Local struct {
	queries []localQuery
}

// localQuery is one synthetic query: its relevance labels in corpus
// order, before the configuration-dependent ranking is applied.
type localQuery struct {
	id         string
	relevances []int
}

// NewLocal creates a local collaborator over a small built-in query set.
func NewLocal() *Local {
	// Ten queries, twenty candidates each, graded 0..3. The label shape
	// varies per query so metrics spread out.
	queries := make([]localQuery, 10)
	for q := range queries {
		rel := make([]int, 20)
		for i := range rel {
			// Every query has 3-5 relevant items at fixed corpus slots.
			if (i+q)%7 == 0 || (i*3+q)%11 == 0 {
				rel[i] = 1 + (i+q)%3
			}
		}
		queries[q] = localQuery{id: "q" + strconv.Itoa(q), relevances: rel}
	}
	return &Local{queries: queries}
}

// Evaluate scores the configuration over every built-in query and
// returns the means.
func (l *Local) Evaluate(ctx context.Context, params catalog.Params, workers int) (Metrics, error) {
	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}

	k := 5
	if v, ok := params["k"]; ok {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			k = parsed
		}
	}

	seed := rankingSeed(params)

	var hit, recall, mrr, ap float64
	for i, q := range l.queries {
		ranked := rankFor(q, seed, i)
		hit += HitAtK(ranked, k, 1)
		recall += RecallAtK(ranked, k, 1)
		mrr += ReciprocalRank(ranked, 1)
		ap += AveragePrecision(ranked, 1)
	}

	n := float64(len(l.queries))
	return Metrics{
		Accuracy:       hit / n,
		Recall:         recall / n,
		MRR:            mrr / n,
		MAP:            ap / n,
		TotalQuestions: len(l.queries),
	}, nil
}

// rankingSeed folds the canonical parameter set into a seed so the
// simulated retriever ranks differently per configuration.
func rankingSeed(params catalog.Params) int64 {
	sum := sha256.Sum256([]byte(params.Canonical()))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// rankFor shuffles a query's labels with the configuration seed,
// simulating how a pipeline change reorders retrieval results.
func rankFor(q localQuery, seed int64, idx int) []int {
	rng := rand.New(rand.NewSource(seed + int64(idx)*0x9E3779B9))
	ranked := make([]int, len(q.relevances))
	copy(ranked, q.relevances)
	rng.Shuffle(len(ranked), func(i, j int) {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	})
	return ranked
}
