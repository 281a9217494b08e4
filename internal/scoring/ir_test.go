package scoring

import (
	"context"
	"math"
	"testing"

	"github.com/raggrid/rag-grid/internal/catalog"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestHitAtK(t *testing.T) {
	tests := []struct {
		name       string
		relevances []int
		k          int
		want       float64
	}{
		{"hit at first", []int{2, 0, 0}, 1, 1},
		{"hit beyond k", []int{0, 0, 2}, 2, 0},
		{"hit within k", []int{0, 0, 2}, 3, 1},
		{"no relevant", []int{0, 0, 0}, 3, 0},
		{"k exceeds length", []int{0, 1}, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HitAtK(tt.relevances, tt.k, 1); got != tt.want {
				t.Errorf("HitAtK(%v, %d) = %v, want %v", tt.relevances, tt.k, got, tt.want)
			}
		})
	}
}

func TestRecallAtK(t *testing.T) {
	// 3 relevant items total; 2 within the top 3.
	relevances := []int{1, 0, 2, 0, 1}
	if got := RecallAtK(relevances, 3, 1); !almostEqual(got, 2.0/3.0) {
		t.Errorf("RecallAtK = %v, want 2/3", got)
	}
	if got := RecallAtK(relevances, 5, 1); !almostEqual(got, 1) {
		t.Errorf("RecallAtK full = %v, want 1", got)
	}
	if got := RecallAtK([]int{0, 0}, 2, 1); got != 0 {
		t.Errorf("RecallAtK no relevant = %v, want 0", got)
	}
}

func TestReciprocalRank(t *testing.T) {
	if got := ReciprocalRank([]int{0, 0, 1}, 1); !almostEqual(got, 1.0/3.0) {
		t.Errorf("ReciprocalRank = %v, want 1/3", got)
	}
	if got := ReciprocalRank([]int{2}, 1); got != 1 {
		t.Errorf("ReciprocalRank first = %v, want 1", got)
	}
	if got := ReciprocalRank([]int{0, 0}, 1); got != 0 {
		t.Errorf("ReciprocalRank none = %v, want 0", got)
	}
}

func TestAveragePrecision(t *testing.T) {
	// Relevant at ranks 1 and 3: AP = (1/1 + 2/3) / 2 = 5/6.
	if got := AveragePrecision([]int{1, 0, 1}, 1); !almostEqual(got, 5.0/6.0) {
		t.Errorf("AveragePrecision = %v, want 5/6", got)
	}
	if got := AveragePrecision([]int{0, 0, 0}, 1); got != 0 {
		t.Errorf("AveragePrecision none = %v, want 0", got)
	}
}

func TestLocalCollaboratorDeterministic(t *testing.T) {
	local := NewLocal()
	ctx := context.Background()

	params := catalog.Params{"embedding_model": "small", "k": "5"}

	first, err := local.Evaluate(ctx, params, 1)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	second, err := local.Evaluate(ctx, params.Clone(), 1)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}

	if first != second {
		t.Errorf("same params gave different metrics: %+v vs %+v", first, second)
	}
	if first.TotalQuestions != 10 {
		t.Errorf("TotalQuestions = %d, want 10", first.TotalQuestions)
	}
	for name := range map[string]float64{
		MetricAccuracy: first.Accuracy,
		MetricRecall:   first.Recall,
		MetricMRR:      first.MRR,
		MetricMAP:      first.MAP,
	} {
		v, _ := first.Value(name)
		if v < 0 || v > 1 {
			t.Errorf("%s = %v, want within [0,1]", name, v)
		}
	}
}

func TestLocalCollaboratorVariesWithParams(t *testing.T) {
	local := NewLocal()
	ctx := context.Background()

	a, err := local.Evaluate(ctx, catalog.Params{"embedding_model": "small", "k": "5"}, 1)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}
	b, err := local.Evaluate(ctx, catalog.Params{"embedding_model": "large", "k": "5"}, 1)
	if err != nil {
		t.Fatalf("Evaluate() = %v", err)
	}

	if a == b {
		t.Error("different configurations produced identical metrics")
	}
}
