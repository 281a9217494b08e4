package scoring

// Rank-based retrieval metrics over a single query's ranked relevance
// labels. A label at position i is the relevance of the i-th retrieved
// item; threshold is the minimum label counted as relevant.

// HitAtK reports whether any of the top k items is relevant.
func HitAtK(relevances []int, k, threshold int) float64 {
	if k > len(relevances) {
		k = len(relevances)
	}
	for i := 0; i < k; i++ {
		if relevances[i] >= threshold {
			return 1
		}
	}
	return 0
}

// RecallAtK is the fraction of all relevant items found in the top k.
func RecallAtK(relevances []int, k, threshold int) float64 {
	if k > len(relevances) {
		k = len(relevances)
	}

	totalRelevant := 0
	for _, r := range relevances {
		if r >= threshold {
			totalRelevant++
		}
	}
	if totalRelevant == 0 {
		return 0
	}

	relevantInK := 0
	for i := 0; i < k; i++ {
		if relevances[i] >= threshold {
			relevantInK++
		}
	}
	return float64(relevantInK) / float64(totalRelevant)
}

// ReciprocalRank is 1/rank of the first relevant item, 0 when none is.
func ReciprocalRank(relevances []int, threshold int) float64 {
	for i, r := range relevances {
		if r >= threshold {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// AveragePrecision is the mean of precision values at each relevant rank.
func AveragePrecision(relevances []int, threshold int) float64 {
	relevant := 0
	sumPrecision := 0.0

	for i, r := range relevances {
		if r >= threshold {
			relevant++
			sumPrecision += float64(relevant) / float64(i+1)
		}
	}

	if relevant == 0 {
		return 0
	}
	return sumPrecision / float64(relevant)
}
