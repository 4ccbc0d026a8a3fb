// Package scoring turns raw instrument answers into clinical totals.
//
// All functions are pure and never fail: unanswered items and out-of-range
// indices contribute nothing.
package scoring

import (
	"fmt"

	"github.com/pavelanni/pathway/internal/model"
)

// reverseBase inverts a value on a 1..5 item scale (v -> 6-v).
const reverseBase = 6

// meanPlaceholder is reported when an instrument has no items.
const meanPlaceholder = "0.00"

// Total sums every answered entry.
func Total(scores model.ScoreVector) int {
	sum := 0
	for _, v := range scores {
		if v == model.Unanswered {
			continue
		}
		sum += v
	}
	return sum
}

// ClusterTotal sums the answered items whose template cluster label equals
// cluster.
func ClusterTotal(t *model.AssessmentTemplate, scores model.ScoreVector, cluster string) int {
	if t == nil {
		return 0
	}
	sum := 0
	for i, q := range t.Questions {
		if q.Cluster != cluster || i >= len(scores) {
			continue
		}
		if scores[i] == model.Unanswered {
			continue
		}
		sum += scores[i]
	}
	return sum
}

// ReverseAdjusted sums the items at the given 1-based indices, inverting
// reverse-scored items. Unanswered and out-of-range items are skipped.
func ReverseAdjusted(t *model.AssessmentTemplate, scores model.ScoreVector, oneBased []int) int {
	sum := 0
	for _, idx := range oneBased {
		sum += itemValue(t, scores, idx-1)
	}
	return sum
}

// GrandTotalWithReversal applies the reversal rule across the whole vector.
func GrandTotalWithReversal(t *model.AssessmentTemplate, scores model.ScoreVector) int {
	sum := 0
	for i := range scores {
		sum += itemValue(t, scores, i)
	}
	return sum
}

// MeanItemScore reports Total divided by the number of template items with
// two decimals.
func MeanItemScore(t *model.AssessmentTemplate, scores model.ScoreVector) string {
	if t == nil || len(t.Questions) == 0 {
		return meanPlaceholder
	}
	return fmt.Sprintf("%.2f", float64(Total(scores))/float64(len(t.Questions)))
}

func itemValue(t *model.AssessmentTemplate, scores model.ScoreVector, i int) int {
	if i < 0 || i >= len(scores) {
		return 0
	}
	v := scores[i]
	if v == model.Unanswered {
		return 0
	}
	if t.IsReversed(i) {
		return reverseBase - v
	}
	return v
}
