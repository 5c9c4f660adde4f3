// Package evaluation computes recall of ranked recommendation lists against
// clicked articles.
package evaluation

import (
	"fmt"

	"github.com/newsrec/recall-eval/internal/pkg/errors"
)

// DefaultStep is the distance between consecutive cutoffs.
const DefaultStep = 10

// DefaultTopK is the number of cutoffs evaluated by default.
const DefaultTopK = 5

// Cutoffs returns {step, 2*step, ..., topk*step}.
func Cutoffs(topk, step int) ([]int, error) {
	if topk < 1 {
		return nil, errors.ValidationError(fmt.Sprintf("topk must be at least 1, got %d", topk))
	}
	if step < 1 {
		return nil, errors.ValidationError(fmt.Sprintf("step must be at least 1, got %d", step))
	}

	ks := make([]int, topk)
	for i := range ks {
		ks[i] = (i + 1) * step
	}
	return ks, nil
}

// RecallAtK counts the distinct relevant items among the first k entries of
// recList and returns hit/|relevant|. ok is false when relevant is empty.
func RecallAtK(recList, relevant []string, k int) (hit int, recall float64, ok bool) {
	set := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		set[id] = struct{}{}
	}
	return recallAtK(recList, set, k)
}

func recallAtK(recList []string, relevant map[string]struct{}, k int) (int, float64, bool) {
	if len(relevant) == 0 {
		return 0, 0, false
	}

	k = min(max(k, 0), len(recList))

	hit := 0
	seen := make(map[string]struct{}, k)
	for _, id := range recList[:k] {
		if _, ok := relevant[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		hit++
	}

	return hit, float64(hit) / float64(len(relevant)), true
}
