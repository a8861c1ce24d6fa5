package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"vigil/internal/logging"
)

// SafetyPlanSections is the fixed size of the intervention checklist.
const SafetyPlanSections = 7

// ErrInvalidPermutation means reranking output contained fewer than the
// minimum usable section numbers. Callers fall back to the deterministic
// driver-keyed order.
var ErrInvalidPermutation = errors.New("rerank output is not a usable permutation")

// minUsableValues is the acceptance floor: below this the model clearly
// did not attempt the task and its partial order carries no signal.
const minUsableValues = 3

var intRe = regexp.MustCompile(`\d+`)

// ParseRerank extracts a full permutation of 1..7 from rerank output.
// Formatting artifacts are ignored; integers are taken in order of first
// appearance and deduplicated; out-of-range numbers are dropped. A partial
// but sufficient result (3-6 values) is repaired by appending the missing
// section numbers in ascending order, so every success is a complete
// permutation.
func ParseRerank(raw string) ([]int, error) {
	text := StripThinking(raw)

	seen := make(map[int]bool, SafetyPlanSections)
	var order []int
	for _, m := range intRe.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > SafetyPlanSections {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		order = append(order, n)
	}

	if len(order) < minUsableValues {
		logging.Get(logging.CategoryParser).Warnw("rerank output rejected",
			"valid_values", len(order), "preview", preview(raw))
		return nil, fmt.Errorf("%d valid values: %w", len(order), ErrInvalidPermutation)
	}

	for n := 1; n <= SafetyPlanSections; n++ {
		if !seen[n] {
			order = append(order, n)
		}
	}
	return order, nil
}
