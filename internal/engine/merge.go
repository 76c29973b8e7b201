package engine

import (
	"fmt"
	"sort"
)

// Keyed is anything carrying a run-scoped temporary identifier.
// Discovery stages namespace these by prefix so two stages can never
// legitimately produce the same key.
type Keyed interface {
	Key() string
}

// Merge reconciles candidates contributed by multiple discovery stages
// with enrichment and ranking updates, all joined by key.
//
// Discovery batches are concatenated in stage order, then within-stage
// order; a repeated key keeps the first occurrence and drops the rest
// with a warning. Enrichment and ranking entries referencing unknown
// keys are dropped with a warning: later stages must not invent new
// identities. The result is ordered by descending score; candidates
// without a ranking entry follow in discovery order, unscored. The
// algorithm is deterministic and idempotent.
func Merge[C Keyed, E Keyed, R Keyed](
	batches [][]C,
	enrichments []E,
	rankings []R,
	enrich func(C, E) C,
	scoreOf func(R) float64,
	rank func(C, R) C,
) ([]C, []string) {
	var warnings []string

	index := make(map[string]int)
	var merged []C
	for _, batch := range batches {
		for _, candidate := range batch {
			key := candidate.Key()
			if _, duplicate := index[key]; duplicate {
				warnings = append(warnings, fmt.Sprintf("duplicate candidate %q dropped", key))
				continue
			}
			index[key] = len(merged)
			merged = append(merged, candidate)
		}
	}

	for _, entry := range enrichments {
		position, known := index[entry.Key()]
		if !known {
			warnings = append(warnings, fmt.Sprintf("enrichment for unknown candidate %q dropped", entry.Key()))
			continue
		}
		merged[position] = enrich(merged[position], entry)
	}

	type scoredCandidate struct {
		candidate C
		score     float64
		position  int
	}
	var scored []scoredCandidate
	ranked := make(map[string]bool, len(rankings))
	for _, entry := range rankings {
		position, known := index[entry.Key()]
		if !known {
			warnings = append(warnings, fmt.Sprintf("ranking for unknown candidate %q dropped", entry.Key()))
			continue
		}
		if ranked[entry.Key()] {
			warnings = append(warnings, fmt.Sprintf("duplicate ranking for candidate %q dropped", entry.Key()))
			continue
		}
		ranked[entry.Key()] = true
		scored = append(scored, scoredCandidate{
			candidate: rank(merged[position], entry),
			score:     scoreOf(entry),
			position:  position,
		})
	}

	// Descending score; ties resolve by discovery order so the output
	// is stable across re-runs.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].position < scored[j].position
	})

	result := make([]C, 0, len(merged))
	for _, entry := range scored {
		result = append(result, entry.candidate)
	}
	for _, candidate := range merged {
		if !ranked[candidate.Key()] {
			result = append(result, candidate)
		}
	}
	return result, warnings
}
