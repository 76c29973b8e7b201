package features

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
)

type rankingResult struct {
	Rankings []Ranking `json:"rankings"`
}

// priorityRanker scores the accumulated candidate set and produces the
// final ranked sequence. Ranking is advisory: if the model fails, the
// merged set is still emitted in discovery order through Fallback.
type priorityRanker struct{ deps stageDeps }

func (s priorityRanker) Name() string { return "priority_ranker" }

func (s priorityRanker) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	batches := candidateBatches(state)
	enrichments := enrichmentsFrom(state)

	var pending []Feature
	for _, batch := range batches {
		pending = append(pending, batch...)
	}
	if len(pending) == 0 {
		return engine.Delta{
			Payloads: map[string]any{PayloadRanked: []Feature{}},
			Summary:  "no candidates to rank",
		}, nil
	}

	candidatesJSON, marshalErr := json.Marshal(pending)
	if marshalErr != nil {
		return engine.Delta{}, marshalErr
	}

	system := strings.TrimSpace(`
You rank feature candidates by business priority. Score each candidate
0-100 considering user impact, differentiation, and effort. Return one
ranking per candidate, keyed by the candidate's temp_id. Never invent
temp_ids.
`)
	user := fmt.Sprintf("Candidates (JSON):\n%s", string(candidatesJSON))

	var result rankingResult
	if err := s.deps.complete(ctx, s.Name(), system, user, "feature_rankings", llm.SchemaFor[rankingResult](), &result); err != nil {
		return engine.Delta{}, err
	}

	ranked, warnings := engine.Merge(batches, enrichments, result.Rankings,
		applyEnrichment, rankingScore, applyRanking)

	return engine.Delta{
		Payloads: map[string]any{PayloadRanked: ranked},
		Warnings: warnings,
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: ranked %d candidates", s.Name(), len(ranked))}},
		Summary:  fmt.Sprintf("ranked %d candidates", len(ranked)),
	}, nil
}

// Fallback merges without rankings so a failed ranking stage still
// yields the enriched set in discovery order, keeping any merge
// warnings raised along the way.
func (s priorityRanker) Fallback(state *engine.State) (map[string]any, []string) {
	merged, warnings := engine.Merge(candidateBatches(state), enrichmentsFrom(state), []Ranking(nil),
		applyEnrichment, rankingScore, applyRanking)
	return map[string]any{PayloadRanked: merged}, warnings
}
