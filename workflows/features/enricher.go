package features

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
)

type enrichmentResult struct {
	Enrichments []Enrichment `json:"enrichments"`
}

// featureEnricher batches every pending candidate into a single call
// and returns detail fields keyed by temp_id. Enrichment is
// best-effort: candidates the model skips keep their discovery fields.
type featureEnricher struct{ deps stageDeps }

func (s featureEnricher) Name() string { return "feature_enricher" }

func (s featureEnricher) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	var pending []Feature
	for _, batch := range candidateBatches(state) {
		pending = append(pending, batch...)
	}
	if len(pending) == 0 {
		return engine.Delta{
			Payloads: map[string]any{PayloadEnrichments: []Enrichment{}},
			Summary:  "no candidates to enrich",
		}, nil
	}

	candidatesJSON, marshalErr := json.Marshal(pending)
	if marshalErr != nil {
		return engine.Delta{}, marshalErr
	}

	system := strings.TrimSpace(`
You enrich feature candidates with the problem each one solves, the
value it delivers to users, and an implementation complexity estimate
(low, medium, high). Return one enrichment per candidate, keyed by the
candidate's temp_id. Never invent temp_ids.
`)
	user := fmt.Sprintf("Candidates (JSON):\n%s", string(candidatesJSON))

	var result enrichmentResult
	if err := s.deps.complete(ctx, s.Name(), system, user, "feature_enrichments", llm.SchemaFor[enrichmentResult](), &result); err != nil {
		return engine.Delta{}, err
	}

	return engine.Delta{
		Payloads: map[string]any{PayloadEnrichments: result.Enrichments},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: enriched %d of %d candidates", s.Name(), len(result.Enrichments), len(pending))}},
		Summary:  fmt.Sprintf("enriched %d candidates", len(result.Enrichments)),
	}, nil
}

func (s featureEnricher) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadEnrichments: []Enrichment{}}, nil
}
