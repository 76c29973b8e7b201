// Package features implements the six-stage feature discovery
// workflow: code analysis, three discovery passes (product features,
// gaps, tech debt), enrichment, and priority ranking.
package features

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/temirov/repo-insights/internal/config"
	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
	"github.com/temirov/repo-insights/internal/snapshot"
)

// WorkflowName identifies this workflow in the registry.
const WorkflowName = "features"

// Payload field names. Each is owned by exactly one stage and read-only
// to all later stages.
const (
	PayloadSnapshot     = "snapshot"
	PayloadGuidance     = "user_guidance"
	PayloadCodeAnalysis = "code_analysis"
	PayloadDiscovered   = "discovered_features"
	PayloadGaps         = "gap_features"
	PayloadTechDebt     = "debt_features"
	PayloadEnrichments  = "feature_enrichments"
	PayloadRanked       = "ranked_features"
)

// Candidate identifier prefixes, one per discovery stage, so merged
// candidates can never collide across stages.
const (
	discoveredPrefix = "disc_"
	gapPrefix        = "gap_"
	techDebtPrefix   = "debt_"
)

// Feature is one discovered feature candidate. Discovery fields are
// always present; enrichment and ranking fields are filled by later
// stages through the temp_id join.
type Feature struct {
	TempID        string   `json:"temp_id"`
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Rationale     string   `json:"rationale"`
	Problem       string   `json:"problem,omitempty"`
	UserValue     string   `json:"user_value,omitempty"`
	Complexity    string   `json:"complexity,omitempty"`
	PriorityScore *float64 `json:"priority_score,omitempty"`
	Justification string   `json:"justification,omitempty"`
}

func (f Feature) Key() string { return f.TempID }

// Enrichment adds detail fields to an existing candidate.
type Enrichment struct {
	TempID     string `json:"temp_id"`
	Problem    string `json:"problem"`
	UserValue  string `json:"user_value"`
	Complexity string `json:"complexity"`
}

func (e Enrichment) Key() string { return e.TempID }

// Ranking scores an existing candidate.
type Ranking struct {
	TempID        string  `json:"temp_id"`
	PriorityScore float64 `json:"priority_score"`
	Justification string  `json:"justification"`
}

func (r Ranking) Key() string { return r.TempID }

// Config holds the workflow's resolved settings.
type Config struct {
	Model         config.Model
	MaxCandidates int
}

// NewDefinition builds the feature discovery workflow over the given
// completion client.
func NewDefinition(completer llm.Completer, cfg Config) engine.Definition {
	deps := stageDeps{completer: completer, model: cfg.Model}
	return engine.Definition{
		Name: WorkflowName,
		Stages: []engine.Stage{
			codeAnalyzer{deps: deps},
			featureDiscoverer{deps: deps, maxCandidates: cfg.MaxCandidates},
			gapAnalyst{deps: deps, maxCandidates: cfg.MaxCandidates},
			techDebtAnalyst{deps: deps, maxCandidates: cfg.MaxCandidates},
			featureEnricher{deps: deps},
			priorityRanker{deps: deps},
		},
	}
}

// InitialState seeds a run from a repository snapshot plus optional
// free-text guidance. An unusable snapshot is the one fatal condition
// of a run; it is surfaced here, before any stage executes.
func InitialState(snap snapshot.Snapshot, guidance string) (*engine.State, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("build initial state: %w", err)
	}
	return engine.NewState(map[string]any{
		PayloadSnapshot: snap,
		PayloadGuidance: guidance,
	}), nil
}

// ResultFrom extracts the ranked candidate sequence from a final state.
func ResultFrom(state *engine.State) ([]Feature, bool) {
	value, ok := state.Payload(PayloadRanked)
	if !ok {
		return nil, false
	}
	ranked, ok := value.([]Feature)
	return ranked, ok
}

// stageDeps bundles what every stage needs to issue completion calls.
type stageDeps struct {
	completer llm.Completer
	model     config.Model
}

func (d stageDeps) complete(ctx context.Context, agent string, system string, user string, schemaName string, schema json.RawMessage, out any) error {
	return d.completer.Complete(ctx, llm.CompletionRequest{
		Agent:        agent,
		Model:        d.model.ModelID,
		SystemPrompt: system,
		UserMessage:  user,
		SchemaName:   schemaName,
		Schema:       schema,
		MaxTokens:    d.model.MaxCompletionTokens,
		Temperature:  modelTemperature(d.model),
	}, out)
}

func modelTemperature(model config.Model) float64 {
	if model.SupportsTemperature {
		return model.DefaultTemperature
	}
	return 0
}

func snapshotFrom(state *engine.State) (snapshot.Snapshot, error) {
	value, ok := state.Payload(PayloadSnapshot)
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("state has no %s payload", PayloadSnapshot)
	}
	snap, ok := value.(snapshot.Snapshot)
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("%s payload has unexpected type %T", PayloadSnapshot, value)
	}
	return snap, nil
}

func guidanceFrom(state *engine.State) string {
	value, ok := state.Payload(PayloadGuidance)
	if !ok {
		return ""
	}
	guidance, _ := value.(string)
	return guidance
}

func featuresAt(state *engine.State, key string) []Feature {
	value, ok := state.Payload(key)
	if !ok {
		return nil
	}
	candidates, _ := value.([]Feature)
	return candidates
}

// candidateBatches returns the discovery-stage outputs in stage order.
func candidateBatches(state *engine.State) [][]Feature {
	return [][]Feature{
		featuresAt(state, PayloadDiscovered),
		featuresAt(state, PayloadGaps),
		featuresAt(state, PayloadTechDebt),
	}
}

func enrichmentsFrom(state *engine.State) []Enrichment {
	value, ok := state.Payload(PayloadEnrichments)
	if !ok {
		return nil
	}
	enrichments, _ := value.([]Enrichment)
	return enrichments
}

func applyEnrichment(candidate Feature, enrichment Enrichment) Feature {
	candidate.Problem = enrichment.Problem
	candidate.UserValue = enrichment.UserValue
	candidate.Complexity = enrichment.Complexity
	return candidate
}

func applyRanking(candidate Feature, ranking Ranking) Feature {
	score := ranking.PriorityScore
	candidate.PriorityScore = &score
	candidate.Justification = ranking.Justification
	return candidate
}

func rankingScore(ranking Ranking) float64 { return ranking.PriorityScore }
