// Package kpis implements the four-stage KPI discovery workflow:
// domain analysis, KPI discovery, enrichment, and value ranking.
package kpis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/temirov/repo-insights/internal/config"
	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
	"github.com/temirov/repo-insights/internal/snapshot"
)

const WorkflowName = "kpis"

// Payload field names, one owner stage each.
const (
	PayloadSnapshot       = "snapshot"
	PayloadGuidance       = "user_guidance"
	PayloadDomainAnalysis = "domain_analysis"
	PayloadDiscovered     = "discovered_kpis"
	PayloadEnrichments    = "kpi_enrichments"
	PayloadRanked         = "ranked_kpis"
)

const kpiPrefix = "kpi_"

// KPI is one discovered business metric candidate.
type KPI struct {
	TempID      string   `json:"temp_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Formula     string   `json:"formula,omitempty"`
	DataSources []string `json:"data_sources,omitempty"`
	Target      string   `json:"target,omitempty"`
	ValueScore  *float64 `json:"value_score,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
}

func (k KPI) Key() string { return k.TempID }

type Enrichment struct {
	TempID      string   `json:"temp_id"`
	Formula     string   `json:"formula"`
	DataSources []string `json:"data_sources"`
	Target      string   `json:"target"`
}

func (e Enrichment) Key() string { return e.TempID }

type Ranking struct {
	TempID     string  `json:"temp_id"`
	ValueScore float64 `json:"value_score"`
	Rationale  string  `json:"rationale"`
}

func (r Ranking) Key() string { return r.TempID }

type Config struct {
	Model         config.Model
	MaxCandidates int
}

// NewDefinition builds the KPI discovery workflow.
func NewDefinition(completer llm.Completer, cfg Config) engine.Definition {
	deps := stageDeps{completer: completer, model: cfg.Model}
	return engine.Definition{
		Name: WorkflowName,
		Stages: []engine.Stage{
			domainAnalyzer{deps: deps},
			kpiDiscoverer{deps: deps, maxCandidates: cfg.MaxCandidates},
			kpiEnricher{deps: deps},
			valueRanker{deps: deps},
		},
	}
}

// InitialState seeds a run; an unusable snapshot fails here, before any
// stage executes.
func InitialState(snap snapshot.Snapshot, guidance string) (*engine.State, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("build initial state: %w", err)
	}
	return engine.NewState(map[string]any{
		PayloadSnapshot: snap,
		PayloadGuidance: guidance,
	}), nil
}

// ResultFrom extracts the ranked KPI sequence from a final state.
func ResultFrom(state *engine.State) ([]KPI, bool) {
	value, ok := state.Payload(PayloadRanked)
	if !ok {
		return nil, false
	}
	ranked, ok := value.([]KPI)
	return ranked, ok
}

type stageDeps struct {
	completer llm.Completer
	model     config.Model
}

func (d stageDeps) complete(ctx context.Context, agent string, system string, user string, schemaName string, schema json.RawMessage, out any) error {
	temperature := 0.0
	if d.model.SupportsTemperature {
		temperature = d.model.DefaultTemperature
	}
	return d.completer.Complete(ctx, llm.CompletionRequest{
		Agent:        agent,
		Model:        d.model.ModelID,
		SystemPrompt: system,
		UserMessage:  user,
		SchemaName:   schemaName,
		Schema:       schema,
		MaxTokens:    d.model.MaxCompletionTokens,
		Temperature:  temperature,
	}, out)
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

func kpisFrom(state *engine.State) []KPI {
	value, ok := state.Payload(PayloadDiscovered)
	if !ok {
		return nil
	}
	candidates, _ := value.([]KPI)
	return candidates
}

func enrichmentsFrom(state *engine.State) []Enrichment {
	value, ok := state.Payload(PayloadEnrichments)
	if !ok {
		return nil
	}
	enrichments, _ := value.([]Enrichment)
	return enrichments
}

func applyEnrichment(candidate KPI, enrichment Enrichment) KPI {
	candidate.Formula = enrichment.Formula
	candidate.DataSources = enrichment.DataSources
	candidate.Target = enrichment.Target
	return candidate
}

func applyRanking(candidate KPI, ranking Ranking) KPI {
	score := ranking.ValueScore
	candidate.ValueScore = &score
	candidate.Rationale = ranking.Rationale
	return candidate
}

func rankingScore(ranking Ranking) float64 { return ranking.ValueScore }
