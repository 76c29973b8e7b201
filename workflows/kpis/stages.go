package kpis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
)

type domainAnalysis struct {
	Domain        string   `json:"domain"`
	BusinessModel string   `json:"business_model"`
	ValueDrivers  []string `json:"value_drivers"`
	Stakeholders  []string `json:"stakeholders"`
}

func (a domainAnalysis) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", a.Domain)
	fmt.Fprintf(&b, "Business model: %s\n", a.BusinessModel)
	if len(a.ValueDrivers) > 0 {
		fmt.Fprintf(&b, "Value drivers: %s\n", strings.Join(a.ValueDrivers, "; "))
	}
	if len(a.Stakeholders) > 0 {
		fmt.Fprintf(&b, "Stakeholders: %s", strings.Join(a.Stakeholders, "; "))
	}
	return strings.TrimSpace(b.String())
}

func analysisFrom(state *engine.State) domainAnalysis {
	value, ok := state.Payload(PayloadDomainAnalysis)
	if !ok {
		return domainAnalysis{}
	}
	analysis, _ := value.(domainAnalysis)
	return analysis
}

type domainAnalyzer struct{ deps stageDeps }

func (s domainAnalyzer) Name() string { return "domain_analyzer" }

func (s domainAnalyzer) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	snap, snapErr := snapshotFrom(state)
	if snapErr != nil {
		return engine.Delta{}, snapErr
	}

	system := strings.TrimSpace(`
You analyze software repositories from a business perspective: the
domain the software serves, how it creates value, and who its
stakeholders are. Base every statement on the provided repository
content only.
`)
	user := fmt.Sprintf("Analyze the business domain of this repository:\n\n%s", snap.Describe())

	var analysis domainAnalysis
	if err := s.deps.complete(ctx, s.Name(), system, user, "domain_analysis", llm.SchemaFor[domainAnalysis](), &analysis); err != nil {
		return engine.Delta{}, err
	}

	return engine.Delta{
		Payloads: map[string]any{PayloadDomainAnalysis: analysis},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: analyzed business domain of %s", s.Name(), snap.FullName())}},
		Summary:  fmt.Sprintf("analyzed business domain of %s", snap.FullName()),
	}, nil
}

func (s domainAnalyzer) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadDomainAnalysis: domainAnalysis{}}, nil
}

type proposedKPI struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type kpiDiscoveryResult struct {
	KPIs []proposedKPI `json:"kpis"`
}

type kpiDiscoverer struct {
	deps          stageDeps
	maxCandidates int
}

func (s kpiDiscoverer) Name() string { return "kpi_discoverer" }

func (s kpiDiscoverer) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	snap, snapErr := snapshotFrom(state)
	if snapErr != nil {
		return engine.Delta{}, snapErr
	}

	system := strings.TrimSpace(`
You propose business KPIs for a software product. Each KPI must be
measurable from data this software could plausibly produce. Categories:
adoption, engagement, revenue, quality, efficiency.
`)
	user := fmt.Sprintf(`Domain analysis:
%s

User guidance: %s

Propose up to %d KPIs for this repository:

%s`, analysisFrom(state).describe(), orNone(guidanceFrom(state)), s.maxCandidates, snap.Describe())

	var result kpiDiscoveryResult
	if err := s.deps.complete(ctx, s.Name(), system, user, "kpi_candidates", llm.SchemaFor[kpiDiscoveryResult](), &result); err != nil {
		return engine.Delta{}, err
	}

	proposals := result.KPIs
	if s.maxCandidates > 0 && len(proposals) > s.maxCandidates {
		proposals = proposals[:s.maxCandidates]
	}
	candidates := make([]KPI, 0, len(proposals))
	for index, proposal := range proposals {
		candidates = append(candidates, KPI{
			TempID:      fmt.Sprintf("%s%d", kpiPrefix, index),
			Name:        proposal.Name,
			Category:    proposal.Category,
			Description: proposal.Description,
		})
	}

	return engine.Delta{
		Payloads: map[string]any{PayloadDiscovered: candidates},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: proposed %d KPIs", s.Name(), len(candidates))}},
		Summary:  fmt.Sprintf("discovered %d KPI candidates", len(candidates)),
	}, nil
}

func (s kpiDiscoverer) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadDiscovered: []KPI{}}, nil
}

type kpiEnrichmentResult struct {
	Enrichments []Enrichment `json:"enrichments"`
}

type kpiEnricher struct{ deps stageDeps }

func (s kpiEnricher) Name() string { return "kpi_enricher" }

func (s kpiEnricher) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	pending := kpisFrom(state)
	if len(pending) == 0 {
		return engine.Delta{
			Payloads: map[string]any{PayloadEnrichments: []Enrichment{}},
			Summary:  "no KPIs to enrich",
		}, nil
	}

	candidatesJSON, marshalErr := json.Marshal(pending)
	if marshalErr != nil {
		return engine.Delta{}, marshalErr
	}

	system := strings.TrimSpace(`
You enrich KPI candidates with a measurement formula, the data sources
needed, and a sensible initial target. Return one enrichment per
candidate, keyed by the candidate's temp_id. Never invent temp_ids.
`)
	user := fmt.Sprintf("Candidates (JSON):\n%s", string(candidatesJSON))

	var result kpiEnrichmentResult
	if err := s.deps.complete(ctx, s.Name(), system, user, "kpi_enrichments", llm.SchemaFor[kpiEnrichmentResult](), &result); err != nil {
		return engine.Delta{}, err
	}

	return engine.Delta{
		Payloads: map[string]any{PayloadEnrichments: result.Enrichments},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: enriched %d of %d KPIs", s.Name(), len(result.Enrichments), len(pending))}},
		Summary:  fmt.Sprintf("enriched %d KPIs", len(result.Enrichments)),
	}, nil
}

func (s kpiEnricher) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadEnrichments: []Enrichment{}}, nil
}

type kpiRankingResult struct {
	Rankings []Ranking `json:"rankings"`
}

type valueRanker struct{ deps stageDeps }

func (s valueRanker) Name() string { return "value_ranker" }

func (s valueRanker) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	pending := kpisFrom(state)
	if len(pending) == 0 {
		return engine.Delta{
			Payloads: map[string]any{PayloadRanked: []KPI{}},
			Summary:  "no KPIs to rank",
		}, nil
	}

	candidatesJSON, marshalErr := json.Marshal(pending)
	if marshalErr != nil {
		return engine.Delta{}, marshalErr
	}

	system := strings.TrimSpace(`
You rank KPI candidates by business value. Score each candidate 0-100
considering decision usefulness, measurability, and audience breadth.
Return one ranking per candidate, keyed by the candidate's temp_id.
Never invent temp_ids.
`)
	user := fmt.Sprintf("Candidates (JSON):\n%s", string(candidatesJSON))

	var result kpiRankingResult
	if err := s.deps.complete(ctx, s.Name(), system, user, "kpi_rankings", llm.SchemaFor[kpiRankingResult](), &result); err != nil {
		return engine.Delta{}, err
	}

	ranked, warnings := engine.Merge([][]KPI{kpisFrom(state)}, enrichmentsFrom(state), result.Rankings,
		applyEnrichment, rankingScore, applyRanking)

	return engine.Delta{
		Payloads: map[string]any{PayloadRanked: ranked},
		Warnings: warnings,
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: ranked %d KPIs", s.Name(), len(ranked))}},
		Summary:  fmt.Sprintf("ranked %d KPIs", len(ranked)),
	}, nil
}

// Fallback merges without rankings so a failed ranking stage still
// yields the enriched set in discovery order, keeping any merge
// warnings raised along the way.
func (s valueRanker) Fallback(state *engine.State) (map[string]any, []string) {
	merged, warnings := engine.Merge([][]KPI{kpisFrom(state)}, enrichmentsFrom(state), []Ranking(nil),
		applyEnrichment, rankingScore, applyRanking)
	return map[string]any{PayloadRanked: merged}, warnings
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
