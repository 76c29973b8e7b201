package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
)

// Discovery stages all return the same proposal shape; the stage tags
// each proposal with its own identifier prefix so merging never
// collides candidates from different stages.

type proposedFeature struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	Rationale string `json:"rationale"`
}

type discoveryResult struct {
	Features []proposedFeature `json:"features"`
}

func (d stageDeps) discover(ctx context.Context, agent string, system string, user string, prefix string, limit int) ([]Feature, error) {
	var result discoveryResult
	if err := d.complete(ctx, agent, system, user, "feature_candidates", llm.SchemaFor[discoveryResult](), &result); err != nil {
		return nil, err
	}
	proposals := result.Features
	if limit > 0 && len(proposals) > limit {
		proposals = proposals[:limit]
	}
	candidates := make([]Feature, 0, len(proposals))
	for index, proposal := range proposals {
		candidates = append(candidates, Feature{
			TempID:    fmt.Sprintf("%s%d", prefix, index),
			Title:     proposal.Title,
			Category:  proposal.Category,
			Rationale: proposal.Rationale,
		})
	}
	return candidates, nil
}

func knownTitles(state *engine.State) string {
	var titles []string
	for _, batch := range candidateBatches(state) {
		for _, candidate := range batch {
			titles = append(titles, "- "+candidate.Title)
		}
	}
	if len(titles) == 0 {
		return "(none yet)"
	}
	return strings.Join(titles, "\n")
}

type featureDiscoverer struct {
	deps          stageDeps
	maxCandidates int
}

func (s featureDiscoverer) Name() string { return "feature_discoverer" }

func (s featureDiscoverer) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	snap, snapErr := snapshotFrom(state)
	if snapErr != nil {
		return engine.Delta{}, snapErr
	}
	analysis := analysisFrom(state)

	system := strings.TrimSpace(`
You propose new product features for a software repository.
Each feature must be concrete, buildable, and grounded in what the
repository already does. Categories: core, integration, ux, automation,
analytics. No prose outside the requested fields.
`)
	user := fmt.Sprintf(`Repository analysis:
%s

User guidance: %s

Propose up to %d product features for this repository:

%s`, analysis.describe(), orNone(guidanceFrom(state)), s.maxCandidates, snap.Describe())

	candidates, err := s.deps.discover(ctx, s.Name(), system, user, discoveredPrefix, s.maxCandidates)
	if err != nil {
		return engine.Delta{}, err
	}
	return engine.Delta{
		Payloads: map[string]any{PayloadDiscovered: candidates},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: proposed %d features", s.Name(), len(candidates))}},
		Summary:  fmt.Sprintf("discovered %d feature candidates", len(candidates)),
	}, nil
}

func (s featureDiscoverer) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadDiscovered: []Feature{}}, nil
}

type gapAnalyst struct {
	deps          stageDeps
	maxCandidates int
}

func (s gapAnalyst) Name() string { return "gap_analyst" }

func (s gapAnalyst) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	snap, snapErr := snapshotFrom(state)
	if snapErr != nil {
		return engine.Delta{}, snapErr
	}
	analysis := analysisFrom(state)

	system := strings.TrimSpace(`
You find functional gaps: capabilities users of this kind of software
expect that the repository does not provide. Do not repeat features
already proposed. Categories: core, integration, ux, automation,
analytics.
`)
	user := fmt.Sprintf(`Repository analysis:
%s

Already proposed:
%s

Identify up to %d missing capabilities for this repository:

%s`, analysis.describe(), knownTitles(state), s.maxCandidates, snap.Describe())

	candidates, err := s.deps.discover(ctx, s.Name(), system, user, gapPrefix, s.maxCandidates)
	if err != nil {
		return engine.Delta{}, err
	}
	return engine.Delta{
		Payloads: map[string]any{PayloadGaps: candidates},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: found %d gaps", s.Name(), len(candidates))}},
		Summary:  fmt.Sprintf("found %d gap candidates", len(candidates)),
	}, nil
}

func (s gapAnalyst) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadGaps: []Feature{}}, nil
}

type techDebtAnalyst struct {
	deps          stageDeps
	maxCandidates int
}

func (s techDebtAnalyst) Name() string { return "tech_debt_analyst" }

func (s techDebtAnalyst) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	snap, snapErr := snapshotFrom(state)
	if snapErr != nil {
		return engine.Delta{}, snapErr
	}
	analysis := analysisFrom(state)

	system := strings.TrimSpace(`
You identify user-visible improvements motivated by technical debt:
reliability, performance, packaging, upgrade paths. Phrase each as a
product improvement, not a refactor. Do not repeat features already
proposed.
`)
	user := fmt.Sprintf(`Repository analysis:
%s

Already proposed:
%s

Identify up to %d debt-driven improvements for this repository:

%s`, analysis.describe(), knownTitles(state), s.maxCandidates, snap.Describe())

	candidates, err := s.deps.discover(ctx, s.Name(), system, user, techDebtPrefix, s.maxCandidates)
	if err != nil {
		return engine.Delta{}, err
	}
	return engine.Delta{
		Payloads: map[string]any{PayloadTechDebt: candidates},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: found %d improvements", s.Name(), len(candidates))}},
		Summary:  fmt.Sprintf("found %d debt-driven candidates", len(candidates)),
	}, nil
}

func (s techDebtAnalyst) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadTechDebt: []Feature{}}, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
