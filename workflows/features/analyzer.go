package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
)

// codeAnalysis is the first stage's payload: a product-oriented reading
// of the repository that later stages build on.
type codeAnalysis struct {
	Summary          string   `json:"summary"`
	Architecture     string   `json:"architecture"`
	CoreCapabilities []string `json:"core_capabilities"`
	TargetUsers      string   `json:"target_users"`
}

func (a codeAnalysis) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	fmt.Fprintf(&b, "Architecture: %s\n", a.Architecture)
	if len(a.CoreCapabilities) > 0 {
		fmt.Fprintf(&b, "Core capabilities: %s\n", strings.Join(a.CoreCapabilities, "; "))
	}
	fmt.Fprintf(&b, "Target users: %s", a.TargetUsers)
	return strings.TrimSpace(b.String())
}

func analysisFrom(state *engine.State) codeAnalysis {
	value, ok := state.Payload(PayloadCodeAnalysis)
	if !ok {
		return codeAnalysis{}
	}
	analysis, _ := value.(codeAnalysis)
	return analysis
}

type codeAnalyzer struct{ deps stageDeps }

func (a codeAnalyzer) Name() string { return "code_analyzer" }

func (a codeAnalyzer) Run(ctx context.Context, state *engine.State) (engine.Delta, error) {
	snap, snapErr := snapshotFrom(state)
	if snapErr != nil {
		return engine.Delta{}, snapErr
	}

	system := strings.TrimSpace(`
You analyze software repositories from a product perspective.
Describe what the software does, how it is structured, and who uses it.
Base every statement on the provided repository content only.
`)
	user := fmt.Sprintf("Analyze this repository:\n\n%s", snap.Describe())

	var analysis codeAnalysis
	if err := a.deps.complete(ctx, a.Name(), system, user, "code_analysis", llm.SchemaFor[codeAnalysis](), &analysis); err != nil {
		return engine.Delta{}, err
	}

	return engine.Delta{
		Payloads: map[string]any{PayloadCodeAnalysis: analysis},
		Messages: []engine.Message{{Role: "agent", Text: fmt.Sprintf("%s: analyzed %s", a.Name(), snap.FullName())}},
		Summary:  fmt.Sprintf("analyzed %s", snap.FullName()),
	}, nil
}

func (a codeAnalyzer) Fallback(*engine.State) (map[string]any, []string) {
	return map[string]any{PayloadCodeAnalysis: codeAnalysis{}}, nil
}
