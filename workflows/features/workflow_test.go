package features_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/temirov/repo-insights/internal/config"
	"github.com/temirov/repo-insights/internal/engine"
	"github.com/temirov/repo-insights/internal/llm"
	"github.com/temirov/repo-insights/internal/snapshot"
	"github.com/temirov/repo-insights/workflows/features"
)

type fakeCompleter struct {
	responses map[string]any
	errs      map[string]error
	calls     []string
}

func (f *fakeCompleter) Complete(ctx context.Context, request llm.CompletionRequest, out any) error {
	f.calls = append(f.calls, request.Agent)
	if err := f.errs[request.Agent]; err != nil {
		return err
	}
	value, ok := f.responses[request.Agent]
	if !ok {
		return fmt.Errorf("unexpected agent %q", request.Agent)
	}
	encoded, marshalErr := json.Marshal(value)
	if marshalErr != nil {
		return marshalErr
	}
	return json.Unmarshal(encoded, out)
}

func testSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Owner:    "acme",
		Name:     "demo",
		FileTree: []string{"main.go", "go.mod"},
		Readme:   "A demo CLI.",
	}
}

func testConfig() features.Config {
	return features.Config{
		Model:         config.Model{Name: "default", ModelID: "gpt-4o-mini"},
		MaxCandidates: 10,
	}
}

func happyResponses() map[string]any {
	return map[string]any{
		"code_analyzer": map[string]any{
			"summary":           "a demo CLI",
			"architecture":      "single binary",
			"core_capabilities": []string{"demoing"},
			"target_users":      "developers",
		},
		"feature_discoverer": map[string]any{
			"features": []map[string]any{
				{"title": "Search", "category": "core", "rationale": "r1"},
				{"title": "Filters", "category": "ux", "rationale": "r2"},
			},
		},
		"gap_analyst": map[string]any{
			"features": []map[string]any{
				{"title": "Exports", "category": "integration", "rationale": "r3"},
			},
		},
		"tech_debt_analyst": map[string]any{
			"features": []map[string]any{
				{"title": "Faster startup", "category": "core", "rationale": "r4"},
			},
		},
		"feature_enricher": map[string]any{
			"enrichments": []map[string]any{
				{"temp_id": "disc_0", "problem": "P", "user_value": "V", "complexity": "low"},
			},
		},
		"priority_ranker": map[string]any{
			"rankings": []map[string]any{
				{"temp_id": "gap_0", "priority_score": 90, "justification": "j1"},
				{"temp_id": "disc_0", "priority_score": 50, "justification": "j2"},
			},
		},
	}
}

func runWorkflow(t *testing.T, completer llm.Completer) *engine.State {
	t.Helper()
	initial, err := features.InitialState(testSnapshot(), "focus on search")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	definition := features.NewDefinition(completer, testConfig())
	events, err := engine.Engine{}.Execute(context.Background(), definition, initial)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var final *engine.State
	for event := range events {
		if event.Type == engine.EventComplete {
			final = event.State
		}
	}
	if final == nil {
		t.Fatalf("no complete event")
	}
	return final
}

func TestWorkflow_FullRun(t *testing.T) {
	completer := &fakeCompleter{responses: happyResponses()}
	final := runWorkflow(t, completer)

	wantAgents := []string{
		"code_analyzer", "feature_discoverer", "gap_analyst",
		"tech_debt_analyst", "feature_enricher", "priority_ranker",
	}
	if len(final.AgentHistory) != len(wantAgents) {
		t.Fatalf("agent history = %v", final.AgentHistory)
	}
	for index, agent := range wantAgents {
		if final.AgentHistory[index] != agent {
			t.Fatalf("agent history = %v, want %v", final.AgentHistory, wantAgents)
		}
	}
	if len(final.Warnings) != 0 {
		t.Fatalf("warnings = %v", final.Warnings)
	}

	ranked, ok := features.ResultFrom(final)
	if !ok {
		t.Fatalf("no ranked result on final state")
	}
	if len(ranked) != 4 {
		t.Fatalf("ranked = %d candidates", len(ranked))
	}
	if ranked[0].TempID != "gap_0" || ranked[1].TempID != "disc_0" {
		t.Fatalf("ranked order = %s, %s", ranked[0].TempID, ranked[1].TempID)
	}
	if ranked[1].Problem != "P" {
		t.Fatalf("enrichment not applied: %+v", ranked[1])
	}
	if ranked[0].PriorityScore == nil || *ranked[0].PriorityScore != 90 {
		t.Fatalf("top score = %v", ranked[0].PriorityScore)
	}
	// Unranked candidates keep discovery order, unscored.
	if ranked[2].TempID != "disc_1" || ranked[3].TempID != "debt_0" {
		t.Fatalf("unranked tail = %s, %s", ranked[2].TempID, ranked[3].TempID)
	}
	if ranked[2].PriorityScore != nil {
		t.Fatalf("unranked candidate carries a score")
	}
}

func TestWorkflow_DiscoveryStageFailureIsIsolated(t *testing.T) {
	completer := &fakeCompleter{
		responses: happyResponses(),
		errs: map[string]error{
			"gap_analyst": llm.NewParseError(errors.New("schema mismatch")),
		},
	}
	final := runWorkflow(t, completer)

	if len(final.AgentHistory) != 6 {
		t.Fatalf("agent history = %v", final.AgentHistory)
	}
	var warned bool
	for _, warning := range final.Warnings {
		if strings.Contains(warning, "gap_analyst") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("warnings = %v, want one naming the failed stage", final.Warnings)
	}

	ranked, ok := features.ResultFrom(final)
	if !ok {
		t.Fatalf("no ranked result on final state")
	}
	for _, candidate := range ranked {
		if strings.HasPrefix(candidate.TempID, "gap_") {
			t.Fatalf("failed stage contributed candidate %s", candidate.TempID)
		}
	}
	if len(ranked) != 3 {
		t.Fatalf("ranked = %d candidates", len(ranked))
	}
}

func TestWorkflow_RankerFailureYieldsDiscoveryOrder(t *testing.T) {
	completer := &fakeCompleter{
		responses: happyResponses(),
		errs: map[string]error{
			"priority_ranker": llm.NewProviderError(503, errors.New("overloaded")),
		},
	}
	final := runWorkflow(t, completer)

	ranked, ok := features.ResultFrom(final)
	if !ok {
		t.Fatalf("no ranked result on final state")
	}
	wantOrder := []string{"disc_0", "disc_1", "gap_0", "debt_0"}
	if len(ranked) != len(wantOrder) {
		t.Fatalf("ranked = %d candidates", len(ranked))
	}
	for index, tempID := range wantOrder {
		if ranked[index].TempID != tempID {
			t.Fatalf("order = %v, want %v at %d", ranked[index].TempID, tempID, index)
		}
	}
	// Enrichment survives a failed ranking.
	if ranked[0].Problem != "P" {
		t.Fatalf("enrichment lost: %+v", ranked[0])
	}
	for _, candidate := range ranked {
		if candidate.PriorityScore != nil {
			t.Fatalf("unranked candidate carries a score: %+v", candidate)
		}
	}
}

func TestWorkflow_RankerFallbackKeepsMergeWarnings(t *testing.T) {
	responses := happyResponses()
	responses["feature_enricher"] = map[string]any{
		"enrichments": []map[string]any{
			{"temp_id": "disc_9", "problem": "ghost", "user_value": "v", "complexity": "low"},
		},
	}
	completer := &fakeCompleter{
		responses: responses,
		errs: map[string]error{
			"priority_ranker": llm.NewProviderError(503, errors.New("overloaded")),
		},
	}
	final := runWorkflow(t, completer)

	var sawFailure, sawDrop bool
	for _, warning := range final.Warnings {
		if strings.Contains(warning, "priority_ranker") {
			sawFailure = true
		}
		if strings.Contains(warning, "disc_9") {
			sawDrop = true
		}
	}
	if !sawFailure || !sawDrop {
		t.Fatalf("warnings = %v, want stage failure plus dropped enrichment", final.Warnings)
	}

	ranked, ok := features.ResultFrom(final)
	if !ok || len(ranked) != 4 {
		t.Fatalf("ranked = %v (%v)", ranked, ok)
	}
}

func TestWorkflow_RefusalIsIsolated(t *testing.T) {
	completer := &fakeCompleter{
		responses: happyResponses(),
		errs: map[string]error{
			"feature_enricher": &llm.RefusalError{Reason: "declined"},
		},
	}
	final := runWorkflow(t, completer)

	ranked, ok := features.ResultFrom(final)
	if !ok {
		t.Fatalf("no ranked result on final state")
	}
	if len(ranked) != 4 {
		t.Fatalf("ranked = %d candidates", len(ranked))
	}
	// Without enrichments the candidates keep their discovery fields.
	for _, candidate := range ranked {
		if candidate.Problem != "" {
			t.Fatalf("enrichment appeared despite refusal: %+v", candidate)
		}
	}
}

func TestWorkflow_MaxCandidatesTruncates(t *testing.T) {
	responses := happyResponses()
	var many []map[string]any
	for index := 0; index < 8; index++ {
		many = append(many, map[string]any{
			"title": fmt.Sprintf("Feature %d", index), "category": "core", "rationale": "r",
		})
	}
	responses["feature_discoverer"] = map[string]any{"features": many}
	responses["gap_analyst"] = map[string]any{"features": []map[string]any{}}
	responses["tech_debt_analyst"] = map[string]any{"features": []map[string]any{}}
	responses["priority_ranker"] = map[string]any{"rankings": []map[string]any{}}

	completer := &fakeCompleter{responses: responses}

	initial, err := features.InitialState(testSnapshot(), "")
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	cfg := testConfig()
	cfg.MaxCandidates = 3
	definition := features.NewDefinition(completer, cfg)
	events, err := engine.Engine{}.Execute(context.Background(), definition, initial)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var final *engine.State
	for event := range events {
		if event.Type == engine.EventComplete {
			final = event.State
		}
	}

	ranked, _ := features.ResultFrom(final)
	if len(ranked) != 3 {
		t.Fatalf("ranked = %d candidates, want the configured limit", len(ranked))
	}
}

func TestInitialState_RejectsEmptySnapshot(t *testing.T) {
	if _, err := features.InitialState(snapshot.Snapshot{}, ""); err == nil {
		t.Fatalf("expected error for unusable snapshot")
	}
}
