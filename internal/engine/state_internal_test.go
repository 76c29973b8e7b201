package engine

import (
	"testing"
)

func TestStateApply_AppendsAndSets(t *testing.T) {
	state := NewState(map[string]any{"seed": 1})

	err := state.apply("first", Delta{
		Payloads: map[string]any{"first_out": "a"},
		Messages: []Message{{Role: "assistant", Text: "hello"}},
		Warnings: []string{"minor"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if state.CurrentAgent != "first" {
		t.Fatalf("current agent = %q", state.CurrentAgent)
	}
	if len(state.AgentHistory) != 1 || state.AgentHistory[0] != "first" {
		t.Fatalf("agent history = %v", state.AgentHistory)
	}
	if len(state.Messages) != 1 || len(state.Warnings) != 1 {
		t.Fatalf("messages/warnings not appended")
	}
	if value, ok := state.Payload("first_out"); !ok || value != "a" {
		t.Fatalf("first_out = %v (%v)", value, ok)
	}

	if err := state.apply("second", Delta{Payloads: map[string]any{"second_out": true}}); err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if len(state.AgentHistory) != 2 {
		t.Fatalf("agent history = %v", state.AgentHistory)
	}
}

func TestStateApply_RejectsOverwriteAtomically(t *testing.T) {
	state := NewState(map[string]any{"seed": 1})

	err := state.apply("greedy", Delta{Payloads: map[string]any{"fresh": 2, "seed": 9}})
	if err == nil {
		t.Fatalf("expected overwrite rejection")
	}
	if state.CurrentAgent != "" || len(state.AgentHistory) != 0 {
		t.Fatalf("rejected delta mutated agent fields")
	}
	if _, ok := state.Payload("fresh"); ok {
		t.Fatalf("rejected delta partially applied")
	}
	if value, _ := state.Payload("seed"); value != 1 {
		t.Fatalf("seed = %v", value)
	}
}

func TestStatePayloads_ReturnsCopy(t *testing.T) {
	state := NewState(map[string]any{"seed": 1})
	copied := state.Payloads()
	copied["seed"] = 99
	copied["extra"] = true

	if value, _ := state.Payload("seed"); value != 1 {
		t.Fatalf("copy mutation leaked into state")
	}
	if _, ok := state.Payload("extra"); ok {
		t.Fatalf("copy mutation leaked into state")
	}
}
