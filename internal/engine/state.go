package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Message is one human-readable trace entry on the workflow state.
// Messages are audit output only; stages never read them for control
// decisions.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// State is the accumulating record threaded through all stages of one
// run. AgentHistory, Messages and Warnings are append-only; payload
// fields are set once by their producing stage and read-only afterwards.
type State struct {
	RunID        string    `json:"run_id"`
	CurrentAgent string    `json:"current_agent"`
	AgentHistory []string  `json:"agent_history"`
	Messages     []Message `json:"messages"`
	Warnings     []string  `json:"warnings"`

	payloads map[string]any
}

// NewState builds a run state seeded with the given initial payload
// fields (repository snapshot, user guidance, limits).
func NewState(initial map[string]any) *State {
	payloads := make(map[string]any, len(initial))
	for key, value := range initial {
		payloads[key] = value
	}
	return &State{payloads: payloads}
}

// Payload returns the payload field stored under key.
func (s *State) Payload(key string) (any, bool) {
	value, ok := s.payloads[key]
	return value, ok
}

// Payloads returns a copy of all payload fields.
func (s *State) Payloads() map[string]any {
	out := make(map[string]any, len(s.payloads))
	for key, value := range s.payloads {
		out[key] = value
	}
	return out
}

// MarshalJSON includes the payload fields so a serialized state carries
// the run's result; the complete event relies on this when a transport
// encodes it as JSON.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RunID        string         `json:"run_id"`
		CurrentAgent string         `json:"current_agent"`
		AgentHistory []string       `json:"agent_history"`
		Messages     []Message      `json:"messages"`
		Warnings     []string       `json:"warnings"`
		Payloads     map[string]any `json:"payloads"`
	}{s.RunID, s.CurrentAgent, s.AgentHistory, s.Messages, s.Warnings, s.payloads})
}

// Delta is a stage's partial state update. Sequences are appended, and
// each payload key must not already exist on the state.
type Delta struct {
	Payloads map[string]any
	Messages []Message
	Warnings []string

	// Summary is a one-line description carried on the progress event.
	Summary string
}

// apply merges a stage delta into the state: CurrentAgent is
// overwritten, AgentHistory/Messages/Warnings are appended, payloads
// are set-once. A delta touching an existing payload key is rejected
// as a whole, before any field is mutated.
func (s *State) apply(agent string, delta Delta) error {
	keys := make([]string, 0, len(delta.Payloads))
	for key := range delta.Payloads {
		if _, exists := s.payloads[key]; exists {
			return fmt.Errorf("payload %q already set", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.CurrentAgent = agent
	s.AgentHistory = append(s.AgentHistory, agent)
	s.Messages = append(s.Messages, delta.Messages...)
	s.Warnings = append(s.Warnings, delta.Warnings...)
	for _, key := range keys {
		s.payloads[key] = delta.Payloads[key]
	}
	return nil
}
