package engine

// EventType classifies a stream event.
type EventType string

const (
	// EventStart is emitted before a stage runs.
	EventStart EventType = "start"
	// EventProgress is emitted after a stage succeeds.
	EventProgress EventType = "progress"
	// EventError is emitted after a stage fails; the run continues.
	EventError EventType = "error"
	// EventComplete is the final event of every run and carries the
	// final state.
	EventComplete EventType = "complete"
)

// Event is one unit of run-progress information. Progress is a
// fraction in [0,1], monotonically non-decreasing within a run; the
// complete event always carries exactly 1.0 and is always last.
// Events are transport-agnostic; callers serialize them however they
// deliver progress.
type Event struct {
	Type     EventType `json:"type"`
	Stage    string    `json:"stage,omitempty"`
	Progress float64   `json:"progress"`
	Summary  string    `json:"summary,omitempty"`
	Warning  string    `json:"warning,omitempty"`

	// State is set on the complete event only and serializes as the
	// run's result.
	State *State `json:"result,omitempty"`
}

func progressFraction(completed int, total int) float64 {
	if total <= 0 {
		return 1.0
	}
	return float64(completed) / float64(total)
}
