package engine

import "context"

// Stage is one unit of analysis work: it consumes the accumulated state
// and produces a bounded delta. A stage only writes payload fields it
// owns; earlier stages' payloads are read-only.
//
// Errors returned from Run do not abort the run. The engine converts
// them into an error delta (history entry, warning, fallback payloads)
// and continues with the next stage.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) (Delta, error)
}

// Fallbacker lets a stage supply defaults for its owned payload fields
// when Run fails, so downstream stages still find the fields present.
// Discovery stages typically return an empty candidate slice. A stage
// that derives its fallback from the accumulated state may report
// warnings raised while doing so; the engine appends them to the run.
type Fallbacker interface {
	Fallback(state *State) (map[string]any, []string)
}

// Definition is an ordered list of stages fixed at configuration time.
type Definition struct {
	Name   string
	Stages []Stage
}
