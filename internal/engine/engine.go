// Package engine sequences heterogeneous analysis stages over a shared
// accumulating state and streams progress events to the caller. One
// stage's failure never aborts a run: the engine downgrades it to a
// warning and continues, so a degraded run still yields whatever
// candidates survived.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine executes workflow definitions. The zero value is usable; a
// logger may be assigned for stage-transition logging.
type Engine struct {
	Logger *zap.Logger
}

// Execute runs the definition's stages strictly in order against the
// initial state and returns the event stream. It fails eagerly, before
// any event is emitted, only when the run cannot start at all; once the
// stream exists every run ends with a complete event.
//
// The engine is the sole producer on the returned channel and closes it
// after the complete event. Cancelling ctx stops event delivery at the
// next stage boundary; the stage already running finishes on a detached
// context and its update is still applied before the producer exits.
func (e Engine) Execute(ctx context.Context, definition Definition, initial *State) (<-chan Event, error) {
	if initial == nil {
		return nil, errors.New("initial state is required")
	}
	if len(definition.Stages) == 0 {
		return nil, fmt.Errorf("workflow %q has no stages", definition.Name)
	}
	if initial.RunID == "" {
		initial.RunID = uuid.New().String()
	}

	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("workflow", definition.Name), zap.String("run_id", initial.RunID))

	events := make(chan Event)
	go produce(ctx, definition, initial, events, logger)
	return events, nil
}

func produce(ctx context.Context, definition Definition, state *State, events chan<- Event, logger *zap.Logger) {
	defer close(events)

	total := len(definition.Stages)
	for index, stage := range definition.Stages {
		if !send(ctx, events, Event{
			Type:     EventStart,
			Stage:    stage.Name(),
			Progress: progressFraction(index, total),
		}) {
			return
		}

		delta, runErr := runStage(ctx, stage, state)
		if runErr == nil {
			runErr = state.apply(stage.Name(), delta)
			if runErr == nil {
				logger.Info("stage completed", zap.String("stage", stage.Name()))
				if !send(ctx, events, Event{
					Type:     EventProgress,
					Stage:    stage.Name(),
					Progress: progressFraction(index+1, total),
					Summary:  delta.Summary,
				}) {
					return
				}
				continue
			}
		}

		// Failure isolation: record the failure on the state, fill the
		// stage's owned fields from its fallback, and keep going.
		warning := fmt.Sprintf("%s: %v", stage.Name(), runErr)
		errorDelta := Delta{Warnings: []string{warning}}
		if provider, ok := stage.(Fallbacker); ok {
			payloads, fallbackWarnings := provider.Fallback(state)
			errorDelta.Payloads = payloads
			errorDelta.Warnings = append(errorDelta.Warnings, fallbackWarnings...)
		}
		if applyErr := state.apply(stage.Name(), errorDelta); applyErr != nil {
			// Fallback collided with an existing payload; keep the
			// warning but drop the fallback fields.
			errorDelta.Payloads = nil
			_ = state.apply(stage.Name(), errorDelta)
		}
		logger.Warn("stage failed", zap.String("stage", stage.Name()), zap.Error(runErr))
		if !send(ctx, events, Event{
			Type:     EventError,
			Stage:    stage.Name(),
			Progress: progressFraction(index+1, total),
			Warning:  warning,
		}) {
			return
		}
	}

	send(ctx, events, Event{
		Type:     EventComplete,
		Progress: 1.0,
		State:    state,
	})
}

// runStage isolates stage execution: panics become errors, and the
// stage runs on a context detached from caller cancellation so that
// completion calls already issued are allowed to finish.
func runStage(ctx context.Context, stage Stage, state *State) (delta Delta, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return stage.Run(context.WithoutCancel(ctx), state)
}

func send(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
