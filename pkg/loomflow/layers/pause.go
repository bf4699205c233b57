package layers

import (
	"context"
	"fmt"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/store"
)

// PauseStateLayer captures the serialized runtime state at a pause
// boundary so a later process can resume the run, and clears it once
// the run reaches a real terminal outcome.
type PauseStateLayer struct {
	loomflow.BaseLayer
	states store.StateStore
	rt     *state.RuntimeState
}

// Compile-time interface check.
var _ loomflow.Layer = (*PauseStateLayer)(nil)

// NewPauseStateLayer creates a layer saving pause state to the store.
func NewPauseStateLayer(states store.StateStore, rt *state.RuntimeState) *PauseStateLayer {
	return &PauseStateLayer{states: states, rt: rt}
}

// Name implements loomflow.Layer.
func (l *PauseStateLayer) Name() string {
	return "pause-state"
}

// OnEvent implements loomflow.Layer.
func (l *PauseStateLayer) OnEvent(_ context.Context, ev event.Event) error {
	switch ev.Type {
	case event.GraphRunPaused:
		payload, err := l.rt.Dumps()
		if err != nil {
			return fmt.Errorf("serialize state for %s: %w", ev.Meta.RunID, err)
		}
		if err := l.states.SaveState(ev.Meta.RunID, payload); err != nil {
			return fmt.Errorf("save state for %s: %w", ev.Meta.RunID, err)
		}
	case event.GraphRunSucceeded, event.GraphRunStopped:
		// A completed run's pause state is stale; best effort removal.
		_ = l.states.DeleteState(ev.Meta.RunID)
	}
	return nil
}
