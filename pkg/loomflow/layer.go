package loomflow

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow/event"
)

// Layer observes a run's event stream without influencing scheduling.
// Layers are invoked synchronously by the orchestrator, in registration
// order, before each event reaches the consumer channel.
//
// An error from OnEvent is fatal to the run: the engine fails with a
// LayerError rather than continue half-observed.
type Layer interface {
	// Name identifies the layer in logs and errors.
	Name() string

	// OnGraphStart is called once before any event is emitted.
	OnGraphStart(ctx context.Context, runID string)

	// OnEvent is called for every event, in stream order.
	OnEvent(ctx context.Context, ev event.Event) error

	// OnGraphEnd is called once after the terminal event, with the
	// run's error (nil on success, pause, or stop).
	OnGraphEnd(ctx context.Context, runErr error)
}

// BaseLayer provides no-op defaults so layers can embed it and
// override only the hooks they need.
type BaseLayer struct{}

func (BaseLayer) OnGraphStart(context.Context, string) {}

func (BaseLayer) OnEvent(context.Context, event.Event) error { return nil }

func (BaseLayer) OnGraphEnd(context.Context, error) {}
