package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
)

// defaultInnerWorkers is the worker pool size for nested sub-graphs.
const defaultInnerWorkers = 4

// ErrInnerPause indicates a nested sub-graph tried to pause.
// Pause boundaries exist at the outer run level only.
var ErrInnerPause = errors.New("pause inside container not supported")

// runInner executes a container's sub-graph to completion on a fresh
// engine. Inner node events are re-scoped under the container's id
// (e.g. "iter.0.transform") and forwarded into the outer stream;
// inner graph-level events stay internal.
func runInner(ctx context.Context, g *loomflow.Graph, rt *state.RuntimeState, rc *loomflow.RunContext, scope string, workers int) error {
	eng := loomflow.New(g, rt, loomflow.WithWorkers(workers))

	var runErr error
	for ev := range eng.Run(ctx) {
		switch ev.Type {
		case event.GraphRunStarted, event.GraphRunSucceeded:
		case event.GraphRunFailed:
			runErr = fmt.Errorf("sub-graph failed: %s", ev.Err)
		case event.GraphRunStopped:
			runErr = context.Canceled
		case event.GraphRunPaused:
			runErr = ErrInnerPause
		default:
			if rc.EmitEvent != nil {
				ev.NodeID = scope + "." + ev.NodeID
				rc.EmitEvent(ev)
			}
		}
	}
	return runErr
}

// buildSubGraph compiles a container's nested node and edge configs.
func buildSubGraph(cfg loomflow.NodeConfig, factory loomflow.Factory) (*loomflow.Graph, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("container node %q has no nested nodes", cfg.ID)
	}
	g, err := loomflow.Build(cfg.Nodes, cfg.Edges, factory)
	if err != nil {
		return nil, fmt.Errorf("container node %q: %w", cfg.ID, err)
	}
	return g, nil
}
