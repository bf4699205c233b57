// Package loomflow executes workflow graphs.
//
// A workflow is a directed acyclic graph of typed nodes connected by
// edges that may be gated on a branch handle. Build validates a
// declarative definition into an immutable Graph; New wraps a graph
// and a runtime state into a single-use Engine; Run drives the graph
// to one terminal outcome and streams lifecycle events to the caller:
//
//	g, err := loomflow.Build(nodeCfgs, edgeCfgs, nodes.DefaultFactory())
//	if err != nil {
//		return err
//	}
//	rt := state.New(state.SystemVars{RunID: uuid.NewString()})
//	events := loomflow.New(g, rt, loomflow.WithWorkers(4)).Run(ctx)
//	for ev := range events {
//		// ...
//	}
//
// Scheduling is readiness-driven: a node runs when every incoming edge
// has been resolved and at least one was taken. Untaken branches are
// pruned transitively without emitting events, so a downstream join
// waits only for predecessors that can still run.
//
// Runs can be stopped or paused out-of-band through a command.Channel,
// and a paused run's state serializes via the state package so a later
// process can resume the remaining work.
package loomflow
