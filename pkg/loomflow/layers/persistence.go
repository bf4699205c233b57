// Package layers provides ready-made observer layers: execution
// persistence and pause-state capture.
package layers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/store"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// PersistenceLayer writes execution and node-execution records as the
// run's events stream by. A storage failure fails the run: the record
// of what happened must not silently diverge from what happened.
type PersistenceLayer struct {
	loomflow.BaseLayer
	executions store.ExecutionStore
	nodeRuns   store.NodeExecutionStore
	rt         *state.RuntimeState
	runID      string
	seq        int
}

// Compile-time interface check.
var _ loomflow.Layer = (*PersistenceLayer)(nil)

// NewPersistenceLayer creates a layer persisting to the given stores.
// The runtime state supplies counters for the final execution record.
func NewPersistenceLayer(executions store.ExecutionStore, nodeRuns store.NodeExecutionStore, rt *state.RuntimeState) *PersistenceLayer {
	return &PersistenceLayer{executions: executions, nodeRuns: nodeRuns, rt: rt}
}

// Name implements loomflow.Layer.
func (l *PersistenceLayer) Name() string {
	return "persistence"
}

// OnGraphStart implements loomflow.Layer.
func (l *PersistenceLayer) OnGraphStart(_ context.Context, runID string) {
	l.runID = runID
}

// OnEvent implements loomflow.Layer.
func (l *PersistenceLayer) OnEvent(_ context.Context, ev event.Event) error {
	switch ev.Type {
	case event.NodeRunSucceeded, event.NodeRunFailed:
		return l.saveNodeRun(ev)
	case event.GraphRunSucceeded, event.GraphRunFailed, event.GraphRunPaused, event.GraphRunStopped:
		return l.saveExecution(ev)
	}
	return nil
}

func (l *PersistenceLayer) saveNodeRun(ev event.Event) error {
	outputs, err := marshalOutputs(ev.Outputs)
	if err != nil {
		return err
	}
	l.seq++
	rec := store.NodeExecutionRecord{
		RunID:      ev.Meta.RunID,
		NodeID:     ev.NodeID,
		NodeType:   ev.NodeType,
		Status:     nodeStatus(ev.Type),
		Attempt:    ev.Attempt,
		Outputs:    outputs,
		Error:      ev.Err,
		Elapsed:    ev.Elapsed,
		Sequence:   l.seq,
		FinishedAt: ev.Meta.Timestamp,
	}
	if err := l.nodeRuns.SaveNodeExecution(rec); err != nil {
		return fmt.Errorf("persist node execution %s: %w", ev.NodeID, err)
	}
	return nil
}

func (l *PersistenceLayer) saveExecution(ev event.Event) error {
	outputs, err := marshalOutputs(ev.Outputs)
	if err != nil {
		return err
	}
	rec := store.ExecutionRecord{
		RunID:      ev.Meta.RunID,
		Status:     graphStatus(ev.Type),
		Outputs:    outputs,
		Error:      ev.Err,
		Elapsed:    ev.Elapsed,
		FinishedAt: ev.Meta.Timestamp,
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if l.rt != nil {
		sys := l.rt.System()
		rec.AppID = sys.AppID
		rec.UserID = sys.UserID
		rec.TotalSteps = l.rt.TotalSteps()
		rec.TotalTokens = l.rt.TotalTokens()
	}
	if err := l.executions.SaveExecution(rec); err != nil {
		return fmt.Errorf("persist execution %s: %w", ev.Meta.RunID, err)
	}
	return nil
}

func marshalOutputs(outputs map[string]vars.Value) ([]byte, error) {
	if len(outputs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("marshal outputs: %w", err)
	}
	return data, nil
}

func nodeStatus(t event.Type) string {
	if t == event.NodeRunFailed {
		return "failed"
	}
	return "succeeded"
}

func graphStatus(t event.Type) string {
	switch t {
	case event.GraphRunFailed:
		return "failed"
	case event.GraphRunPaused:
		return "paused"
	case event.GraphRunStopped:
		return "stopped"
	default:
		return "succeeded"
	}
}
