package loomflow

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// Test helpers shared across the package's tests.

// stubFunc is the behavior of a stub node.
type stubFunc func(ctx context.Context, rc *RunContext) (*Result, error)

// stubNode is a scriptable node for engine tests.
type stubNode struct {
	id  string
	typ NodeType
	fn  stubFunc
}

func (n *stubNode) ID() string {
	return n.id
}

func (n *stubNode) Type() NodeType {
	if n.typ == "" {
		return "stub"
	}
	return n.typ
}

func (n *stubNode) Title() string {
	return n.id
}

func (n *stubNode) Run(ctx context.Context, rc *RunContext) (*Result, error) {
	if n.fn == nil {
		return Succeeded(nil), nil
	}
	return n.fn(ctx, rc)
}

// stubFactory builds stub nodes, scripting the IDs present in fns and
// defaulting the rest to immediate success.
func stubFactory(fns map[string]stubFunc) Factory {
	return func(cfg NodeConfig) (Node, error) {
		return &stubNode{id: cfg.ID, typ: cfg.Type, fn: fns[cfg.ID]}, nil
	}
}

// succeedWith returns a stub behavior producing fixed outputs.
func succeedWith(outputs map[string]vars.Value) stubFunc {
	return func(context.Context, *RunContext) (*Result, error) {
		return Succeeded(outputs), nil
	}
}

// selectHandle returns a stub behavior selecting a branch handle.
func selectHandle(handle string) stubFunc {
	return func(context.Context, *RunContext) (*Result, error) {
		return Branched(handle, nil), nil
	}
}

// failWith returns a stub behavior that always errors.
func failWith(err error) stubFunc {
	return func(context.Context, *RunContext) (*Result, error) {
		return nil, err
	}
}

// blockUntil returns a stub behavior that waits for the gate channel
// (or context cancellation) before succeeding.
func blockUntil(gate <-chan struct{}) stubFunc {
	return func(ctx context.Context, _ *RunContext) (*Result, error) {
		select {
		case <-gate:
			return Succeeded(nil), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// nodeCfg builds a plain node config for tests.
func nodeCfg(id string) NodeConfig {
	return NodeConfig{ID: id, Type: "stub"}
}

// edgeCfg builds an untagged default-path edge.
func edgeCfg(source, target string) EdgeConfig {
	return EdgeConfig{Source: source, Target: target}
}

// edgeCfgH builds a handle-gated edge.
func edgeCfgH(source, target, handle string) EdgeConfig {
	return EdgeConfig{Source: source, Target: target, SourceHandle: handle}
}

// newTestState creates a runtime state with a fixed run ID.
func newTestState() *state.RuntimeState {
	return state.New(state.SystemVars{RunID: "test-run"})
}

// collect drains the event stream into a slice.
func collect(ch <-chan event.Event) []event.Event {
	var evs []event.Event
	for ev := range ch {
		evs = append(evs, ev)
	}
	return evs
}

// typesOf projects the event type sequence.
func typesOf(evs []event.Event) []event.Type {
	types := make([]event.Type, len(evs))
	for i, ev := range evs {
		types[i] = ev.Type
	}
	return types
}

// eventsFor filters events belonging to one node.
func eventsFor(evs []event.Event, nodeID string) []event.Event {
	var out []event.Event
	for _, ev := range evs {
		if ev.NodeID == nodeID {
			out = append(out, ev)
		}
	}
	return out
}

// countType counts events of one type.
func countType(evs []event.Event, t event.Type) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == t {
			n++
		}
	}
	return n
}
