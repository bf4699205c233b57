package nodes

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// StartNode is the entry point of a graph. It publishes the run's
// declared inputs into the pool under its own scope so downstream
// nodes can reference them as {{#<start_id>.<name>#}}.
type StartNode struct {
	base
	inputs map[string]any
}

func buildStart(cfg loomflow.NodeConfig, _ Deps, _ loomflow.Factory) (loomflow.Node, error) {
	return &StartNode{
		base:   newBase(cfg),
		inputs: configMap(cfg.Config, "inputs"),
	}, nil
}

// Run implements loomflow.Node.
func (n *StartNode) Run(_ context.Context, _ *loomflow.RunContext) (*loomflow.Result, error) {
	outputs := make(map[string]vars.Value, len(n.inputs))
	for name, v := range n.inputs {
		outputs[name] = vars.Of(v)
	}
	return loomflow.Succeeded(outputs), nil
}
