package nodes

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow"
)

// EndNode terminates a branch and projects selected pool values into
// the run's final outputs. The "outputs" config maps output names to
// references or templates.
type EndNode struct {
	base
	outputs map[string]any
}

func buildEnd(cfg loomflow.NodeConfig, _ Deps, _ loomflow.Factory) (loomflow.Node, error) {
	return &EndNode{
		base:    newBase(cfg),
		outputs: configMap(cfg.Config, "outputs"),
	}, nil
}

// Run implements loomflow.Node.
func (n *EndNode) Run(_ context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	return loomflow.Succeeded(renderOutputs(rc.Pool(), n.outputs)), nil
}
