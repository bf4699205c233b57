package nodes

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// HumanInputNode gates the run on an externally provided value.
//
// If the expected variable is already present under the node's scope
// (seeded before a resume), the node completes with it. Otherwise it
// reports a waiting result and the engine pauses the run; the operator
// stores the value into the pool and re-runs the remaining graph.
type HumanInputNode struct {
	base
	variable string
	prompt   string
}

func buildHumanInput(cfg loomflow.NodeConfig, _ Deps, _ loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	return &HumanInputNode{
		base:     newBase(cfg),
		variable: c.String("variable", "input"),
		prompt:   c.String("prompt", ""),
	}, nil
}

// Run implements loomflow.Node.
func (n *HumanInputNode) Run(_ context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	pool := rc.Pool()
	if v, ok := pool.Get(vars.Selector{NodeID: n.id, Name: n.variable}); ok {
		return loomflow.Succeeded(map[string]vars.Value{n.variable: v}), nil
	}

	res := loomflow.Waiting("human_input:" + n.id)
	if n.prompt != "" {
		res.Outputs = map[string]vars.Value{
			"prompt": vars.StringValue(pool.ConvertTemplate(n.prompt)),
		}
	}
	return res, nil
}
