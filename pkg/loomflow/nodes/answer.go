package nodes

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// AnswerNode renders a response template against the pool and streams
// the rendered text to the event stream before completing. It is the
// conversational counterpart of EndNode.
type AnswerNode struct {
	base
	template string
}

func buildAnswer(cfg loomflow.NodeConfig, _ Deps, _ loomflow.Factory) (loomflow.Node, error) {
	var tmpl string
	if cfg.Config != nil {
		if s, ok := cfg.Config["answer"].(string); ok {
			tmpl = s
		}
	}
	return &AnswerNode{base: newBase(cfg), template: tmpl}, nil
}

// Run implements loomflow.Node.
func (n *AnswerNode) Run(_ context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	answer := rc.Pool().ConvertTemplate(n.template)
	if answer != "" && rc.EmitChunk != nil {
		rc.EmitChunk(answer)
	}
	return loomflow.Succeeded(map[string]vars.Value{
		"answer": vars.StringValue(answer),
	}), nil
}
