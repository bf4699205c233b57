package nodes

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// TemplateTransformNode renders a text template against the pool and
// publishes the result as its "output" variable.
type TemplateTransformNode struct {
	base
	template string
}

func buildTemplateTransform(cfg loomflow.NodeConfig, _ Deps, _ loomflow.Factory) (loomflow.Node, error) {
	var tmpl string
	if cfg.Config != nil {
		if s, ok := cfg.Config["template"].(string); ok {
			tmpl = s
		}
	}
	return &TemplateTransformNode{base: newBase(cfg), template: tmpl}, nil
}

// Run implements loomflow.Node.
func (n *TemplateTransformNode) Run(_ context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	return loomflow.Succeeded(map[string]vars.Value{
		"output": vars.StringValue(rc.Pool().ConvertTemplate(n.template)),
	}), nil
}
