package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// ErrNoSandbox indicates a code node ran without an injected Sandbox.
var ErrNoSandbox = errors.New("no sandbox configured")

// CodeNode executes user-authored code through the injected Sandbox.
// Declared inputs are resolved from the pool and passed to the
// sandbox; the sandbox's result map becomes the node's outputs.
type CodeNode struct {
	base
	language string
	code     string
	inputs   map[string]any
	sandbox  Sandbox
}

func buildCode(cfg loomflow.NodeConfig, deps Deps, _ loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	code := c.String("code", "")
	if code == "" {
		return nil, fmt.Errorf("code node %q has no code", cfg.ID)
	}
	return &CodeNode{
		base:     newBase(cfg),
		language: c.String("language", "python3"),
		code:     code,
		inputs:   configMap(cfg.Config, "inputs"),
		sandbox:  deps.Sandbox,
	}, nil
}

// Run implements loomflow.Node.
func (n *CodeNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	if n.sandbox == nil {
		return nil, fmt.Errorf("code node %q: %w", n.id, ErrNoSandbox)
	}

	inputs := make(map[string]any, len(n.inputs))
	for name, spec := range n.inputs {
		inputs[name] = renderValue(rc.Pool(), spec).Data
	}

	result, err := n.sandbox.RunCode(ctx, n.language, n.code, inputs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	outputs := make(map[string]vars.Value, len(result))
	for name, v := range result {
		outputs[name] = vars.Of(v)
	}
	return loomflow.Succeeded(outputs), nil
}
