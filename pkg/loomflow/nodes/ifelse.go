package nodes

import (
	"context"
	"fmt"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/expr"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// branchCase is one condition of a multi-way branch.
type branchCase struct {
	id        string
	condition string
}

// IfElseNode evaluates conditions against the pool and selects an
// outgoing edge handle.
//
// Two config forms are supported: a single "condition" selecting the
// "true"/"false" handles, or an ordered "cases" list where the first
// matching case's id becomes the handle and "else" is the fallthrough.
type IfElseNode struct {
	base
	condition string
	cases     []branchCase
	eval      *expr.Evaluator
}

func buildIfElse(cfg loomflow.NodeConfig, _ Deps, _ loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	n := &IfElseNode{
		base:      newBase(cfg),
		condition: c.String("condition", ""),
		eval:      expr.New(),
	}
	for i, m := range c.MapSlice("cases", nil) {
		cc := config.New(m)
		id := cc.String("case_id", "")
		if id == "" {
			id = fmt.Sprintf("case_%d", i+1)
		}
		n.cases = append(n.cases, branchCase{
			id:        id,
			condition: cc.String("condition", ""),
		})
	}
	if n.condition == "" && len(n.cases) == 0 {
		return nil, fmt.Errorf("if-else node %q has no condition", cfg.ID)
	}
	return n, nil
}

// Run implements loomflow.Node.
func (n *IfElseNode) Run(_ context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	resolver := poolResolver(rc.Pool())

	if len(n.cases) > 0 {
		for _, bc := range n.cases {
			ok, err := n.eval.Evaluate(bc.condition, resolver)
			if err != nil {
				return nil, fmt.Errorf("evaluate case %q: %w", bc.id, err)
			}
			if ok {
				return loomflow.Branched(bc.id, map[string]vars.Value{
					"selected": vars.StringValue(bc.id),
				}), nil
			}
		}
		return loomflow.Branched("else", map[string]vars.Value{
			"selected": vars.StringValue("else"),
		}), nil
	}

	ok, err := n.eval.Evaluate(n.condition, resolver)
	if err != nil {
		return nil, fmt.Errorf("evaluate condition: %w", err)
	}
	handle := "false"
	if ok {
		handle = "true"
	}
	return loomflow.Branched(handle, map[string]vars.Value{
		"selected": vars.StringValue(handle),
	}), nil
}
