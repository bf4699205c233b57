package nodes

import (
	"context"
	"fmt"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/expr"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// defaultMaxIterations caps a loop that never satisfies its break
// condition. Explicit max_iterations overrides it.
const defaultMaxIterations = 100

// LoopNode repeats a nested sub-graph until its break condition holds
// or the iteration cap is reached.
//
// Loop variables live under the loop's scope as {{#<loop_id>.<name>#}}
// and are rebound after each pass from the "updates" selectors, so the
// break condition can observe progress. Passes share the outer pool:
// inner node scopes are overwritten pass over pass.
type LoopNode struct {
	base
	maxIterations int
	breakCond     string
	initial       map[string]any
	updates       map[string]vars.Selector
	workers       int
	graph         *loomflow.Graph
	eval          *expr.Evaluator
}

func buildLoop(cfg loomflow.NodeConfig, _ Deps, factory loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	g, err := buildSubGraph(cfg, factory)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]vars.Selector)
	for name, ref := range c.StringMap("updates", nil) {
		sel, ok := vars.ParseSelector(ref)
		if !ok {
			return nil, fmt.Errorf("loop node %q has invalid update selector %q for %q", cfg.ID, ref, name)
		}
		updates[name] = sel
	}

	maxIter := c.Int("max_iterations", defaultMaxIterations)
	if maxIter < 1 {
		maxIter = 1
	}
	return &LoopNode{
		base:          newBase(cfg),
		maxIterations: maxIter,
		breakCond:     c.String("break_condition", ""),
		initial:       configMap(cfg.Config, "variables"),
		updates:       updates,
		workers:       c.Int("workers", defaultInnerWorkers),
		graph:         g,
		eval:          expr.New(),
	}, nil
}

// Run implements loomflow.Node.
func (n *LoopNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	pool := rc.Pool()
	resolver := poolResolver(pool)

	// Rebind loop variables fresh; a previous run of the same loop id
	// (a resumed graph) must not leak state into this one.
	pool.RemoveScope(n.id)
	for name, init := range n.initial {
		pool.Add(vars.Selector{NodeID: n.id, Name: name}, renderValue(pool, init))
	}

	passes := 0
	for i := 0; i < n.maxIterations; i++ {
		if n.breakCond != "" {
			done, err := n.eval.Evaluate(n.breakCond, resolver)
			if err != nil {
				return nil, fmt.Errorf("evaluate break condition: %w", err)
			}
			if done {
				break
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scope := fmt.Sprintf("%s.%d", n.id, i)
		// Each pass gets its own completion ledger; the pool itself is
		// shared so inner scopes overwrite pass over pass.
		if err := runInner(ctx, n.graph, rc.State.Nested(), rc, scope, n.workers); err != nil {
			return nil, fmt.Errorf("pass %d: %w", i, err)
		}
		passes++

		for name, sel := range n.updates {
			if v, ok := pool.Get(sel); ok {
				pool.Add(vars.Selector{NodeID: n.id, Name: name}, v)
			}
		}
	}

	outputs := pool.Scope(n.id)
	outputs["iterations"] = vars.NumberValue(float64(passes))
	return loomflow.Succeeded(outputs), nil
}
