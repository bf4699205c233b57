package nodes

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// IterationNode maps a nested sub-graph over an input array.
//
// Each element runs the sub-graph on a forked runtime state seeded
// with the element as {{#<iter_id>.item#}} and its position as
// {{#<iter_id>.index#}}. The value addressed by the "output" selector
// is collected per element, preserving input order, and published as
// the node's "output" array.
type IterationNode struct {
	base
	input       string
	output      vars.Selector
	parallel    bool
	concurrency int
	workers     int
	graph       *loomflow.Graph
}

func buildIteration(cfg loomflow.NodeConfig, _ Deps, factory loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	input := c.String("input", "")
	if input == "" {
		return nil, fmt.Errorf("iteration node %q has no input", cfg.ID)
	}
	outputRef := c.String("output", "")
	sel, ok := vars.ParseSelector(outputRef)
	if !ok {
		return nil, fmt.Errorf("iteration node %q has invalid output selector %q", cfg.ID, outputRef)
	}
	g, err := buildSubGraph(cfg, factory)
	if err != nil {
		return nil, err
	}

	concurrency := c.Int("concurrency", 1)
	if concurrency < 1 {
		concurrency = 1
	}
	return &IterationNode{
		base:        newBase(cfg),
		input:       input,
		output:      sel,
		parallel:    c.Bool("parallel", false),
		concurrency: concurrency,
		workers:     c.Int("workers", defaultInnerWorkers),
		graph:       g,
	}, nil
}

// Run implements loomflow.Node.
func (n *IterationNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	inputVal := renderValue(rc.Pool(), n.input)
	items, ok := inputVal.Data.([]any)
	if !ok {
		return nil, fmt.Errorf("iteration input %q is not an array", n.input)
	}

	results := make([]any, len(items))

	runElement := func(ctx context.Context, i int, item any) error {
		fork := rc.State.Fork()
		fork.Pool().Add(vars.Selector{NodeID: n.id, Name: "item"}, vars.Of(item))
		fork.Pool().Add(vars.Selector{NodeID: n.id, Name: "index"}, vars.NumberValue(float64(i)))

		scope := fmt.Sprintf("%s.%d", n.id, i)
		if err := runInner(ctx, n.graph, fork, rc, scope, n.workers); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}

		v, ok := fork.Pool().Get(n.output)
		if !ok {
			return fmt.Errorf("element %d produced no %s", i, n.output)
		}
		results[i] = v.Data
		return nil
	}

	if n.parallel && len(items) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(n.concurrency)
		for i, item := range items {
			g.Go(func() error {
				return runElement(gctx, i, item)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, item := range items {
			if err := runElement(ctx, i, item); err != nil {
				return nil, err
			}
		}
	}

	return loomflow.Succeeded(map[string]vars.Value{
		"output": vars.ArrayValue(results),
	}), nil
}
