package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
)

// benchNode does minimal work to measure framework overhead.
type benchNode struct {
	id string
}

func (n *benchNode) ID() string              { return n.id }
func (n *benchNode) Type() loomflow.NodeType { return "bench" }
func (n *benchNode) Title() string           { return n.id }

func (n *benchNode) Run(context.Context, *loomflow.RunContext) (*loomflow.Result, error) {
	return loomflow.Succeeded(nil), nil
}

func benchFactory(cfg loomflow.NodeConfig) (loomflow.Node, error) {
	return &benchNode{id: cfg.ID}, nil
}

func nodeID(n int) string {
	return fmt.Sprintf("n%d", n)
}

func linearConfigs(n int) ([]loomflow.NodeConfig, []loomflow.EdgeConfig) {
	nodes := make([]loomflow.NodeConfig, n)
	for i := 0; i < n; i++ {
		nodes[i] = loomflow.NodeConfig{ID: nodeID(i), Type: "bench"}
	}
	edges := make([]loomflow.EdgeConfig, 0, n-1)
	for i := 0; i < n-1; i++ {
		edges = append(edges, loomflow.EdgeConfig{Source: nodeID(i), Target: nodeID(i + 1)})
	}
	return nodes, edges
}

func diamondConfigs() ([]loomflow.NodeConfig, []loomflow.EdgeConfig) {
	nodes := []loomflow.NodeConfig{
		{ID: "head", Type: "bench"},
		{ID: "left", Type: "bench"},
		{ID: "right", Type: "bench"},
		{ID: "merge", Type: "bench"},
	}
	edges := []loomflow.EdgeConfig{
		{Source: "head", Target: "left"},
		{Source: "head", Target: "right"},
		{Source: "left", Target: "merge"},
		{Source: "right", Target: "merge"},
	}
	return nodes, edges
}

func mustBuild(nodes []loomflow.NodeConfig, edges []loomflow.EdgeConfig) *loomflow.Graph {
	g, err := loomflow.Build(nodes, edges, benchFactory)
	if err != nil {
		panic(err)
	}
	return g
}

func newState() *state.RuntimeState {
	return state.New(state.SystemVars{RunID: "bench-run"})
}

// benchmarkBuild measures graph compilation for a given size.
func benchmarkBuild(b *testing.B, n int) {
	nodes, edges := linearConfigs(n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = loomflow.Build(nodes, edges, benchFactory)
	}
}

func BenchmarkBuild_Linear_5(b *testing.B)   { benchmarkBuild(b, 5) }
func BenchmarkBuild_Linear_10(b *testing.B)  { benchmarkBuild(b, 10) }
func BenchmarkBuild_Linear_50(b *testing.B)  { benchmarkBuild(b, 50) }
func BenchmarkBuild_Linear_100(b *testing.B) { benchmarkBuild(b, 100) }

// BenchmarkBuild_Diamond measures compilation of a fan-out/fan-in graph.
func BenchmarkBuild_Diamond(b *testing.B) {
	nodes, edges := diamondConfigs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = loomflow.Build(nodes, edges, benchFactory)
	}
}
