package benchmarks

import (
	"context"
	"testing"

	"github.com/loomflow/loomflow/pkg/loomflow"
)

// benchmarkRun measures end-to-end execution of a linear graph.
// Engines are single-use, so each iteration creates a fresh one over
// the shared compiled graph.
func benchmarkRun(b *testing.B, n int) {
	g := mustBuild(linearConfigs(n))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng := loomflow.New(g, newState())
		for range eng.Run(ctx) {
		}
	}
}

func BenchmarkRun_Linear_5(b *testing.B)   { benchmarkRun(b, 5) }
func BenchmarkRun_Linear_10(b *testing.B)  { benchmarkRun(b, 10) }
func BenchmarkRun_Linear_50(b *testing.B)  { benchmarkRun(b, 50) }
func BenchmarkRun_Linear_100(b *testing.B) { benchmarkRun(b, 100) }

// BenchmarkRun_Diamond measures a fan-out/fan-in run with parallel
// workers.
func BenchmarkRun_Diamond(b *testing.B) {
	g := mustBuild(diamondConfigs())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng := loomflow.New(g, newState(), loomflow.WithWorkers(4))
		for range eng.Run(ctx) {
		}
	}
}

// BenchmarkRun_Wide measures scheduling overhead with a broad fan-out.
func BenchmarkRun_Wide(b *testing.B) {
	nodes := []loomflow.NodeConfig{{ID: "head", Type: "bench"}}
	var edges []loomflow.EdgeConfig
	for i := 0; i < 20; i++ {
		nodes = append(nodes, loomflow.NodeConfig{ID: nodeID(i), Type: "bench"})
		edges = append(edges, loomflow.EdgeConfig{Source: "head", Target: nodeID(i)})
	}
	g := mustBuild(nodes, edges)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng := loomflow.New(g, newState(), loomflow.WithWorkers(8))
		for range eng.Run(ctx) {
		}
	}
}
