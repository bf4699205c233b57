package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeRun records a node execution with its duration and error status.
	RecordNodeRun(ctx context.Context, nodeType string, duration time.Duration, err error)

	// RecordNodeRetry records a retry attempt for a node.
	RecordNodeRetry(ctx context.Context, nodeType string)

	// RecordGraphRun records a graph run reaching a terminal outcome.
	RecordGraphRun(ctx context.Context, outcome string, duration time.Duration)

	// RecordQueueDepth records the readiness-queue depth at dispatch time.
	RecordQueueDepth(ctx context.Context, depth int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeRuns     metric.Int64Counter
	nodeLatency  metric.Float64Histogram
	nodeErrors   metric.Int64Counter
	nodeRetries  metric.Int64Counter
	graphRuns    metric.Int64Counter
	graphLatency metric.Float64Histogram
	queueDepth   metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("loomflow")

	nodeRuns, err := meter.Int64Counter("loomflow.node.runs",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("loomflow.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("loomflow.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	nodeRetries, err := meter.Int64Counter("loomflow.node.retries",
		metric.WithDescription("Number of node retry attempts"),
	)
	if err != nil {
		return nil, err
	}

	graphRuns, err := meter.Int64Counter("loomflow.graph.runs",
		metric.WithDescription("Number of graph runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	graphLatency, err := meter.Float64Histogram("loomflow.graph.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Histogram("loomflow.queue.depth",
		metric.WithDescription("Readiness queue depth at dispatch time"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeRuns:     nodeRuns,
		nodeLatency:  nodeLatency,
		nodeErrors:   nodeErrors,
		nodeRetries:  nodeRetries,
		graphRuns:    graphRuns,
		graphLatency: graphLatency,
		queueDepth:   queueDepth,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeRun records a node execution.
func (m *otelMetrics) RecordNodeRun(ctx context.Context, nodeType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node_type", nodeType),
	}

	m.nodeRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordNodeRetry records a retry attempt.
func (m *otelMetrics) RecordNodeRetry(ctx context.Context, nodeType string) {
	m.nodeRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_type", nodeType),
	))
}

// RecordGraphRun records a graph run outcome.
func (m *otelMetrics) RecordGraphRun(ctx context.Context, outcome string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	m.graphRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.graphLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordQueueDepth records the readiness queue depth.
func (m *otelMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	m.queueDepth.Record(ctx, depth)
}
