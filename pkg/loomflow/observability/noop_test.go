package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNoopMetrics verifies the disabled recorder accepts every call.
func TestNoopMetrics(t *testing.T) {
	ctx := context.Background()
	m := NoopMetrics{}

	m.RecordNodeRun(ctx, "llm", time.Second, nil)
	m.RecordNodeRun(ctx, "llm", time.Second, errors.New("x"))
	m.RecordNodeRetry(ctx, "http-request")
	m.RecordGraphRun(ctx, "succeeded", time.Minute)
	m.RecordQueueDepth(ctx, 42)
}

// TestNewMetricsRecorder verifies a usable recorder comes back even
// without a configured meter provider.
func TestNewMetricsRecorder(t *testing.T) {
	m := NewMetricsRecorder()
	assert.NotNil(t, m)

	ctx := context.Background()
	m.RecordNodeRun(ctx, "start", time.Millisecond, nil)
	m.RecordGraphRun(ctx, "failed", time.Second)
}

// TestNoopSpanManager verifies context passthrough and nil safety.
func TestNoopSpanManager(t *testing.T) {
	ctx := context.Background()
	sm := NoopSpanManager{}

	runCtx, span := sm.StartRunSpan(ctx, "run-1")
	assert.Equal(t, ctx, runCtx)

	nodeCtx, _ := sm.StartNodeSpan(ctx, "n1", "llm")
	assert.Equal(t, ctx, nodeCtx)

	sm.EndSpanWithError(span, nil)
	sm.EndSpanWithError(span, errors.New("x"))
	sm.AddSpanEvent(ctx, "event")
}

// TestSpanManager verifies the OTel-backed manager's span lifecycle
// against the default (no-op) tracer provider.
func TestSpanManager(t *testing.T) {
	sm := NewSpanManager()
	ctx := context.Background()

	runCtx, runSpan := sm.StartRunSpan(ctx, "run-1")
	assert.NotNil(t, runSpan)

	_, nodeSpan := sm.StartNodeSpan(runCtx, "fetch", "http-request")
	assert.NotNil(t, nodeSpan)

	sm.AddSpanEvent(runCtx, "dispatch")
	sm.EndSpanWithError(nodeSpan, errors.New("failed"))
	sm.EndSpanWithError(runSpan, nil)
	sm.EndSpanWithError(nil, nil)
}
