package loomflow

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/observability"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
)

// completion is the worker-to-orchestrator hand-off for one finished
// node execution. Pool writes for the node happen before the
// completion is sent, so the orchestrator (and everything it schedules
// afterwards) observes them.
type completion struct {
	nodeID  string
	node    Node
	res     *Result
	err     error
	attempt int
	elapsed time.Duration
}

// workerMsg is one message on the orchestrator's inbox: either an
// event to forward into the stream or a node completion. A worker's
// messages arrive in send order, so a node's Started always precedes
// its completion.
type workerMsg struct {
	ev   *event.Event
	done *completion
}

// workerPool executes dispatched nodes on a bounded goroutine pool.
type workerPool struct {
	pool  *ants.Pool
	msgs  chan workerMsg
	runID string
	rt    *state.RuntimeState
	opts  *options
}

func newWorkerPool(runID string, rt *state.RuntimeState, opts *options, msgs chan workerMsg) (*workerPool, error) {
	p, err := ants.NewPool(opts.workers)
	if err != nil {
		return nil, err
	}
	return &workerPool{pool: p, msgs: msgs, runID: runID, rt: rt, opts: opts}, nil
}

func (wp *workerPool) Release() {
	wp.pool.Release()
}

// Running returns the number of in-flight executions.
func (wp *workerPool) Running() int {
	return wp.pool.Running()
}

// Submit schedules a node execution. The orchestrator only submits
// when capacity is available, so this does not block.
func (wp *workerPool) Submit(ctx context.Context, n Node, cfg NodeConfig) error {
	return wp.pool.Submit(func() {
		wp.execute(ctx, n, cfg)
	})
}

// execute runs one node through its retry budget and hands the result
// back to the orchestrator.
func (wp *workerPool) execute(ctx context.Context, n Node, cfg NodeConfig) {
	nodeID, nodeType := n.ID(), string(n.Type())
	logger := observability.EnrichLogger(wp.opts.logger, wp.runID, nodeID, 1)

	nodeCtx, span := wp.opts.spans.StartNodeSpan(ctx, nodeID, nodeType)

	rc := &RunContext{
		State:  wp.rt,
		Logger: logger,
		EmitChunk: func(chunk string) {
			wp.send(workerMsg{ev: eventPtr(event.NewNodeRunStreamChunk(wp.runID, nodeID, nodeType, chunk))})
		},
		EmitEvent: func(ev event.Event) {
			wp.send(workerMsg{ev: &ev})
		},
	}

	start := time.Now()
	wp.send(workerMsg{ev: eventPtr(event.NewNodeRunStarted(wp.runID, nodeID, nodeType, 1))})
	observability.LogNodeStart(logger, nodeID, 1)

	maxAttempts := cfg.Retry.attempts()
	var (
		res     *Result
		runErr  error
		attempt int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		res, runErr = wp.runOnce(nodeCtx, n, cfg, rc)
		if runErr == nil {
			break
		}
		if attempt == maxAttempts {
			break
		}
		// Don't burn retry budget against a cancelled run.
		if ctx.Err() != nil {
			break
		}

		backoff := cfg.Retry.delay(attempt + 1)
		observability.LogNodeRetry(logger, nodeID, attempt+1, runErr, backoff)
		wp.opts.metrics.RecordNodeRetry(nodeCtx, nodeType)
		wp.send(workerMsg{ev: eventPtr(event.NewNodeRunRetried(wp.runID, nodeID, nodeType, runErr, attempt+1))})

		if !sleepCtx(ctx, backoff) {
			break
		}
	}
	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	elapsed := time.Since(start)

	wp.opts.metrics.RecordNodeRun(nodeCtx, nodeType, elapsed, runErr)
	wp.opts.spans.EndSpanWithError(span, runErr)

	if runErr != nil {
		observability.LogNodeError(logger, nodeID, runErr)
		wp.send(workerMsg{done: &completion{
			nodeID: nodeID, node: n, err: runErr, attempt: attempt, elapsed: elapsed,
		}})
		return
	}

	if res.Status == StatusSucceeded {
		// Publish outputs before the completion crosses the channel so
		// every node scheduled afterwards can read them.
		wp.rt.Pool().AddAll(nodeID, res.Outputs)
		wp.rt.AddSteps(1)
	}
	observability.LogNodeComplete(logger, nodeID, float64(elapsed.Milliseconds()))
	wp.send(workerMsg{done: &completion{
		nodeID: nodeID, node: n, res: res, attempt: attempt, elapsed: elapsed,
	}})
}

// runOnce executes a single attempt, applying the per-node timeout and
// containing panics. The returned error is always a classified
// NodeExecutionError.
func (wp *workerPool) runOnce(ctx context.Context, n Node, cfg NodeConfig, rc *RunContext) (res *Result, err error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = newNodeError(n.ID(), n.Type(), ErrKindPanic, 0, newPanicError(n.ID(), r))
		}
	}()

	res, err = n.Run(attemptCtx, rc)

	if err == nil && res != nil && res.Status == StatusFailed {
		err = res.Error
		if err == nil {
			err = errors.New("node reported failure without error")
		}
	}
	if err != nil {
		kind := ErrKindExternal
		switch {
		case cfg.Timeout > 0 && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			kind = ErrKindTimeout
			err = &TimeoutError{NodeID: n.ID(), Timeout: cfg.Timeout}
		case errors.Is(err, context.Canceled):
			kind = ErrKindInternal
		}
		var nerr *NodeExecutionError
		if !errors.As(err, &nerr) {
			err = newNodeError(n.ID(), n.Type(), kind, 0, err)
		}
		return nil, err
	}
	if res == nil {
		return nil, newNodeError(n.ID(), n.Type(), ErrKindInvalidOutput, 0,
			errors.New("node returned nil result"))
	}
	return res, nil
}

func (wp *workerPool) send(m workerMsg) {
	wp.msgs <- m
}

// sleepCtx waits for d unless ctx is done first. Reports whether the
// full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func eventPtr(ev event.Event) *event.Event {
	return &ev
}
