package loomflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loomflow/loomflow/pkg/loomflow/command"
	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/observability"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// runMode is the orchestrator's scheduling mode. Once the mode leaves
// modeRunning it never returns: the engine stops dispatching and
// drains in-flight work toward the matching terminal event.
type runMode int

const (
	modeRunning runMode = iota
	modePausing
	modeStopping
	modeFailing
)

// Engine executes one compiled graph exactly once.
//
// A single orchestrator goroutine owns all scheduling state; workers
// only execute nodes and hand results back over a channel. That keeps
// the readiness bookkeeping free of locks and gives the event stream a
// total order.
type Engine struct {
	graph *Graph
	rt    *state.RuntimeState
	opts  options
	ran   atomic.Bool
}

// New creates an engine for one run of the graph.
func New(g *Graph, rt *state.RuntimeState, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{graph: g, rt: rt, opts: o}
}

// Run starts the execution and returns the event stream. The stream is
// closed after the terminal event. Run may be called once; subsequent
// calls yield a stream with only a failure event.
func (e *Engine) Run(ctx context.Context) <-chan event.Event {
	out := make(chan event.Event, e.opts.eventBuffer)

	if !e.ran.CompareAndSwap(false, true) {
		go func() {
			runID := e.rt.System().RunID
			out <- event.NewGraphRunFailed(runID, ErrEngineAlreadyRan, 0)
			close(out)
		}()
		return out
	}

	go e.orchestrate(ctx, out)
	return out
}

// orchestrate is the scheduling loop. It seeds the root node, drains
// worker messages, resolves edges (propagating prunes through untaken
// branches), polls the command channel, and finishes with exactly one
// graph-level terminal event.
func (e *Engine) orchestrate(ctx context.Context, out chan<- event.Event) {
	defer close(out)

	runID := e.rt.System().RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runCtx, runSpan := e.opts.spans.StartRunSpan(runCtx, runID)
	observability.LogRunStart(e.opts.logger, runID, e.opts.workers)

	var (
		mode         = modeRunning
		failure      error
		pauseReasons []string
		discarded    int
		finalOutputs = make(map[string]vars.Value)
	)

	// emit pushes an event through the layers and into the stream.
	// A layer error flips the run into failure mode.
	emit := func(ev event.Event) {
		for _, l := range e.opts.layers {
			if err := l.OnEvent(runCtx, ev); err != nil {
				if failure == nil {
					failure = &LayerError{Layer: l.Name(), Event: string(ev.Type), Err: err}
				}
				if mode == modeRunning {
					mode = modeFailing
				}
			}
		}
		out <- ev
	}

	finish := func() {
		elapsed := e.rt.Elapsed()
		var outcome string
		switch {
		case mode == modeFailing:
			outcome = "failed"
			observability.LogRunError(e.opts.logger, runID, failure, float64(elapsed.Milliseconds()), "")
			emit(event.NewGraphRunFailed(runID, failure, elapsed))
		case mode == modePausing:
			outcome = "paused"
			observability.LogRunPaused(e.opts.logger, runID, pauseReasons)
			emit(event.NewGraphRunPaused(runID, pauseReasons, elapsed))
		case mode == modeStopping:
			outcome = "stopped"
			observability.LogRunStopped(e.opts.logger, runID, discarded)
			emit(event.NewGraphRunStopped(runID, elapsed))
		default:
			outcome = "succeeded"
			observability.LogRunComplete(e.opts.logger, runID, float64(elapsed.Milliseconds()), e.rt.TotalSteps())
			emit(event.NewGraphRunSucceeded(runID, finalOutputs, elapsed))
		}
		for _, l := range e.opts.layers {
			l.OnGraphEnd(runCtx, failure)
		}
		e.opts.metrics.RecordGraphRun(runCtx, outcome, elapsed)
		e.opts.spans.EndSpanWithError(runSpan, failure)
	}

	for _, l := range e.opts.layers {
		l.OnGraphStart(runCtx, runID)
	}
	emit(event.NewGraphRunStarted(runID))

	if e.graph == nil || e.graph.Len() == 0 {
		failure = &GraphStructureError{Err: ErrEmptyGraph}
		mode = modeFailing
		finish()
		return
	}

	msgs := make(chan workerMsg, e.opts.workers*2+8)
	wp, err := newWorkerPool(runID, e.rt, &e.opts, msgs)
	if err != nil {
		failure = err
		mode = modeFailing
		finish()
		return
	}
	defer wp.Release()

	// pending counts unresolved incoming edges per node; a node becomes
	// schedulable when the count hits zero, and runs only if at least
	// one resolved edge was actually taken.
	pending := make(map[string]int, e.graph.Len())
	taken := make(map[string]bool, e.graph.Len())
	for _, id := range e.graph.NodeIDs() {
		pending[id] = len(e.graph.IncomingEdges(id))
	}

	ready := []string{e.graph.RootID()}
	inflight := 0

	// resolveEdges settles edge outcomes, propagating prunes so a node
	// whose every live predecessor went down another branch is skipped
	// (with no events) and its own successors settle in turn.
	type resolution struct {
		target string
		taken  bool
	}
	resolveEdges := func(initial []resolution) {
		stack := initial
		for len(stack) > 0 {
			r := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			pending[r.target]--
			if r.taken {
				taken[r.target] = true
			}
			if pending[r.target] != 0 {
				continue
			}
			if taken[r.target] {
				ready = append(ready, r.target)
				continue
			}
			for _, oe := range e.graph.OutgoingEdges(r.target) {
				stack = append(stack, resolution{target: oe.Target, taken: false})
			}
		}
	}

	settleSuccessors := func(nodeID, selectedHandle string) {
		var rs []resolution
		for _, edge := range e.graph.OutgoingEdges(nodeID) {
			rs = append(rs, resolution{target: edge.Target, taken: edge.taken(selectedHandle)})
		}
		resolveEdges(rs)
	}

	dispatch := func() {
		for mode == modeRunning && len(ready) > 0 && inflight < e.opts.workers {
			id := ready[0]
			ready = ready[1:]
			// Nodes completed before a pause boundary keep their pooled
			// outputs; a resumed run routes past them with the handle
			// they selected then instead of repeating their side effects.
			if handle, ok := e.rt.CompletedHandle(id); ok {
				if len(e.graph.OutgoingEdges(id)) == 0 {
					for name, v := range e.rt.Pool().Scope(id) {
						finalOutputs[name] = v
					}
				}
				settleSuccessors(id, handle)
				continue
			}
			e.opts.metrics.RecordQueueDepth(runCtx, int64(len(ready)))
			if err := wp.Submit(runCtx, e.graph.Node(id), e.graph.Config(id)); err != nil {
				failure = err
				mode = modeFailing
				return
			}
			inflight++
		}
	}

	pollCommands := func() {
		if e.opts.commands == nil || mode != modeRunning {
			return
		}
		cmds, err := e.opts.commands.Fetch()
		if err != nil {
			// Fail open: a lost command is re-issuable, a spuriously
			// stopped run is not.
			observability.LogCommandError(e.opts.logger, runID, err)
			return
		}
		for _, c := range cmds {
			switch c.Kind {
			case command.KindStop:
				mode = modeStopping
				discarded = len(ready)
				ready = nil
				cancelRun()
			case command.KindPause:
				mode = modePausing
				reason := c.Reason
				if reason == "" {
					reason = "command"
				}
				pauseReasons = append(pauseReasons, reason)
			}
		}
	}

	handleCompletion := func(c *completion) {
		inflight--
		cfg := e.graph.Config(c.nodeID)
		nodeType := string(cfg.Type)

		if c.err != nil {
			emit(event.NewNodeRunFailed(runID, c.nodeID, nodeType, c.err, c.attempt, c.elapsed))
			// Stop and failure drains cancel in-flight work, so a
			// failure arriving in those modes is the cancellation
			// itself and doesn't change the outcome.
			if mode == modeStopping || mode == modeFailing {
				return
			}
			if cfg.ContinueOnError {
				e.rt.Pool().Add(
					vars.Selector{NodeID: c.nodeID, Name: "error"},
					vars.StringValue(c.err.Error()),
				)
				e.rt.MarkCompleted(c.nodeID, "error")
				if mode == modeRunning {
					settleSuccessors(c.nodeID, "error")
				}
				return
			}
			// A pause drain does not cancel in-flight work: a failure
			// arriving here is genuine and overrides the pause.
			failure = c.err
			mode = modeFailing
			ready = nil
			return
		}

		if c.res.Status == StatusWaiting {
			emit(event.NewNodeRunSucceeded(runID, c.nodeID, nodeType, c.res.Outputs, "", c.elapsed))
			reason := c.res.WaitReason
			if reason == "" {
				reason = "waiting:" + c.nodeID
			}
			pauseReasons = append(pauseReasons, reason)
			if mode == modeRunning {
				mode = modePausing
			}
			return
		}

		emit(event.NewNodeRunSucceeded(runID, c.nodeID, nodeType, c.res.Outputs, c.res.SelectedHandle, c.elapsed))
		e.rt.MarkCompleted(c.nodeID, c.res.SelectedHandle)
		if len(e.graph.OutgoingEdges(c.nodeID)) == 0 {
			for name, v := range c.res.Outputs {
				finalOutputs[name] = v
			}
		}
		if mode == modeRunning {
			settleSuccessors(c.nodeID, c.res.SelectedHandle)
		}
	}

	poll := time.NewTicker(e.opts.pollInterval)
	defer poll.Stop()

	var timeoutCh <-chan time.Time
	if e.opts.graphTimeout > 0 {
		timer := time.NewTimer(e.opts.graphTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	done := ctx.Done()
	for {
		dispatch()
		if inflight == 0 && (mode != modeRunning || len(ready) == 0) {
			break
		}

		select {
		case m := <-msgs:
			if m.ev != nil {
				emit(*m.ev)
			} else {
				handleCompletion(m.done)
			}
		case <-poll.C:
			pollCommands()
		case <-timeoutCh:
			// Expired run budget behaves like an injected stop command.
			if mode == modeRunning {
				mode = modeStopping
				discarded = len(ready)
				ready = nil
				cancelRun()
			}
			timeoutCh = nil
		case <-done:
			if mode == modeRunning {
				mode = modeStopping
				discarded = len(ready)
				ready = nil
				cancelRun()
			}
			done = nil
		}
	}

	finish()
}
