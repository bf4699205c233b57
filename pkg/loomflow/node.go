package loomflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// NodeType identifies the behavior class of a node.
type NodeType string

// Built-in node types.
const (
	NodeTypeStart             NodeType = "start"
	NodeTypeEnd               NodeType = "end"
	NodeTypeAnswer            NodeType = "answer"
	NodeTypeLLM               NodeType = "llm"
	NodeTypeIfElse            NodeType = "if-else"
	NodeTypeCode              NodeType = "code"
	NodeTypeTemplateTransform NodeType = "template-transform"
	NodeTypeHTTPRequest       NodeType = "http-request"
	NodeTypeCommand           NodeType = "command"
	NodeTypeHumanInput        NodeType = "human-input"
	NodeTypeIteration         NodeType = "iteration"
	NodeTypeLoop              NodeType = "loop"
)

// ResultStatus is the outcome a node reports for one execution.
type ResultStatus string

const (
	// StatusSucceeded indicates the node produced its outputs.
	StatusSucceeded ResultStatus = "succeeded"

	// StatusFailed indicates the node failed; Error carries the cause.
	StatusFailed ResultStatus = "failed"

	// StatusWaiting indicates the node needs external input before the
	// run can make progress. The engine pauses the run; on resume the
	// node runs again with the input present in the pool.
	StatusWaiting ResultStatus = "waiting"
)

// Result is what a node's Run returns on completion.
type Result struct {
	Status ResultStatus

	// Outputs are published into the variable pool under the node's ID.
	Outputs map[string]vars.Value

	// SelectedHandle names the outgoing edge handle a branching node
	// chose; only edges tagged with it are taken. Empty means every
	// untagged outgoing edge is taken (fan-out).
	SelectedHandle string

	// WaitReason explains a StatusWaiting result.
	WaitReason string

	// Error carries the failure for StatusFailed.
	Error error
}

// Succeeded builds a successful result with outputs.
func Succeeded(outputs map[string]vars.Value) *Result {
	return &Result{Status: StatusSucceeded, Outputs: outputs}
}

// Branched builds a successful result that selected an edge handle.
func Branched(handle string, outputs map[string]vars.Value) *Result {
	return &Result{Status: StatusSucceeded, Outputs: outputs, SelectedHandle: handle}
}

// Failed builds a failed result.
func Failed(err error) *Result {
	return &Result{Status: StatusFailed, Error: err}
}

// Waiting builds a result that asks the engine to pause the run.
func Waiting(reason string) *Result {
	return &Result{Status: StatusWaiting, WaitReason: reason}
}

// RunContext carries the execution-scoped collaborators a node needs.
// Nodes read inputs from the pool and return outputs in the Result;
// they never write the pool directly.
type RunContext struct {
	// State is the run's shared runtime state.
	State *state.RuntimeState

	// Logger is pre-enriched with run and node identity. May be nil.
	Logger *slog.Logger

	// EmitChunk publishes an incremental output fragment as a
	// stream-chunk event. Safe to call from the node's goroutine only.
	EmitChunk func(chunk string)

	// EmitEvent forwards an already-built event into the run's stream.
	// Containers use it to surface inner-node lifecycle events.
	EmitEvent func(ev event.Event)
}

// Pool is shorthand for the run's variable pool.
func (rc *RunContext) Pool() *vars.Pool {
	return rc.State.Pool()
}

// Node is one executable unit of a workflow graph.
//
// Run must be a function of the pool and the node's own configuration:
// it must not retain references to the RunContext after returning, and
// it must honor ctx cancellation on blocking work.
type Node interface {
	// ID returns the node's unique identifier within its graph.
	ID() string

	// Type returns the node's behavior class.
	Type() NodeType

	// Title returns the human-readable display name.
	Title() string

	// Run executes the node. A nil error with a StatusFailed result and
	// a non-nil error are equivalent; the engine normalizes both.
	Run(ctx context.Context, rc *RunContext) (*Result, error)
}

// BackoffKind selects the retry delay progression.
type BackoffKind string

const (
	// BackoffFixed waits the same interval between attempts.
	BackoffFixed BackoffKind = "fixed"

	// BackoffExponential doubles the interval each attempt, capped at
	// MaxInterval when set.
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy controls re-execution of a failed node.
// The zero value means no retries.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget including the first run.
	// Values below 1 are treated as 1.
	MaxAttempts int `json:"max_attempts"`

	// Interval is the base delay between attempts.
	Interval time.Duration `json:"interval"`

	// Backoff selects the delay progression. Empty means fixed.
	Backoff BackoffKind `json:"backoff,omitempty"`

	// MaxInterval caps the exponential delay. Zero means uncapped.
	MaxInterval time.Duration `json:"max_interval,omitempty"`
}

// attempts normalizes the attempt budget.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delay returns the wait before the given retry attempt (attempt >= 2).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Interval <= 0 {
		return 0
	}
	if p.Backoff != BackoffExponential {
		return p.Interval
	}
	d := p.Interval
	for i := 2; i < attempt; i++ {
		d *= 2
		if p.MaxInterval > 0 && d >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

// NodeConfig is the declarative description of one node.
type NodeConfig struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Title string   `json:"title,omitempty"`

	// Config holds the type-specific payload (prompt templates,
	// conditions, URLs). Interpreted by the node builder.
	Config map[string]any `json:"config,omitempty"`

	// Retry controls re-execution on failure.
	Retry RetryPolicy `json:"retry,omitempty"`

	// Timeout bounds one attempt's wall time. Zero means unbounded.
	Timeout time.Duration `json:"timeout,omitempty"`

	// ContinueOnError routes failure to the "error" handle (if wired)
	// instead of failing the run.
	ContinueOnError bool `json:"continue_on_error,omitempty"`

	// Nodes and Edges define the nested sub-graph of a container node
	// (iteration, loop). Empty for leaf nodes.
	Nodes []NodeConfig `json:"nodes,omitempty"`
	Edges []EdgeConfig `json:"edges,omitempty"`
}

// EdgeConfig is the declarative description of one edge.
type EdgeConfig struct {
	Source string `json:"source"`
	Target string `json:"target"`

	// SourceHandle matches the SelectedHandle of a branching source.
	// Empty marks the default path, taken when the source selects no
	// handle.
	SourceHandle string `json:"source_handle,omitempty"`
}

// Factory builds a Node from its config. Container node builders
// recurse through the same factory for their nested sub-graphs.
type Factory func(cfg NodeConfig) (Node, error)
