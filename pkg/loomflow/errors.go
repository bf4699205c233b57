package loomflow

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Sentinel errors for graph construction and execution.
var (
	// ErrEmptyGraph indicates a graph with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrDuplicateNodeID indicates two node configs share an ID.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrNodeNotFound indicates an edge references a node that doesn't exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoRootNode indicates no entry node could be determined.
	ErrNoRootNode = errors.New("no root node")

	// ErrMultipleRoots indicates more than one candidate entry node.
	ErrMultipleRoots = errors.New("multiple root nodes")

	// ErrCycleDetected indicates the graph contains a cycle.
	// Repetition is expressed through loop containers, not back-edges.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrUnknownNodeType indicates the factory has no builder for a type.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrReservedScope indicates a node claims the "sys" variable scope.
	ErrReservedScope = errors.New("reserved node id scope")

	// ErrEngineAlreadyRan indicates Run was called twice on one engine.
	ErrEngineAlreadyRan = errors.New("engine already ran")

	// ErrNodeTimeout indicates a node exceeded its execution timeout.
	ErrNodeTimeout = errors.New("node execution timeout")
)

// GraphStructureError reports why a graph definition could not be
// materialized. It wraps one or more sentinel errors (joined), so
// callers can test with errors.Is.
type GraphStructureError struct {
	Err error
}

func (e *GraphStructureError) Error() string {
	return fmt.Sprintf("graph structure: %v", e.Err)
}

func (e *GraphStructureError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a node execution failure.
type ErrorKind string

// Node execution error kinds.
const (
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindExternal      ErrorKind = "external"
	ErrKindInvalidOutput ErrorKind = "invalid_output"
	ErrKindPanic         ErrorKind = "panic"
	ErrKindInternal      ErrorKind = "internal"
)

// NodeExecutionError reports a node failure with its classification.
// The engine wraps every error surfaced from a node Run in one of
// these before emitting it.
type NodeExecutionError struct {
	NodeID   string
	NodeType NodeType
	Kind     ErrorKind
	Attempt  int
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s) failed [%s, attempt %d]: %v",
		e.NodeID, e.NodeType, e.Kind, e.Attempt, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// newNodeError wraps err for a node, classifying it.
func newNodeError(nodeID string, nodeType NodeType, kind ErrorKind, attempt int, err error) *NodeExecutionError {
	return &NodeExecutionError{NodeID: nodeID, NodeType: nodeType, Kind: kind, Attempt: attempt, Err: err}
}

// PanicError captures a panic from a node's Run so one misbehaving
// node cannot take down the engine.
type PanicError struct {
	NodeID string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// newPanicError captures the current stack. Call only from a recover.
func newPanicError(nodeID string, value any) *PanicError {
	return &PanicError{NodeID: nodeID, Value: value, Stack: debug.Stack()}
}

// LayerError reports an observer layer failure. Layer errors are
// fatal to the run: a half-observed run is worse than a failed one.
type LayerError struct {
	Layer string
	Event string
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %s failed on %s: %v", e.Layer, e.Event, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a node exceeding its per-node timeout budget.
type TimeoutError struct {
	NodeID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %s exceeded timeout of %s", e.NodeID, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrNodeTimeout
}
