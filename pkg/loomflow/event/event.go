// Package event defines the execution events emitted by a workflow run.
//
// Events form a tagged union over graph-level and node-level lifecycle
// transitions. Events for a given node are totally ordered: Started
// precedes exactly one terminal event. The stream as a whole is totally
// ordered as observed by a single consumer.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// Type identifies an event variant.
type Type string

// Graph-level event types.
const (
	GraphRunStarted   Type = "graph_run_started"
	GraphRunSucceeded Type = "graph_run_succeeded"
	GraphRunFailed    Type = "graph_run_failed"
	GraphRunPaused    Type = "graph_run_paused"
	GraphRunStopped   Type = "graph_run_stopped"
)

// Node-level event types.
const (
	NodeRunStarted     Type = "node_run_started"
	NodeRunSucceeded   Type = "node_run_succeeded"
	NodeRunFailed      Type = "node_run_failed"
	NodeRunRetried     Type = "node_run_retried"
	NodeRunStreamChunk Type = "node_run_stream_chunk"
)

// Metadata carries the fields common to every event.
type Metadata struct {
	EventID   string    `json:"id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one execution event. Fields beyond Metadata are populated
// per variant; unused fields stay zero. Events are never mutated after
// emission.
type Event struct {
	Meta Metadata `json:"metadata"`
	Type Type     `json:"type"`

	// Node-level fields.
	NodeID   string        `json:"node_id,omitempty"`
	NodeType string        `json:"node_type,omitempty"`
	Attempt  int           `json:"attempt,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`

	// Outputs of a succeeded node, or the final outputs of the run.
	Outputs map[string]vars.Value `json:"outputs,omitempty"`

	// SelectedHandle is the outgoing edge handle chosen by a branching
	// node ("true"/"false" for if-else, a case ID for classifiers).
	SelectedHandle string `json:"selected_handle,omitempty"`

	// Chunk is the incremental output of a streaming node.
	Chunk string `json:"chunk,omitempty"`

	// Err describes the failure for failed/retried variants.
	Err string `json:"error,omitempty"`

	// Reasons explains a pause (command reason, human-input node IDs).
	Reasons []string `json:"reasons,omitempty"`
}

// IsGraphLevel reports whether the event describes the run as a whole.
func (e Event) IsGraphLevel() bool {
	switch e.Type {
	case GraphRunStarted, GraphRunSucceeded, GraphRunFailed, GraphRunPaused, GraphRunStopped:
		return true
	}
	return false
}

// IsTerminal reports whether the event ends the run or a node's
// lifecycle. Retried and stream-chunk events are not terminal.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case GraphRunSucceeded, GraphRunFailed, GraphRunPaused, GraphRunStopped,
		NodeRunSucceeded, NodeRunFailed:
		return true
	}
	return false
}

func newMeta(runID string) Metadata {
	return Metadata{
		EventID:   uuid.New().String(),
		RunID:     runID,
		Timestamp: time.Now(),
	}
}

// NewGraphRunStarted creates a run-started event.
func NewGraphRunStarted(runID string) Event {
	return Event{Meta: newMeta(runID), Type: GraphRunStarted}
}

// NewGraphRunSucceeded creates a run-succeeded event with final outputs.
func NewGraphRunSucceeded(runID string, outputs map[string]vars.Value, elapsed time.Duration) Event {
	return Event{Meta: newMeta(runID), Type: GraphRunSucceeded, Outputs: outputs, Elapsed: elapsed}
}

// NewGraphRunFailed creates a run-failed event.
func NewGraphRunFailed(runID string, err error, elapsed time.Duration) Event {
	e := Event{Meta: newMeta(runID), Type: GraphRunFailed, Elapsed: elapsed}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// NewGraphRunPaused creates a run-paused event with the pause reasons.
func NewGraphRunPaused(runID string, reasons []string, elapsed time.Duration) Event {
	return Event{Meta: newMeta(runID), Type: GraphRunPaused, Reasons: reasons, Elapsed: elapsed}
}

// NewGraphRunStopped creates the explicit cancellation marker.
func NewGraphRunStopped(runID string, elapsed time.Duration) Event {
	return Event{Meta: newMeta(runID), Type: GraphRunStopped, Elapsed: elapsed}
}

// NewNodeRunStarted creates a node-started event.
func NewNodeRunStarted(runID, nodeID, nodeType string, attempt int) Event {
	return Event{Meta: newMeta(runID), Type: NodeRunStarted, NodeID: nodeID, NodeType: nodeType, Attempt: attempt}
}

// NewNodeRunSucceeded creates a node-succeeded event.
func NewNodeRunSucceeded(runID, nodeID, nodeType string, outputs map[string]vars.Value, selectedHandle string, elapsed time.Duration) Event {
	return Event{
		Meta:           newMeta(runID),
		Type:           NodeRunSucceeded,
		NodeID:         nodeID,
		NodeType:       nodeType,
		Outputs:        outputs,
		SelectedHandle: selectedHandle,
		Elapsed:        elapsed,
	}
}

// NewNodeRunFailed creates a node-failed event.
func NewNodeRunFailed(runID, nodeID, nodeType string, err error, attempt int, elapsed time.Duration) Event {
	e := Event{
		Meta:     newMeta(runID),
		Type:     NodeRunFailed,
		NodeID:   nodeID,
		NodeType: nodeType,
		Attempt:  attempt,
		Elapsed:  elapsed,
	}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// NewNodeRunRetried creates a retry-attempt event.
func NewNodeRunRetried(runID, nodeID, nodeType string, err error, attempt int) Event {
	e := Event{
		Meta:     newMeta(runID),
		Type:     NodeRunRetried,
		NodeID:   nodeID,
		NodeType: nodeType,
		Attempt:  attempt,
	}
	if err != nil {
		e.Err = err.Error()
	}
	return e
}

// NewNodeRunStreamChunk creates an incremental-output event.
func NewNodeRunStreamChunk(runID, nodeID, nodeType, chunk string) Event {
	return Event{Meta: newMeta(runID), Type: NodeRunStreamChunk, NodeID: nodeID, NodeType: nodeType, Chunk: chunk}
}
