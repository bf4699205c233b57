// Package store provides the persistence sinks the engine's layers
// write to: execution records, per-node execution records, and the
// serialized runtime state saved at a pause boundary.
//
// The engine is agnostic to what backs a store. In-memory and SQLite
// implementations ship with the package; implementations must be safe
// for concurrent use.
package store

import (
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// ExecutionRecord is the persisted outcome of one graph run.
type ExecutionRecord struct {
	RunID       string        `json:"run_id"`
	AppID       string        `json:"app_id,omitempty"`
	UserID      string        `json:"user_id,omitempty"`
	Status      string        `json:"status"` // succeeded, failed, paused, stopped
	Outputs     []byte        `json:"outputs,omitempty"`
	Error       string        `json:"error,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	TotalSteps  int           `json:"total_steps"`
	TotalTokens int           `json:"total_tokens"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// NodeExecutionRecord is the persisted outcome of one node execution.
type NodeExecutionRecord struct {
	RunID      string        `json:"run_id"`
	NodeID     string        `json:"node_id"`
	NodeType   string        `json:"node_type"`
	Status     string        `json:"status"` // succeeded, failed
	Attempt    int           `json:"attempt"`
	Outputs    []byte        `json:"outputs,omitempty"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Sequence   int           `json:"sequence"`
	FinishedAt time.Time     `json:"finished_at"`
}

// ExecutionStore persists graph-level execution records.
type ExecutionStore interface {
	// SaveExecution stores a record, overwriting any record for the run.
	SaveExecution(rec ExecutionRecord) error

	// GetExecution retrieves the record for a run.
	// Returns ErrNotFound if no record exists.
	GetExecution(runID string) (ExecutionRecord, error)
}

// NodeExecutionStore persists per-node execution records.
type NodeExecutionStore interface {
	// SaveNodeExecution appends a node execution record.
	SaveNodeExecution(rec NodeExecutionRecord) error

	// ListNodeExecutions returns a run's records ordered by sequence.
	// Returns an empty slice (not an error) if the run has none.
	ListNodeExecutions(runID string) ([]NodeExecutionRecord, error)
}

// StateStore persists serialized runtime state for pause/resume.
type StateStore interface {
	// SaveState stores the serialized state for a run, overwriting any
	// previous payload.
	SaveState(runID string, payload []byte) error

	// LoadState retrieves the serialized state for a run.
	// Returns ErrNotFound if no state was saved.
	LoadState(runID string) ([]byte, error)

	// DeleteState removes the saved state for a run.
	// Returns nil if no state exists.
	DeleteState(runID string) error
}

// Store combines all persistence sinks plus resource management.
type Store interface {
	ExecutionStore
	NodeExecutionStore
	StateStore

	// Close releases any resources (connections, files).
	Close() error
}
