// Package state provides the serializable runtime state of one
// workflow execution: the variable pool, elapsed-time tracking, and
// step/token counters.
//
// RuntimeState is the single unit persisted to support pause/resume.
// The serialized payload carries a schema version; unknown versions are
// rejected rather than silently mis-parsed.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// Version is the current serialization format version.
// Increment when making breaking changes to the payload structure.
const Version = "1"

// Sentinel errors for state serialization.
var (
	// ErrVersionMismatch indicates a payload with an unsupported version.
	ErrVersionMismatch = errors.New("runtime state version mismatch")

	// ErrEmptyPayload indicates Loads was called with no data.
	ErrEmptyPayload = errors.New("empty runtime state payload")
)

// SystemVars are the engine-provided variables of one execution.
type SystemVars struct {
	RunID  string `json:"run_id"`
	UserID string `json:"user_id,omitempty"`
	AppID  string `json:"app_id,omitempty"`
}

// counters are shared between a state and its forks so that steps and
// tokens accumulated inside parallel container passes count toward the
// run totals.
type counters struct {
	mu     sync.Mutex
	steps  int
	tokens int
}

// RuntimeState is the mutable execution state of a single run.
// Exactly one root RuntimeState exists per execution; containers may
// derive forks via Fork for isolated parallel passes. It is safe for
// concurrent use by the orchestrator and worker goroutines.
type RuntimeState struct {
	pool      *vars.Pool
	system    SystemVars
	startedAt time.Time
	elapsed   time.Duration // accumulated across pause boundaries
	c         *counters

	mu        sync.Mutex
	completed map[string]string // node ID -> selected handle
}

// New creates a fresh runtime state for a run.
// System variables are published into the pool under the "sys" scope.
func New(system SystemVars) *RuntimeState {
	rs := &RuntimeState{
		pool:      vars.NewPool(),
		system:    system,
		startedAt: time.Now(),
		c:         &counters{},
		completed: make(map[string]string),
	}
	rs.publishSystemVars()
	return rs
}

func (rs *RuntimeState) publishSystemVars() {
	rs.pool.Add(vars.Selector{NodeID: vars.SystemScope, Name: "run_id"}, vars.StringValue(rs.system.RunID))
	if rs.system.UserID != "" {
		rs.pool.Add(vars.Selector{NodeID: vars.SystemScope, Name: "user_id"}, vars.StringValue(rs.system.UserID))
	}
	if rs.system.AppID != "" {
		rs.pool.Add(vars.Selector{NodeID: vars.SystemScope, Name: "app_id"}, vars.StringValue(rs.system.AppID))
	}
}

// Fork derives a state with an independent copy of the pool but shared
// step/token counters. Containers use forks to run parallel passes
// without racing on pool scopes. The completion ledger starts empty:
// each sub-run executes its own nodes.
func (rs *RuntimeState) Fork() *RuntimeState {
	return &RuntimeState{
		pool:      rs.pool.Clone(),
		system:    rs.system,
		startedAt: rs.startedAt,
		elapsed:   rs.elapsed,
		c:         rs.c,
		completed: make(map[string]string),
	}
}

// Nested derives a state for a container sub-run that shares the pool
// and counters but tracks node completion independently, so repeated
// passes over the same sub-graph re-execute their nodes.
func (rs *RuntimeState) Nested() *RuntimeState {
	return &RuntimeState{
		pool:      rs.pool,
		system:    rs.system,
		startedAt: rs.startedAt,
		elapsed:   rs.elapsed,
		c:         rs.c,
		completed: make(map[string]string),
	}
}

// MarkCompleted records that a node reached a terminal result and the
// handle it selected. A resumed run skips completed nodes instead of
// repeating their side effects.
func (rs *RuntimeState) MarkCompleted(nodeID, selectedHandle string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.completed[nodeID] = selectedHandle
}

// CompletedHandle reports whether the node completed in an earlier run
// segment, and the handle it selected then.
func (rs *RuntimeState) CompletedHandle(nodeID string) (string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	h, ok := rs.completed[nodeID]
	return h, ok
}

// Pool returns the variable pool.
func (rs *RuntimeState) Pool() *vars.Pool {
	return rs.pool
}

// System returns the system variables.
func (rs *RuntimeState) System() SystemVars {
	return rs.system
}

// Elapsed returns the total elapsed execution time, including time
// accumulated before a pause boundary.
func (rs *RuntimeState) Elapsed() time.Duration {
	return rs.elapsed + time.Since(rs.startedAt)
}

// AddSteps increments the total step counter.
func (rs *RuntimeState) AddSteps(n int) {
	rs.c.mu.Lock()
	defer rs.c.mu.Unlock()
	rs.c.steps += n
}

// TotalSteps returns the number of node executions so far.
func (rs *RuntimeState) TotalSteps() int {
	rs.c.mu.Lock()
	defer rs.c.mu.Unlock()
	return rs.c.steps
}

// AddTokens increments the total token counter.
func (rs *RuntimeState) AddTokens(n int) {
	rs.c.mu.Lock()
	defer rs.c.mu.Unlock()
	rs.c.tokens += n
}

// TotalTokens returns the accumulated LLM token usage.
func (rs *RuntimeState) TotalTokens() int {
	rs.c.mu.Lock()
	defer rs.c.mu.Unlock()
	return rs.c.tokens
}

// payload is the serialized form of a RuntimeState.
type payload struct {
	Version     string            `json:"version"`
	System      SystemVars        `json:"system"`
	Pool        *vars.Pool        `json:"pool"`
	Completed   map[string]string `json:"completed,omitempty"`
	ElapsedNs   time.Duration     `json:"elapsed_ns"`
	TotalSteps  int               `json:"total_steps"`
	TotalTokens int               `json:"total_tokens"`
	DumpedAt    time.Time         `json:"dumped_at"`
}

// Dumps serializes the state to a versioned payload.
// Serialization is a pure function of the state: no node is re-run and
// no live handles are included.
func (rs *RuntimeState) Dumps() ([]byte, error) {
	rs.c.mu.Lock()
	steps, tokens := rs.c.steps, rs.c.tokens
	rs.c.mu.Unlock()

	rs.mu.Lock()
	completed := make(map[string]string, len(rs.completed))
	for id, h := range rs.completed {
		completed[id] = h
	}
	rs.mu.Unlock()

	p := payload{
		Version:     Version,
		System:      rs.system,
		Pool:        rs.pool,
		Completed:   completed,
		ElapsedNs:   rs.Elapsed(),
		TotalSteps:  steps,
		TotalTokens: tokens,
		DumpedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("serialize runtime state: %w", err)
	}
	return data, nil
}

// Loads reconstructs a RuntimeState from a serialized payload.
// Payloads with an unknown version are rejected with ErrVersionMismatch.
func Loads(data []byte) (*RuntimeState, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	// Peek at the version before decoding the full payload.
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode runtime state: %w", err)
	}
	if probe.Version != Version {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrVersionMismatch, probe.Version, Version)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode runtime state: %w", err)
	}
	if p.Pool == nil {
		p.Pool = vars.NewPool()
	}
	if p.Completed == nil {
		p.Completed = make(map[string]string)
	}

	return &RuntimeState{
		pool:      p.Pool,
		system:    p.System,
		startedAt: time.Now(),
		elapsed:   p.ElapsedNs,
		c:         &counters{steps: p.TotalSteps, tokens: p.TotalTokens},
		completed: p.Completed,
	}, nil
}
