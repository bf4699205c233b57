package store

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu         sync.RWMutex
	executions map[string]ExecutionRecord
	nodeRuns   map[string][]NodeExecutionRecord
	states     map[string][]byte
	closed     bool
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]ExecutionRecord),
		nodeRuns:   make(map[string][]NodeExecutionRecord),
		states:     make(map[string][]byte),
	}
}

// SaveExecution implements ExecutionStore.
func (m *MemoryStore) SaveExecution(rec ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.executions[rec.RunID] = rec
	return nil
}

// GetExecution implements ExecutionStore.
func (m *MemoryStore) GetExecution(runID string) (ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ExecutionRecord{}, ErrStoreClosed
	}
	rec, ok := m.executions[runID]
	if !ok {
		return ExecutionRecord{}, ErrNotFound
	}
	return rec, nil
}

// SaveNodeExecution implements NodeExecutionStore.
func (m *MemoryStore) SaveNodeExecution(rec NodeExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.nodeRuns[rec.RunID] = append(m.nodeRuns[rec.RunID], rec)
	return nil
}

// ListNodeExecutions implements NodeExecutionStore.
func (m *MemoryStore) ListNodeExecutions(runID string) ([]NodeExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	recs := make([]NodeExecutionRecord, len(m.nodeRuns[runID]))
	copy(recs, m.nodeRuns[runID])
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Sequence < recs[j].Sequence
	})
	return recs, nil
}

// SaveState implements StateStore.
func (m *MemoryStore) SaveState(runID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.states[runID] = stored
	return nil
}

// LoadState implements StateStore.
func (m *MemoryStore) LoadState(runID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	payload, ok := m.states[runID]
	if !ok {
		return nil, ErrNotFound
	}
	result := make([]byte, len(payload))
	copy(result, payload)
	return result, nil
}

// DeleteState implements StateStore.
func (m *MemoryStore) DeleteState(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.states, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.executions = nil
	m.nodeRuns = nil
	m.states = nil
	return nil
}
