package vars

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SystemScope is the reserved node scope for engine-provided variables
// (run ID, user ID, app ID). User nodes cannot claim this scope.
const SystemScope = "sys"

// Selector addresses a value in the pool by producing node and name.
type Selector struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
}

// ParseSelector parses "node_id.var" into a Selector.
// The variable name is the segment after the last dot, so node IDs
// containing dots remain addressable.
func ParseSelector(s string) (Selector, bool) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return Selector{}, false
	}
	return Selector{NodeID: s[:idx], Name: s[idx+1:]}, true
}

// String returns the "node_id.var" form of the selector.
func (s Selector) String() string {
	return s.NodeID + "." + s.Name
}

// Pool is the execution-scoped store of node outputs.
//
// Pool is safe for concurrent use. Lookups for missing selectors report
// absence rather than failing, so callers can branch on it.
type Pool struct {
	mu     sync.RWMutex
	values map[Selector]Value
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{values: make(map[Selector]Value)}
}

// Add upserts a value. Overwriting is allowed: loops rebind their
// scoped variables on every pass.
func (p *Pool) Add(sel Selector, v Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[sel] = v
}

// AddAll upserts every entry of outputs under the given node scope.
func (p *Pool) AddAll(nodeID string, outputs map[string]Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, v := range outputs {
		p.values[Selector{NodeID: nodeID, Name: name}] = v
	}
}

// Get returns the value for a selector and whether it exists.
func (p *Pool) Get(sel Selector) (Value, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[sel]
	return v, ok
}

// Scope returns all values produced under a node ID.
func (p *Pool) Scope(nodeID string) map[string]Value {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Value)
	for sel, v := range p.values {
		if sel.NodeID == nodeID {
			out[sel.Name] = v
		}
	}
	return out
}

// RemoveScope deletes every value under a node ID.
// Used by containers to clear loop-scoped bindings between passes.
func (p *Pool) RemoveScope(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sel := range p.values {
		if sel.NodeID == nodeID {
			delete(p.values, sel)
		}
	}
}

// Len returns the number of stored values.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Selectors returns all selectors in the pool, sorted for determinism.
func (p *Pool) Selectors() []Selector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sels := make([]Selector, 0, len(p.values))
	for sel := range p.values {
		sels = append(sels, sel)
	}
	sort.Slice(sels, func(i, j int) bool {
		if sels[i].NodeID != sels[j].NodeID {
			return sels[i].NodeID < sels[j].NodeID
		}
		return sels[i].Name < sels[j].Name
	})
	return sels
}

// Clone returns an independent copy of the pool.
func (p *Pool) Clone() *Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	clone := NewPool()
	for sel, v := range p.values {
		clone.values[sel] = v
	}
	return clone
}

// poolEntry is the serialized form of one pool value.
type poolEntry struct {
	Selector Selector `json:"selector"`
	Value    Value    `json:"value"`
}

// MarshalJSON serializes the pool as a deterministic entry list.
func (p *Pool) MarshalJSON() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := make([]poolEntry, 0, len(p.values))
	for sel, v := range p.values {
		entries = append(entries, poolEntry{Selector: sel, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Selector.NodeID != entries[j].Selector.NodeID {
			return entries[i].Selector.NodeID < entries[j].Selector.NodeID
		}
		return entries[i].Selector.Name < entries[j].Selector.Name
	})
	return json.Marshal(entries)
}

// UnmarshalJSON restores a pool from its entry list form.
func (p *Pool) UnmarshalJSON(data []byte) error {
	var entries []poolEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode pool entries: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = make(map[Selector]Value, len(entries))
	for _, e := range entries {
		p.values[e.Selector] = e.Value
	}
	return nil
}
