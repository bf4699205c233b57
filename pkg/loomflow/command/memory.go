package command

import (
	"errors"
	"sync"
)

// ErrChannelClosed indicates a send or fetch on a closed channel.
var ErrChannelClosed = errors.New("command channel closed")

// MemoryChannel is an in-process command channel.
// Suitable when the API layer and the engine share a process.
type MemoryChannel struct {
	mu      sync.Mutex
	pending []Command
	closed  bool
}

// NewMemoryChannel creates an in-process command channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

// Send implements Channel.
func (m *MemoryChannel) Send(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrChannelClosed
	}
	m.pending = append(m.pending, cmd)
	return nil
}

// Fetch implements Channel.
func (m *MemoryChannel) Fetch() ([]Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrChannelClosed
	}
	cmds := m.pending
	m.pending = nil
	return cmds, nil
}

// Close implements Channel.
func (m *MemoryChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.pending = nil
	return nil
}
