// Package command provides the out-of-band control channel through
// which external actors (API handlers) request that a running workflow
// stop or pause.
//
// The engine polls the channel between scheduling cycles. Delivery is
// at-least-once: the engine treats a repeated stop or pause as
// idempotent. Transport failures on fetch are fail-open: losing a
// command is recoverable by re-issuing it, spuriously stopping a
// healthy run is not.
package command

import "encoding/json"

// Kind identifies a command variant.
type Kind string

// Command kinds.
const (
	KindStop  Kind = "stop"
	KindPause Kind = "pause"
)

// Command is a control request for a running workflow.
type Command struct {
	Kind Kind `json:"kind"`

	// Reason explains a pause request (e.g. "human_input", "operator").
	Reason string `json:"reason,omitempty"`
}

// Stop creates a stop command.
func Stop() Command {
	return Command{Kind: KindStop}
}

// Pause creates a pause command with a reason.
func Pause(reason string) Command {
	return Command{Kind: KindPause, Reason: reason}
}

// Marshal serializes a command for transport.
func (c Command) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a command from transport form.
func Unmarshal(data []byte) (Command, error) {
	var c Command
	err := json.Unmarshal(data, &c)
	return c, err
}

// Channel delivers commands from external actors to the engine.
// Implementations must be safe for concurrent use: Send may be called
// from any goroutine while the engine polls Fetch.
type Channel interface {
	// Send enqueues a command without blocking on the engine.
	Send(cmd Command) error

	// Fetch returns and clears all commands enqueued since the previous
	// call. A transport failure returns an error; the engine treats it
	// as "no command observed this cycle".
	Fetch() ([]Command, error)

	// Close releases channel resources.
	Close() error
}
