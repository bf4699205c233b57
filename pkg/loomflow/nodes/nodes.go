// Package nodes provides the built-in node implementations and the
// registry that builds nodes from declarative configs.
//
// External integrations (LLM providers, code sandboxes, subprocess
// execution) are injected through small interfaces on Deps, so graphs
// stay testable without network or process access.
package nodes

import (
	"context"
	"net/http"

	"github.com/loomflow/loomflow/pkg/loomflow"
)

// LLMClient is the model-provider integration used by LLM nodes.
type LLMClient interface {
	// Complete returns the full completion for a request.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Stream invokes fn for each output fragment as it arrives and
	// returns the assembled completion.
	Stream(ctx context.Context, req CompletionRequest, fn func(chunk string)) (*Completion, error)
}

// Message is one turn of an LLM conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one model invocation.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Completion is the result of one model invocation.
type Completion struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Sandbox executes user-authored code in isolation.
type Sandbox interface {
	RunCode(ctx context.Context, language, code string, inputs map[string]any) (map[string]any, error)
}

// CommandRunner executes an external command.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin string) (CommandResult, error)
}

// CommandResult is the captured output of one command invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Deps are the injected integrations node builders close over.
// Nil fields are allowed; nodes that need a missing integration fail
// at execution time with a clear error.
type Deps struct {
	LLM     LLMClient
	Sandbox Sandbox
	Runner  CommandRunner
	HTTP    *http.Client
}

// base carries the identity fields every node shares.
type base struct {
	id    string
	typ   loomflow.NodeType
	title string
}

func newBase(cfg loomflow.NodeConfig) base {
	title := cfg.Title
	if title == "" {
		title = cfg.ID
	}
	return base{id: cfg.ID, typ: cfg.Type, title: title}
}

func (b base) ID() string {
	return b.id
}

func (b base) Type() loomflow.NodeType {
	return b.typ
}

func (b base) Title() string {
	return b.title
}
