package nodes

import (
	"context"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// Test helpers shared across the package's tests.

// newRC creates a run context over a fresh runtime state.
func newRC() *loomflow.RunContext {
	return &loomflow.RunContext{
		State: state.New(state.SystemVars{RunID: "test-run"}),
	}
}

// seed stores a value under node.name in the run context's pool.
func seed(rc *loomflow.RunContext, node, name string, v vars.Value) {
	rc.Pool().Add(vars.Selector{NodeID: node, Name: name}, v)
}

// funcNode is a scriptable node for container sub-graphs.
type funcNode struct {
	base
	fn func(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error)
}

func (n *funcNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	if n.fn == nil {
		return loomflow.Succeeded(nil), nil
	}
	return n.fn(ctx, rc)
}

// fakeLLM is a scripted LLMClient.
type fakeLLM struct {
	completion Completion
	chunks     []string
	err        error

	gotReq CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	c := f.completion
	return &c, nil
}

func (f *fakeLLM) Stream(_ context.Context, req CompletionRequest, fn func(chunk string)) (*Completion, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	for _, chunk := range f.chunks {
		fn(chunk)
	}
	c := f.completion
	return &c, nil
}

// fakeSandbox records its inputs and returns a fixed result.
type fakeSandbox struct {
	result map[string]any
	err    error

	gotLanguage string
	gotCode     string
	gotInputs   map[string]any
}

func (f *fakeSandbox) RunCode(_ context.Context, language, code string, inputs map[string]any) (map[string]any, error) {
	f.gotLanguage = language
	f.gotCode = code
	f.gotInputs = inputs
	return f.result, f.err
}

// fakeRunner records its invocation and returns a fixed result.
type fakeRunner struct {
	result CommandResult
	err    error

	gotName  string
	gotArgs  []string
	gotStdin string
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, stdin string) (CommandResult, error) {
	f.gotName = name
	f.gotArgs = args
	f.gotStdin = stdin
	return f.result, f.err
}
