package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// ErrNoLLMClient indicates an LLM node ran without an injected client.
var ErrNoLLMClient = errors.New("no llm client configured")

// LLMNode invokes a language model through the injected LLMClient.
// Prompt templates are rendered against the pool; token usage
// accumulates on the runtime state. When streaming is enabled, output
// fragments surface as stream-chunk events as they arrive.
type LLMNode struct {
	base
	model       string
	system      string
	prompt      string
	temperature float64
	maxTokens   int
	stream      bool
	client      LLMClient
}

func buildLLM(cfg loomflow.NodeConfig, deps Deps, _ loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	prompt := c.String("prompt", "")
	if prompt == "" {
		return nil, fmt.Errorf("llm node %q has no prompt", cfg.ID)
	}
	return &LLMNode{
		base:        newBase(cfg),
		model:       c.String("model", ""),
		system:      c.String("system", ""),
		prompt:      prompt,
		temperature: c.Float("temperature", 0),
		maxTokens:   c.Int("max_tokens", 0),
		stream:      c.Bool("stream", false),
		client:      deps.LLM,
	}, nil
}

// Run implements loomflow.Node.
func (n *LLMNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	if n.client == nil {
		return nil, fmt.Errorf("llm node %q: %w", n.id, ErrNoLLMClient)
	}

	pool := rc.Pool()
	req := CompletionRequest{
		Model:       n.model,
		Temperature: n.temperature,
		MaxTokens:   n.maxTokens,
	}
	if n.system != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: pool.ConvertTemplate(n.system)})
	}
	req.Messages = append(req.Messages, Message{Role: "user", Content: pool.ConvertTemplate(n.prompt)})

	var (
		completion *Completion
		err        error
	)
	if n.stream && rc.EmitChunk != nil {
		completion, err = n.client.Stream(ctx, req, rc.EmitChunk)
	} else {
		completion, err = n.client.Complete(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("llm completion: %w", err)
	}

	rc.State.AddTokens(completion.PromptTokens + completion.CompletionTokens)

	return loomflow.Succeeded(map[string]vars.Value{
		"text": vars.StringValue(completion.Text),
		"usage": vars.ObjectValue(map[string]any{
			"prompt_tokens":     completion.PromptTokens,
			"completion_tokens": completion.CompletionTokens,
		}),
	}), nil
}
