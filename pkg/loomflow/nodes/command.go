package nodes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/config"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// ErrNoRunner indicates a command node ran without an injected Runner.
var ErrNoRunner = errors.New("no command runner configured")

// CommandNode runs an external command through the injected
// CommandRunner. Command, args, and stdin are templated against the
// pool. A non-zero exit fails the node unless fail_on_error is false.
type CommandNode struct {
	base
	command     string
	args        []string
	stdin       string
	failOnError bool
	runner      CommandRunner
}

func buildCommand(cfg loomflow.NodeConfig, deps Deps, _ loomflow.Factory) (loomflow.Node, error) {
	c := config.New(cfg.Config)
	cmd := c.String("command", "")
	if cmd == "" {
		return nil, fmt.Errorf("command node %q has no command", cfg.ID)
	}
	return &CommandNode{
		base:        newBase(cfg),
		command:     cmd,
		args:        c.StringSlice("args", nil),
		stdin:       c.String("stdin", ""),
		failOnError: c.Bool("fail_on_error", true),
		runner:      deps.Runner,
	}, nil
}

// Run implements loomflow.Node.
func (n *CommandNode) Run(ctx context.Context, rc *loomflow.RunContext) (*loomflow.Result, error) {
	if n.runner == nil {
		return nil, fmt.Errorf("command node %q: %w", n.id, ErrNoRunner)
	}

	pool := rc.Pool()
	args := make([]string, len(n.args))
	for i, a := range n.args {
		args[i] = pool.ConvertTemplate(a)
	}

	res, err := n.runner.Run(ctx, pool.ConvertTemplate(n.command), args, pool.ConvertTemplate(n.stdin))
	if err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}
	if res.ExitCode != 0 && n.failOnError {
		return nil, fmt.Errorf("command exited with code %d: %s",
			res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return loomflow.Succeeded(map[string]vars.Value{
		"stdout":    vars.StringValue(res.Stdout),
		"stderr":    vars.StringValue(res.Stderr),
		"exit_code": vars.NumberValue(float64(res.ExitCode)),
	}), nil
}

// ExecRunner is a CommandRunner backed by os/exec. Inject it only for
// workflows trusted to run arbitrary local commands.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, stdin string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return CommandResult{}, err
	}
	return result, nil
}
