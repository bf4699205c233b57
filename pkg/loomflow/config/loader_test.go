package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomflow/loomflow/pkg/loomflow"
)

const sampleYAML = `
version: "1"
name: order-approval
settings:
  workers: 4
  event_buffer: 32
  graph_timeout: 5m
  command_poll_interval: 200ms
nodes:
  - id: begin
    type: start
    config:
      inputs:
        order_id: 42
  - id: check
    type: if-else
    title: Amount gate
    config:
      condition: begin.order_id > 10
  - id: fetch
    type: http-request
    timeout: 10s
    continue_on_error: true
    retry:
      max_attempts: 3
      interval: 1s
      backoff: exponential
      max_interval: 10s
    config:
      url: https://api.example.com/orders/{{#begin.order_id#}}
  - id: each
    type: iteration
    config:
      input: "{{#fetch.body#}}"
      output: render.output
    nodes:
      - id: render
        type: template-transform
        config:
          template: "{{#each.item#}}"
edges:
  - source: begin
    target: check
  - source: check
    target: fetch
    source_handle: "true"
  - source: fetch
    target: each
`

// TestParse_YAML verifies a full definition decodes with settings,
// retry policies, and nested container graphs intact.
func TestParse_YAML(t *testing.T) {
	def, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "order-approval", def.Name)
	assert.Equal(t, 4, def.Settings.Workers)
	assert.Equal(t, 32, def.Settings.EventBuffer)
	assert.Equal(t, 5*time.Minute, def.Settings.GraphTimeout)
	assert.Equal(t, 200*time.Millisecond, def.Settings.CommandPollInterval)

	require.Len(t, def.Nodes, 4)
	assert.Equal(t, loomflow.NodeTypeStart, def.Nodes[0].Type)
	assert.Equal(t, "Amount gate", def.Nodes[1].Title)

	fetch := def.Nodes[2]
	assert.Equal(t, 10*time.Second, fetch.Timeout)
	assert.True(t, fetch.ContinueOnError)
	assert.Equal(t, 3, fetch.Retry.MaxAttempts)
	assert.Equal(t, time.Second, fetch.Retry.Interval)
	assert.Equal(t, loomflow.BackoffExponential, fetch.Retry.Backoff)
	assert.Equal(t, 10*time.Second, fetch.Retry.MaxInterval)

	each := def.Nodes[3]
	require.Len(t, each.Nodes, 1)
	assert.Equal(t, loomflow.NodeTypeTemplateTransform, each.Nodes[0].Type)

	require.Len(t, def.Edges, 3)
	assert.Equal(t, "true", def.Edges[1].SourceHandle)
}

// TestParse_JSON verifies JSON definitions decode through the same
// path.
func TestParse_JSON(t *testing.T) {
	def, err := Parse([]byte(`{
		"version": "1",
		"name": "tiny",
		"nodes": [{"id": "a", "type": "start"}],
		"edges": []
	}`))
	require.NoError(t, err)
	assert.Equal(t, "tiny", def.Name)
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, "a", def.Nodes[0].ID)
}

// TestParse_VersionMismatch verifies unsupported schema versions are
// rejected.
func TestParse_VersionMismatch(t *testing.T) {
	_, err := Parse([]byte(`version: "2"`))
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

// TestParse_NoVersion verifies a missing version is accepted.
func TestParse_NoVersion(t *testing.T) {
	_, err := Parse([]byte(`name: unversioned`))
	assert.NoError(t, err)
}

// TestParse_Garbage verifies malformed input errors.
func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("nodes: [}"))
	assert.Error(t, err)
}

// TestDefinition_Options verifies zero settings fall back to engine
// defaults and set ones convert.
func TestDefinition_Options(t *testing.T) {
	assert.Empty(t, Definition{}.Options())

	def := Definition{Settings: Settings{
		Workers:      2,
		GraphTimeout: time.Minute,
	}}
	assert.Len(t, def.Options(), 2)
}

// TestLoadFile verifies the file path round trip.
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "order-approval", def.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestParse_BuildsRunnableGraph verifies a parsed definition compiles
// with the default factory.
func TestParse_BuildsRunnableGraph(t *testing.T) {
	def, err := Parse([]byte(`
version: "1"
nodes:
  - id: begin
    type: start
  - id: render
    type: template-transform
    config:
      template: done
edges:
  - source: begin
    target: render
`))
	require.NoError(t, err)

	g, err := loomflow.Build(def.Nodes, def.Edges, testFactory())
	require.NoError(t, err)
	assert.Equal(t, "begin", g.RootID())
}

// parsedNode is a minimal node for compile checks; definitions built
// for real execution use the nodes package factory instead.
type parsedNode struct {
	cfg loomflow.NodeConfig
}

func (n parsedNode) ID() string              { return n.cfg.ID }
func (n parsedNode) Type() loomflow.NodeType { return n.cfg.Type }
func (n parsedNode) Title() string           { return n.cfg.Title }

func (n parsedNode) Run(context.Context, *loomflow.RunContext) (*loomflow.Result, error) {
	return loomflow.Succeeded(nil), nil
}

func testFactory() loomflow.Factory {
	return func(cfg loomflow.NodeConfig) (loomflow.Node, error) {
		return parsedNode{cfg: cfg}, nil
	}
}
