package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomflow/loomflow/pkg/loomflow"
)

// SchemaVersion is the workflow definition format this loader accepts.
const SchemaVersion = "1"

// ErrSchemaVersion indicates a definition with an unsupported version.
var ErrSchemaVersion = errors.New("unsupported workflow schema version")

// Settings are the engine-level knobs a definition may carry.
type Settings struct {
	Workers             int
	EventBuffer         int
	GraphTimeout        time.Duration
	CommandPollInterval time.Duration
}

// Definition is a parsed workflow: node and edge configs plus engine
// settings. Validation beyond decoding happens in loomflow.Build.
type Definition struct {
	Version  string
	Name     string
	Settings Settings
	Nodes    []loomflow.NodeConfig
	Edges    []loomflow.EdgeConfig
}

// Options converts the definition's settings into engine options.
// Zero-valued settings are omitted so engine defaults apply.
func (d Definition) Options() []loomflow.Option {
	var opts []loomflow.Option
	if d.Settings.Workers > 0 {
		opts = append(opts, loomflow.WithWorkers(d.Settings.Workers))
	}
	if d.Settings.EventBuffer > 0 {
		opts = append(opts, loomflow.WithEventBuffer(d.Settings.EventBuffer))
	}
	if d.Settings.GraphTimeout > 0 {
		opts = append(opts, loomflow.WithGraphTimeout(d.Settings.GraphTimeout))
	}
	if d.Settings.CommandPollInterval > 0 {
		opts = append(opts, loomflow.WithCommandPollInterval(d.Settings.CommandPollInterval))
	}
	return opts
}

// Wire types with YAML tags. JSON definitions decode through the same
// path since YAML is a superset.
type defFile struct {
	Version  string      `yaml:"version"`
	Name     string      `yaml:"name"`
	Settings defSettings `yaml:"settings"`
	Nodes    []defNode   `yaml:"nodes"`
	Edges    []defEdge   `yaml:"edges"`
}

type defSettings struct {
	Workers             int    `yaml:"workers"`
	EventBuffer         int    `yaml:"event_buffer"`
	GraphTimeout        string `yaml:"graph_timeout"`
	CommandPollInterval string `yaml:"command_poll_interval"`
}

type defNode struct {
	ID              string         `yaml:"id"`
	Type            string         `yaml:"type"`
	Title           string         `yaml:"title"`
	Config          map[string]any `yaml:"config"`
	Retry           *defRetry      `yaml:"retry"`
	Timeout         string         `yaml:"timeout"`
	ContinueOnError bool           `yaml:"continue_on_error"`
	Nodes           []defNode      `yaml:"nodes"`
	Edges           []defEdge      `yaml:"edges"`
}

type defRetry struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Interval    string `yaml:"interval"`
	Backoff     string `yaml:"backoff"`
	MaxInterval string `yaml:"max_interval"`
}

type defEdge struct {
	Source       string `yaml:"source"`
	Target       string `yaml:"target"`
	SourceHandle string `yaml:"source_handle"`
}

// Parse decodes a workflow definition from YAML or JSON bytes.
func Parse(data []byte) (Definition, error) {
	var f defFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Definition{}, fmt.Errorf("decode workflow definition: %w", err)
	}
	if f.Version != "" && f.Version != SchemaVersion {
		return Definition{}, fmt.Errorf("%w: %q", ErrSchemaVersion, f.Version)
	}

	def := Definition{
		Version: f.Version,
		Name:    f.Name,
		Settings: Settings{
			Workers:             f.Settings.Workers,
			EventBuffer:         f.Settings.EventBuffer,
			GraphTimeout:        parseDuration(f.Settings.GraphTimeout),
			CommandPollInterval: parseDuration(f.Settings.CommandPollInterval),
		},
	}
	for _, n := range f.Nodes {
		nc, err := convertNode(n)
		if err != nil {
			return Definition{}, err
		}
		def.Nodes = append(def.Nodes, nc)
	}
	for _, e := range f.Edges {
		def.Edges = append(def.Edges, loomflow.EdgeConfig(e))
	}
	return def, nil
}

// LoadFile reads and parses a workflow definition file.
func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read workflow definition: %w", err)
	}
	return Parse(data)
}

func convertNode(n defNode) (loomflow.NodeConfig, error) {
	nc := loomflow.NodeConfig{
		ID:              n.ID,
		Type:            loomflow.NodeType(n.Type),
		Title:           n.Title,
		Config:          n.Config,
		Timeout:         parseDuration(n.Timeout),
		ContinueOnError: n.ContinueOnError,
	}
	if n.Retry != nil {
		nc.Retry = loomflow.RetryPolicy{
			MaxAttempts: n.Retry.MaxAttempts,
			Interval:    parseDuration(n.Retry.Interval),
			Backoff:     loomflow.BackoffKind(n.Retry.Backoff),
			MaxInterval: parseDuration(n.Retry.MaxInterval),
		}
	}
	for _, child := range n.Nodes {
		cc, err := convertNode(child)
		if err != nil {
			return loomflow.NodeConfig{}, err
		}
		nc.Nodes = append(nc.Nodes, cc)
	}
	for _, e := range n.Edges {
		nc.Edges = append(nc.Edges, loomflow.EdgeConfig(e))
	}
	return nc, nil
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
