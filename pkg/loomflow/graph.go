package loomflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// Edge connects a source node to a target node, optionally gated on
// the source's selected handle.
type Edge struct {
	Source       string
	Target       string
	SourceHandle string
}

// taken reports whether this edge is selected given the source's
// chosen handle. Untagged edges form the default path and match only
// the empty selection; a named selection (a branch decision, error
// routing) matches only edges tagged with that handle. The two sets
// never overlap, so the error branch stays silent on success and the
// default path stays silent on a routed failure.
func (e Edge) taken(selectedHandle string) bool {
	return e.SourceHandle == selectedHandle
}

// Graph is an immutable, validated workflow graph. Construction either
// yields a fully valid graph or a GraphStructureError; no partially
// valid graph ever reaches execution.
type Graph struct {
	nodes    map[string]Node
	configs  map[string]NodeConfig
	edges    []Edge
	outgoing map[string][]Edge
	incoming map[string][]Edge
	rootID   string
}

// Build validates node and edge configs and materializes node
// instances through the factory.
func Build(nodeCfgs []NodeConfig, edgeCfgs []EdgeConfig, factory Factory) (*Graph, error) {
	var errs []error

	if len(nodeCfgs) == 0 {
		return nil, &GraphStructureError{Err: ErrEmptyGraph}
	}

	configs := make(map[string]NodeConfig, len(nodeCfgs))
	for _, cfg := range nodeCfgs {
		if cfg.ID == "" {
			errs = append(errs, fmt.Errorf("%w: node with empty id", ErrNodeNotFound))
			continue
		}
		if cfg.ID == vars.SystemScope {
			errs = append(errs, fmt.Errorf("%w: node id %q", ErrReservedScope, cfg.ID))
			continue
		}
		if _, dup := configs[cfg.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateNodeID, cfg.ID))
			continue
		}
		configs[cfg.ID] = cfg
	}

	edges := make([]Edge, 0, len(edgeCfgs))
	for _, ec := range edgeCfgs {
		if _, ok := configs[ec.Source]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source %q", ErrNodeNotFound, ec.Source))
			continue
		}
		if _, ok := configs[ec.Target]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge target %q", ErrNodeNotFound, ec.Target))
			continue
		}
		edges = append(edges, Edge{Source: ec.Source, Target: ec.Target, SourceHandle: ec.SourceHandle})
	}

	if len(errs) > 0 {
		return nil, &GraphStructureError{Err: errors.Join(errs...)}
	}

	outgoing := make(map[string][]Edge)
	incoming := make(map[string][]Edge)
	for _, e := range edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
		incoming[e.Target] = append(incoming[e.Target], e)
	}

	rootID, err := resolveRoot(nodeCfgs, incoming)
	if err != nil {
		return nil, &GraphStructureError{Err: err}
	}

	if err := detectCycle(configs, outgoing); err != nil {
		return nil, &GraphStructureError{Err: err}
	}

	nodes := make(map[string]Node, len(configs))
	for _, cfg := range nodeCfgs {
		n, err := factory(cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("build node %q: %w", cfg.ID, err))
			continue
		}
		nodes[cfg.ID] = n
	}
	if len(errs) > 0 {
		return nil, &GraphStructureError{Err: errors.Join(errs...)}
	}

	return &Graph{
		nodes:    nodes,
		configs:  configs,
		edges:    edges,
		outgoing: outgoing,
		incoming: incoming,
		rootID:   rootID,
	}, nil
}

// resolveRoot determines the entry node: a declared start node when
// there is exactly one, otherwise the unique node with no incoming
// edges.
func resolveRoot(nodeCfgs []NodeConfig, incoming map[string][]Edge) (string, error) {
	var starts []string
	for _, cfg := range nodeCfgs {
		if cfg.Type == NodeTypeStart {
			starts = append(starts, cfg.ID)
		}
	}
	if len(starts) == 1 {
		return starts[0], nil
	}
	if len(starts) > 1 {
		return "", fmt.Errorf("%w: %d start nodes", ErrMultipleRoots, len(starts))
	}

	var roots []string
	for _, cfg := range nodeCfgs {
		if len(incoming[cfg.ID]) == 0 {
			roots = append(roots, cfg.ID)
		}
	}
	switch len(roots) {
	case 0:
		return "", ErrNoRootNode
	case 1:
		return roots[0], nil
	default:
		sort.Strings(roots)
		return "", fmt.Errorf("%w: %v", ErrMultipleRoots, roots)
	}
}

// detectCycle runs a three-color DFS over the edge set.
func detectCycle(configs map[string]NodeConfig, outgoing map[string][]Edge) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(configs))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, e := range outgoing[id] {
			switch color[e.Target] {
			case gray:
				return fmt.Errorf("%w: involving %q -> %q", ErrCycleDetected, id, e.Target)
			case white:
				if err := visit(e.Target); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// RootID returns the entry node's ID.
func (g *Graph) RootID() string {
	return g.rootID
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) Node {
	return g.nodes[id]
}

// Config returns the node's declarative config.
func (g *Graph) Config(id string) NodeConfig {
	return g.configs[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeIDs returns all node IDs, sorted.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OutgoingEdges returns the edges leaving a node.
func (g *Graph) OutgoingEdges(id string) []Edge {
	return g.outgoing[id]
}

// IncomingEdges returns the edges entering a node.
func (g *Graph) IncomingEdges(id string) []Edge {
	return g.incoming[id]
}

// SuccessorsOf returns the targets of edges taken when the node
// selected the given handle.
func (g *Graph) SuccessorsOf(id, selectedHandle string) []string {
	var out []string
	for _, e := range g.outgoing[id] {
		if e.taken(selectedHandle) {
			out = append(out, e.Target)
		}
	}
	return out
}

// Descendants returns the transitive successor set of a node,
// excluding the node itself.
func (g *Graph) Descendants(id string) map[string]bool {
	seen := make(map[string]bool)
	var walk func(cur string)
	walk = func(cur string) {
		for _, e := range g.outgoing[cur] {
			if !seen[e.Target] {
				seen[e.Target] = true
				walk(e.Target)
			}
		}
	}
	walk(id)
	return seen
}
