package nodes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loomflow/loomflow/pkg/loomflow"
)

// Builder constructs a node from its config. Container builders use
// the factory to build their nested sub-graphs.
type Builder func(cfg loomflow.NodeConfig, deps Deps, factory loomflow.Factory) (loomflow.Node, error)

// Registry maps node types to builders. The zero value is unusable;
// create one with NewRegistry, which pre-registers the built-in types.
type Registry struct {
	mu       sync.RWMutex
	builders map[loomflow.NodeType]Builder
	deps     Deps
}

// NewRegistry creates a registry with the built-in node types
// registered and the given integrations injected.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		builders: make(map[loomflow.NodeType]Builder),
		deps:     deps,
	}
	r.Register(loomflow.NodeTypeStart, buildStart)
	r.Register(loomflow.NodeTypeEnd, buildEnd)
	r.Register(loomflow.NodeTypeAnswer, buildAnswer)
	r.Register(loomflow.NodeTypeTemplateTransform, buildTemplateTransform)
	r.Register(loomflow.NodeTypeIfElse, buildIfElse)
	r.Register(loomflow.NodeTypeHTTPRequest, buildHTTPRequest)
	r.Register(loomflow.NodeTypeCode, buildCode)
	r.Register(loomflow.NodeTypeCommand, buildCommand)
	r.Register(loomflow.NodeTypeLLM, buildLLM)
	r.Register(loomflow.NodeTypeHumanInput, buildHumanInput)
	r.Register(loomflow.NodeTypeIteration, buildIteration)
	r.Register(loomflow.NodeTypeLoop, buildLoop)
	return r
}

// Register adds or replaces the builder for a node type.
func (r *Registry) Register(t loomflow.NodeType, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[t] = b
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []loomflow.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]loomflow.NodeType, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Factory returns a loomflow.Factory backed by this registry.
// The factory recurses through itself for container sub-graphs.
func (r *Registry) Factory() loomflow.Factory {
	var factory loomflow.Factory
	factory = func(cfg loomflow.NodeConfig) (loomflow.Node, error) {
		r.mu.RLock()
		b, ok := r.builders[cfg.Type]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", loomflow.ErrUnknownNodeType, cfg.Type)
		}
		return b(cfg, r.deps, factory)
	}
	return factory
}

// DefaultFactory returns a factory with the built-in node types and
// no external integrations. Graphs using LLM, code, or command nodes
// need NewRegistry with the matching Deps instead.
func DefaultFactory() loomflow.Factory {
	return NewRegistry(Deps{}).Factory()
}
