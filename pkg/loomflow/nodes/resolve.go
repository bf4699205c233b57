package nodes

import (
	"strings"

	"github.com/loomflow/loomflow/pkg/loomflow/expr"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// wholeRef reports whether s is exactly one {{#node.var#}} reference
// and returns its selector.
func wholeRef(s string) (vars.Selector, bool) {
	if !strings.HasPrefix(s, "{{#") || !strings.HasSuffix(s, "#}}") {
		return vars.Selector{}, false
	}
	inner := s[3 : len(s)-3]
	if strings.Contains(inner, "{{#") || strings.Contains(inner, "#}}") {
		return vars.Selector{}, false
	}
	return vars.ParseSelector(inner)
}

// renderValue materializes a config value against the pool. A string
// that is exactly one reference resolves to the referenced value with
// its type preserved; any other string is template-expanded; non-string
// values pass through typed.
func renderValue(pool *vars.Pool, v any) vars.Value {
	s, ok := v.(string)
	if !ok {
		return vars.Of(v)
	}
	if sel, ok := wholeRef(s); ok {
		if val, found := pool.Get(sel); found {
			return val
		}
		return vars.NullValue()
	}
	return vars.StringValue(pool.ConvertTemplate(s))
}

// renderOutputs materializes a name-to-value config map against the
// pool, for nodes that just project pool state into outputs.
func renderOutputs(pool *vars.Pool, spec map[string]any) map[string]vars.Value {
	out := make(map[string]vars.Value, len(spec))
	for name, v := range spec {
		out[name] = renderValue(pool, v)
	}
	return out
}

// poolResolver adapts the pool to the expression evaluator. Operands
// may be bare "node.var" selectors or full {{#node.var#}} references.
func poolResolver(pool *vars.Pool) expr.Resolver {
	return expr.ResolverFunc(func(name string) (any, bool) {
		if strings.HasPrefix(name, "{{#") && strings.HasSuffix(name, "#}}") {
			name = name[3 : len(name)-3]
		}
		sel, ok := vars.ParseSelector(name)
		if !ok {
			return nil, false
		}
		v, ok := pool.Get(sel)
		if !ok {
			return nil, false
		}
		return v.Data, true
	})
}

// configMap returns the nested map at key, or nil.
func configMap(cfg map[string]any, key string) map[string]any {
	if cfg == nil {
		return nil
	}
	if m, ok := cfg[key].(map[string]any); ok {
		return m
	}
	return nil
}
