// Package expr evaluates the boolean conditions attached to branching
// nodes and loop break checks.
//
// Operands are literals (quoted strings, numbers, booleans, null) or
// variable references resolved through a Resolver, typically backed by
// the run's variable pool.
package expr

import (
	"fmt"
	"strings"
)

// Resolver looks up a variable reference by name.
// Returning false means the reference is undefined; the operand then
// falls back to its literal interpretation.
type Resolver interface {
	Lookup(name string) (any, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (any, bool)

// Lookup implements Resolver.
func (f ResolverFunc) Lookup(name string) (any, bool) {
	return f(name)
}

// MapResolver resolves references from a plain map.
type MapResolver map[string]any

// Lookup implements Resolver.
func (m MapResolver) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// BinaryOp is a function that compares two values and returns a boolean result.
type BinaryOp func(left, right any) bool

// Evaluator evaluates boolean expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary operator.
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates a boolean expression, resolving references
// through the provided resolver.
func (e *Evaluator) Evaluate(expr string, r Resolver) (bool, error) {
	return e.evaluateCondition(expr, r)
}

// Eval is a convenience function that evaluates an expression using
// the default evaluator (no custom operators).
func Eval(expr string, r Resolver) (bool, error) {
	return New().Evaluate(expr, r)
}

// evaluateCondition evaluates a condition expression.
// Supports: ==, !=, <, >, <=, >=, and, or, not, !, contains
func (e *Evaluator) evaluateCondition(expr string, r Resolver) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}

	// Handle negation with "not " prefix
	if strings.HasPrefix(expr, "not ") {
		inner := strings.TrimPrefix(expr, "not ")
		result, err := e.evaluateCondition(strings.TrimSpace(inner), r)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	// Handle negation with "!" prefix (but not "!=")
	if strings.HasPrefix(expr, "!") && !strings.HasPrefix(expr, "!=") {
		inner := strings.TrimPrefix(expr, "!")
		result, err := e.evaluateCondition(strings.TrimSpace(inner), r)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	// Handle AND (split on first " and ")
	if parts := strings.SplitN(expr, " and ", 2); len(parts) == 2 {
		left, errL := e.evaluateCondition(parts[0], r)
		if errL != nil {
			return false, errL
		}
		right, errR := e.evaluateCondition(parts[1], r)
		if errR != nil {
			return false, errR
		}
		return left && right, nil
	}

	// Handle OR (split on first " or ")
	if parts := strings.SplitN(expr, " or ", 2); len(parts) == 2 {
		left, errL := e.evaluateCondition(parts[0], r)
		if errL != nil {
			return false, errL
		}
		right, errR := e.evaluateCondition(parts[1], r)
		if errR != nil {
			return false, errR
		}
		return left || right, nil
	}

	// Built-in operators, longer operators first to avoid partial matches.
	builtinOps := []string{"==", "!=", ">=", "<=", ">", "<", " contains "}
	for _, op := range builtinOps {
		if parts := strings.SplitN(expr, op, 2); len(parts) == 2 {
			left := Resolve(strings.TrimSpace(parts[0]), r)
			right := Resolve(strings.TrimSpace(parts[1]), r)
			return Compare(left, right, strings.TrimSpace(op))
		}
	}

	// Custom operators (wrap with spaces for word boundaries)
	for name, fn := range e.customOps {
		opPattern := " " + name + " "
		if parts := strings.SplitN(expr, opPattern, 2); len(parts) == 2 {
			left := Resolve(strings.TrimSpace(parts[0]), r)
			right := Resolve(strings.TrimSpace(parts[1]), r)
			return fn(left, right), nil
		}
	}

	// Single value - check if truthy
	return IsTruthy(Resolve(expr, r)), nil
}

// Compare compares two values using the specified operator.
// Returns an error for unknown operators.
func Compare(left, right any, op string) (bool, error) {
	switch op {
	case "==":
		return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right), nil
	case "!=":
		return fmt.Sprintf("%v", left) != fmt.Sprintf("%v", right), nil
	case "<":
		return ToFloat64(left) < ToFloat64(right), nil
	case ">":
		return ToFloat64(left) > ToFloat64(right), nil
	case "<=":
		return ToFloat64(left) <= ToFloat64(right), nil
	case ">=":
		return ToFloat64(left) >= ToFloat64(right), nil
	case "contains":
		return strings.Contains(fmt.Sprintf("%v", left), fmt.Sprintf("%v", right)), nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}
