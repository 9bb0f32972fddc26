package filter

import (
	"fmt"
	"strings"

	"github.com/flowmesh/schemaui/internal/xpath"
)

// Evaluate evaluates a binary expression
func (e *BinaryExpression) Evaluate(ctx Context) (any, error) {
	left, err := e.Left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	// short-circuit the logical operators
	switch e.Operator {
	case OpAnd:
		if !toBool(left) {
			return false, nil
		}
	case OpOr:
		if toBool(left) {
			return true, nil
		}
	}

	right, err := e.Right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case OpEqual:
		return isEqual(left, right), nil
	case OpNotEqual:
		return !isEqual(left, right), nil
	case OpGreaterThan:
		c, ok := compare(left, right)
		return ok && c > 0, nil
	case OpLessThan:
		c, ok := compare(left, right)
		return ok && c < 0, nil
	case OpGreaterOrEqual:
		c, ok := compare(left, right)
		return ok && c >= 0, nil
	case OpLessOrEqual:
		c, ok := compare(left, right)
		return ok && c <= 0, nil
	case OpContains:
		return contains(left, right), nil
	case OpAnd, OpOr:
		return toBool(right), nil
	default:
		return nil, fmt.Errorf("unknown operator: %s", e.Operator)
	}
}

// Evaluate negates the operand's truthiness
func (u *UnaryExpression) Evaluate(ctx Context) (any, error) {
	v, err := u.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return !toBool(v), nil
}

// Match evaluates expr against ctx. A nil expression matches everything.
func Match(expr Expression, ctx Context) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := expr.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return toBool(v), nil
}

func lookup(ctx Context, name string) (any, bool) {
	if v, ok := ctx[name]; ok {
		return v, true
	}
	return xpath.Get(map[string]any(ctx), name)
}

func isEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if xpath.IsContainer(a) || xpath.IsContainer(b) {
		return xpath.Equal(a, b)
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compare orders numbers numerically and everything else as strings. Nulls
// are not ordered.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)), true
}

func contains(container, item any) bool {
	if arr, ok := container.([]any); ok {
		for _, el := range arr {
			if isEqual(el, item) {
				return true
			}
		}
		return false
	}
	if container == nil {
		return false
	}
	return strings.Contains(fmt.Sprintf("%v", container), fmt.Sprintf("%v", item))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}
