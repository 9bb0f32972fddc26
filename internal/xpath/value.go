package xpath

import (
	"encoding/json"
	"math"
)

// Clone returns a deep copy of a decoded JSON value. Maps and slices are
// copied; scalars are returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two decoded JSON values are deeply equal. Numbers are
// compared by value regardless of their Go type and annotation keys are
// ignored, so an annotated working copy equals its plain original.
func Equal(a, b any) bool {
	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && (na == nb || (math.IsNaN(na) && math.IsNaN(nb)))
	}

	switch ta := a.(type) {
	case nil:
		return b == nil
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok {
			return false
		}
		if dataLen(ta) != dataLen(tb) {
			return false
		}
		for k, va := range ta {
			if IsAnnotationKey(k) {
				continue
			}
			vb, ok := tb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	default:
		return a == b
	}
}

// dataLen counts the keys of m that are not annotations
func dataLen(m map[string]any) int {
	n := 0
	for k := range m {
		if !IsAnnotationKey(k) {
			n++
		}
	}
	return n
}

// toFloat converts the numeric types that can appear in a decoded graph
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// IsContainer reports whether v is an object or an array
func IsContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}
