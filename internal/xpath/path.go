// Package xpath addresses locations inside decoded JSON object graphs using
// flat string paths such as "orders[3].price".
//
// Object graphs are the values produced by encoding/json when decoding into
// `any`: map[string]any, []any, string, float64, bool and nil.
package xpath

import (
	"strconv"
	"strings"
)

// Segment is one component of an xpath: either an object key or an array index
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// String renders the segment the way it appears inside an xpath
func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Parse splits an xpath into its segments. The empty string addresses the root
// and parses to no segments.
func Parse(p string) ([]Segment, error) {
	if p == "" {
		return nil, nil
	}

	segs := make([]Segment, 0, strings.Count(p, ".")+strings.Count(p, "[")+1)
	i := 0
	expectKey := true
	for i < len(p) {
		switch c := p[i]; {
		case c == '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, SyntaxError{XPath: p, Offset: i, Reason: "unterminated index"}
			}
			n, err := strconv.Atoi(p[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, SyntaxError{XPath: p, Offset: i, Reason: "index must be a non-negative integer"}
			}
			segs = append(segs, Segment{Index: n, IsIndex: true})
			i += end + 1
			expectKey = false
		case c == '.':
			if expectKey {
				return nil, SyntaxError{XPath: p, Offset: i, Reason: "empty key"}
			}
			i++
			expectKey = true
			if i == len(p) {
				return nil, SyntaxError{XPath: p, Offset: i, Reason: "trailing dot"}
			}
		default:
			if !expectKey {
				return nil, SyntaxError{XPath: p, Offset: i, Reason: "missing dot before key"}
			}
			end := strings.IndexAny(p[i:], ".[")
			if end < 0 {
				end = len(p) - i
			}
			segs = append(segs, Segment{Key: p[i : i+end]})
			i += end
			expectKey = false
		}
	}

	return segs, nil
}

// Join renders segments back into an xpath string
func Join(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if !s.IsIndex && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Child returns the xpath of property key under parent
func Child(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// Index returns the xpath of element i of the array at parent
func Index(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// Split returns the parent xpath and the last segment of p
func Split(p string) (string, Segment, error) {
	segs, err := Parse(p)
	if err != nil {
		return "", Segment{}, err
	}
	if len(segs) == 0 {
		return "", Segment{}, SyntaxError{XPath: p, Reason: "root has no parent"}
	}
	return Join(segs[:len(segs)-1]), segs[len(segs)-1], nil
}

// HasPrefix reports whether p equals prefix or addresses a location below it
func HasPrefix(p, prefix string) bool {
	if prefix == "" || p == prefix {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	next := p[len(prefix)]
	return next == '.' || next == '['
}

// StripIndices replaces every array index in p with an empty bracket pair.
// Schema lookups use this form since all elements of an array share a schema.
func StripIndices(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		if p[i] == '[' {
			end := strings.IndexByte(p[i:], ']')
			if end > 0 {
				b.WriteString("[]")
				i += end
				continue
			}
		}
		b.WriteByte(p[i])
	}
	return b.String()
}
