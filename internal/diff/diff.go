// Package diff compares a working copy against its baseline by xpath and
// decides what a save has to do.
package diff

import (
	"sort"

	"github.com/flowmesh/schemaui/internal/xpath"
)

// ChangeKind classifies one change
type ChangeKind string

const (
	// Added marks a location present only in the modified graph
	Added ChangeKind = "added"
	// Removed marks a location present only in the baseline
	Removed ChangeKind = "removed"
	// Modified marks a location whose value differs
	Modified ChangeKind = "modified"
)

// Change is one entry of a ChangeRecord
type Change struct {
	Kind ChangeKind `json:"kind"`
	Old  any        `json:"old,omitempty"`
	New  any        `json:"new,omitempty"`
}

// ChangeRecord maps xpaths to changes. Changes are reported at the shallowest
// location where the graphs diverge: an added array element is one Added
// entry for the element, not one per leaf.
type ChangeRecord map[string]Change

// Paths returns the changed xpaths in lexical order
func (r ChangeRecord) Paths() []string {
	paths := make([]string, 0, len(r))
	for p := range r {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Touches reports whether p is changed, lies below a changed location or
// contains one
func (r ChangeRecord) Touches(p string) bool {
	for changed := range r {
		if xpath.HasPrefix(p, changed) || xpath.HasPrefix(changed, p) {
			return true
		}
	}
	return false
}

// Diff compares modified against baseline over the union of their
// addresses. Annotation keys are ignored and numbers compare by value. A nil
// baseline is treated as an empty object.
func Diff(baseline, modified any) ChangeRecord {
	rec := make(ChangeRecord)
	if baseline == nil {
		if _, ok := modified.(map[string]any); ok {
			baseline = map[string]any{}
		}
	}
	walk(rec, "", baseline, modified)
	return rec
}

// IsDirty reports whether modified differs from baseline. Every save and
// discard decision goes through it.
func IsDirty(baseline, modified any) bool {
	return len(Diff(baseline, modified)) > 0
}

func walk(rec ChangeRecord, p string, a, b any) {
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok {
			break
		}
		for k, va := range ta {
			if xpath.IsAnnotationKey(k) {
				continue
			}
			child := xpath.Child(p, k)
			vb, ok := tb[k]
			if !ok {
				rec[child] = Change{Kind: Removed, Old: xpath.ClearXPath(va)}
				continue
			}
			walk(rec, child, va, vb)
		}
		for k, vb := range tb {
			if xpath.IsAnnotationKey(k) {
				continue
			}
			if _, ok := ta[k]; !ok {
				rec[xpath.Child(p, k)] = Change{Kind: Added, New: xpath.ClearXPath(vb)}
			}
		}
		return
	case []any:
		tb, ok := b.([]any)
		if !ok {
			break
		}
		for i := 0; i < len(ta) || i < len(tb); i++ {
			child := xpath.Index(p, i)
			switch {
			case i >= len(tb):
				rec[child] = Change{Kind: Removed, Old: xpath.ClearXPath(ta[i])}
			case i >= len(ta):
				rec[child] = Change{Kind: Added, New: xpath.ClearXPath(tb[i])}
			default:
				walk(rec, child, ta[i], tb[i])
			}
		}
		return
	}

	if !xpath.Equal(a, b) {
		rec[p] = Change{Kind: Modified, Old: xpath.ClearXPath(a), New: xpath.ClearXPath(b)}
	}
}
