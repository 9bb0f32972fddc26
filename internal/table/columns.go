// Package table projects array-typed sections of a model into rows and
// columns for tabular display.
package table

import (
	"sort"

	"github.com/samber/lo"

	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// Column is one projected field. Nested object leaves are flattened into
// dotted keys; array fields stay a single column holding the array.
type Column struct {
	Key      string      `json:"key"`
	XPath    string      `json:"xpath"`
	Title    string      `json:"title"`
	Kind     schema.Kind `json:"kind"`
	Hide     bool        `json:"hide,omitempty"`
	Sequence int         `json:"sequence"`
}

// Columns lists the columns of node in schema order
func Columns(doc *schema.Document, node *schema.Node) []Column {
	var out []Column
	visited := map[string]bool{}
	collect(doc, node, "", "", false, visited, &out)

	for i := range out {
		if out[i].Sequence == 0 {
			out[i].Sequence = i + 1
		}
	}
	return out
}

func collect(doc *schema.Document, node *schema.Node, prefix, titlePrefix string, hidden bool, visited map[string]bool, out *[]Column) {
	resolved := doc.Resolve(node)
	if resolved == nil || visited[resolved.Pointer] {
		return
	}
	visited[resolved.Pointer] = true
	defer delete(visited, resolved.Pointer)

	for _, f := range doc.ListFields(resolved) {
		key := xpath.Child(prefix, f.Key)
		title := f.Title()
		if titlePrefix != "" {
			title = titlePrefix + "." + title
		}
		hide := hidden || f.UI.Hide

		if f.Kind == schema.KindObject {
			collect(doc, f.Node, key, title, hide, visited, out)
			continue
		}
		*out = append(*out, Column{
			Key:      key,
			XPath:    key,
			Title:    title,
			Kind:     f.Kind,
			Hide:     hide,
			Sequence: f.UI.SequenceNumber,
		})
	}
}

// Reorder assigns display sequence numbers following order. Columns not
// named in order keep their relative position after the named ones. The
// input is not modified.
func Reorder(columns []Column, order []string) []Column {
	rank := make(map[string]int, len(order))
	for i, key := range lo.Uniq(order) {
		rank[key] = i
	}

	out := append([]Column(nil), columns...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].Key]
		rj, jok := rank[out[j].Key]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i].Sequence < out[j].Sequence
	})
	for i := range out {
		out[i].Sequence = i + 1
	}
	return out
}

// Visible drops hidden columns and the common ones
func Visible(columns []Column, common []CommonKey) []Column {
	hoisted := lo.SliceToMap(common, func(c CommonKey) (string, bool) { return c.Column.Key, true })
	return lo.Filter(columns, func(c Column, _ int) bool {
		return !c.Hide && !hoisted[c.Key]
	})
}
