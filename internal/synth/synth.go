// Package synth builds default instances of schema models to seed create
// flows.
package synth

import (
	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// GenerateDefault returns a fully populated default instance of node:
// strings are "", numbers 0, booleans false, enums their first permitted
// value, objects are synthesized recursively and arrays hold MinItems default
// elements. A declared default always wins.
//
// A definition that is already being expanded on the current path is not
// expanded again: the nested object becomes nil and the nested array stays
// empty, so self-referential schemas terminate.
//
// Fields marked server_populate are omitted; the backend assigns them.
func GenerateDefault(doc *schema.Document, node *schema.Node) any {
	g := &generator{doc: doc, active: make(map[string]bool)}
	return g.value(node)
}

// ForModel resolves name and returns its default instance
func ForModel(doc *schema.Document, name string) (map[string]any, error) {
	node, err := doc.ResolveModel(name)
	if err != nil {
		return nil, err
	}
	obj, _ := GenerateDefault(doc, node).(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

type generator struct {
	doc *schema.Document
	// active holds the pointers of object definitions on the current path
	active map[string]bool
}

func (g *generator) value(node *schema.Node) any {
	if node == nil {
		return nil
	}
	resolved := g.doc.Resolve(node)
	if resolved.HasDefault {
		return xpath.Clone(resolved.Default)
	}

	switch resolved.Kind {
	case schema.KindString:
		return ""
	case schema.KindNumber:
		return float64(0)
	case schema.KindBoolean:
		return false
	case schema.KindEnum:
		if len(resolved.Enum) > 0 {
			return xpath.Clone(resolved.Enum[0])
		}
		return ""
	case schema.KindObject:
		return g.object(resolved)
	case schema.KindArray:
		return g.array(resolved)
	}
	return nil
}

func (g *generator) object(node *schema.Node) any {
	if g.active[node.Pointer] {
		return nil
	}
	g.active[node.Pointer] = true
	defer delete(g.active, node.Pointer)

	fields := g.doc.ListFields(node)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.UI.ServerPopulate {
			continue
		}
		if f.Default != nil {
			out[f.Key] = xpath.Clone(f.Default)
			continue
		}
		out[f.Key] = g.value(f.Node)
	}
	return out
}

func (g *generator) array(node *schema.Node) any {
	out := make([]any, 0, node.MinItems)
	if node.Items == nil || node.MinItems == 0 {
		return out
	}

	items := g.doc.Resolve(node.Items)
	if items.Kind == schema.KindObject && g.active[items.Pointer] {
		return out
	}
	for i := 0; i < node.MinItems; i++ {
		out = append(out, g.value(items))
	}
	return out
}
