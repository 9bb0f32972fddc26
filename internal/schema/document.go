package schema

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxRefHops bounds $ref chains so a cyclic alias cannot hang resolution
const maxRefHops = 32

// Document is a loaded schema. It is immutable and safe for concurrent use.
type Document struct {
	// Root is the top-level schema node
	Root *Node
	// Defs lists $defs and definitions entries in declaration order
	Defs []Property

	defs map[string]*Node
	raw  []byte
}

// Parse loads a JSON Schema document, preserving property declaration order
func Parse(data []byte) (*Document, error) {
	decoded, err := decodeOrdered(data)
	if err != nil {
		return nil, InvalidSchemaError{Reason: err.Error()}
	}
	obj, ok := decoded.(*orderedObject)
	if !ok {
		return nil, InvalidSchemaError{Reason: "document root must be an object"}
	}

	root, err := buildNode("", "#", obj)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Root: root,
		defs: make(map[string]*Node),
		raw:  append([]byte(nil), data...),
	}

	for _, section := range []string{"$defs", "definitions"} {
		v, ok := obj.get(section)
		if !ok {
			continue
		}
		defs, ok := v.(*orderedObject)
		if !ok {
			return nil, InvalidSchemaError{Reason: section + " must be an object"}
		}
		for _, name := range defs.keys {
			node, err := buildNode(name, "#/"+section+"/"+escapePointer(name), defs.values[name])
			if err != nil {
				return nil, err
			}
			if _, dup := doc.defs[name]; dup {
				continue
			}
			doc.defs[name] = node
			doc.Defs = append(doc.Defs, Property{Name: name, Node: node})
		}
	}

	return doc, nil
}

// Raw returns the document bytes the schema was parsed from
func (d *Document) Raw() []byte {
	return d.raw
}

// Models returns the definition names in declaration order
func (d *Document) Models() []string {
	names := make([]string, len(d.Defs))
	for i, def := range d.Defs {
		names[i] = def.Name
	}
	return names
}

// JSONRootModels returns the definitions that are independently addressable
func (d *Document) JSONRootModels() []string {
	var names []string
	for _, def := range d.Defs {
		if def.Node.UI().JSONRoot {
			names = append(names, def.Name)
		}
	}
	return names
}

// Resolve follows the $ref chain of n and returns the node it ends at. A
// dangling reference resolves to n itself with KindUnknown.
func (d *Document) Resolve(n *Node) *Node {
	cur := n
	for hops := 0; cur != nil && cur.Ref != "" && hops < maxRefHops; hops++ {
		target := d.lookupRef(cur.Ref)
		if target == nil {
			return cur
		}
		cur = target
	}
	return cur
}

// RefName returns the definition name a $ref points at, or "" for refs that
// do not address a definition
func RefName(ref string) string {
	for _, prefix := range []string{"#/$defs/", "#/definitions/"} {
		if strings.HasPrefix(ref, prefix) {
			rest := ref[len(prefix):]
			if !strings.Contains(rest, "/") {
				return unescapePointer(rest)
			}
		}
	}
	return ""
}

func (d *Document) lookupRef(ref string) *Node {
	if name := RefName(ref); name != "" {
		return d.defs[name]
	}
	if !strings.HasPrefix(ref, "#") {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(strings.TrimPrefix(ref, "#"), "/"), "/")
	if len(parts) >= 2 && (parts[0] == "$defs" || parts[0] == "definitions") {
		cur := d.defs[unescapePointer(parts[1])]
		return walkPointer(cur, parts[2:])
	}
	if len(parts) == 1 && parts[0] == "" {
		return d.Root
	}
	return walkPointer(d.Root, parts)
}

func walkPointer(cur *Node, parts []string) *Node {
	for i := 0; cur != nil && i < len(parts); i++ {
		switch parts[i] {
		case "properties":
			if i+1 >= len(parts) {
				return nil
			}
			i++
			cur, _ = cur.Property(unescapePointer(parts[i]))
		case "items":
			cur = cur.Items
		default:
			return nil
		}
	}
	return cur
}

// ResolveModel looks a model up by name among the definitions, then among
// the top-level properties. The returned node is fully resolved.
func (d *Document) ResolveModel(name string) (*Node, error) {
	if n, ok := d.defs[name]; ok {
		return d.Resolve(n), nil
	}
	for _, key := range []string{name, lowerCamel(name)} {
		if n, ok := d.Root.Property(key); ok {
			return d.Resolve(n), nil
		}
	}
	return nil, NotFoundError{Model: name}
}

// ListFields enumerates the properties of an object node in declaration
// order, resolving references and merging UI hints.
func (d *Document) ListFields(node *Node) []FieldDescriptor {
	parent := d.Resolve(node)
	if parent == nil {
		return nil
	}

	fields := make([]FieldDescriptor, 0, len(parent.Properties))
	for _, prop := range parent.Properties {
		fields = append(fields, d.describe(parent, prop))
	}
	return fields
}

// Field describes a single property of an object node
func (d *Document) Field(node *Node, key string) (FieldDescriptor, bool) {
	parent := d.Resolve(node)
	if parent == nil {
		return FieldDescriptor{}, false
	}
	for _, prop := range parent.Properties {
		if prop.Name == key {
			return d.describe(parent, prop), true
		}
	}
	return FieldDescriptor{}, false
}

func (d *Document) describe(parent *Node, prop Property) FieldDescriptor {
	declared := prop.Node
	resolved := d.Resolve(declared)

	hints := make(map[string]any, len(resolved.Hints)+len(declared.Hints))
	for k, v := range resolved.Hints {
		hints[k] = v
	}
	if declared != resolved {
		for k, v := range declared.Hints {
			hints[k] = v
		}
	}
	ui := hintsFrom(hints)

	fd := FieldDescriptor{
		Key:      prop.Name,
		Kind:     resolved.Kind,
		Node:     resolved,
		RefModel: RefName(declared.Ref),
		Required: parent.IsRequired(prop.Name) || ui.Required,
		UI:       ui,
		Enum:     resolved.Enum,
		Default:  resolved.Default,
		Hints:    hints,
	}
	if declared.HasDefault {
		fd.Default = declared.Default
	}

	if resolved.Kind == KindArray && resolved.Items != nil {
		fd.ItemNode = d.Resolve(resolved.Items)
		fd.ItemKind = fd.ItemNode.Kind
		fd.ItemModel = RefName(resolved.Items.Ref)
	}

	return fd
}

// FindParent scans the definitions in declaration order for one that has a
// property named after the lower-camel-cased model name. The first match
// wins; schemas that embed the same property name in several definitions are
// ambiguous and resolve to the earliest declaration.
func (d *Document) FindParent(modelName string) (*ParentRef, bool) {
	key := lowerCamel(modelName)
	for _, def := range d.Defs {
		if def.Name == modelName {
			continue
		}
		node := d.Resolve(def.Node)
		prop, ok := node.Property(key)
		if !ok {
			continue
		}
		return &ParentRef{
			Parent:       def.Name,
			Node:         node,
			XPath:        key,
			IsCollection: d.Resolve(prop).Kind == KindArray,
		}, true
	}
	return nil, false
}

func lowerCamel(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
