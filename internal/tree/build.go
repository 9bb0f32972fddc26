package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// Build materializes the tree of model from opts. Unknown models fail with
// schema.NotFoundError so callers can render a placeholder.
func Build(doc *schema.Document, model string, opts Options) ([]*Node, error) {
	root, err := doc.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	b := &builder{doc: doc, opts: opts}
	return b.fields(root, "", "", opts.Data, opts.Baseline, scope{added: opts.Baseline == nil}), nil
}

// scope carries the element state inherited by descendants
type scope struct {
	added   bool
	removed bool
}

type builder struct {
	doc  *schema.Document
	opts Options
}

// editable is the single editability rule: edit mode, not server populated,
// not orm_no_update unless newly added, and not removed
func (b *builder) editable(ui schema.UIHints, sc scope) bool {
	return b.opts.Mode == ModeEdit &&
		!ui.ServerPopulate &&
		(!ui.OrmNoUpdate || sc.added) &&
		!sc.removed
}

func (b *builder) fields(node *schema.Node, xp, dataXP string, cur, prev any, sc scope) []*Node {
	curMap, _ := cur.(map[string]any)
	prevMap, _ := prev.(map[string]any)

	fields := b.doc.ListFields(node)
	out := make([]*Node, 0, len(fields))
	for _, f := range fields {
		if f.UI.Hide && !b.opts.ShowHidden {
			continue
		}
		c, cok := curMap[f.Key]
		p, pok := prevMap[f.Key]
		out = append(out, b.field(f, xpath.Child(xp, f.Key), xpath.Child(dataXP, f.Key), c, cok, p, pok, sc))
	}
	return out
}

func (b *builder) field(f schema.FieldDescriptor, xp, dataXP string, cur any, curOK bool, prev any, prevOK bool, sc scope) *Node {
	n := b.newNode(f, xp, dataXP, sc)
	editable := b.editable(f.UI, sc)

	switch f.Kind {
	case schema.KindObject:
		_, curIsMap := cur.(map[string]any)
		_, prevIsMap := prev.(map[string]any)
		if !curIsMap && !prevIsMap {
			n.Addable = editable
			return n
		}
		child := sc
		if !prevIsMap {
			child.added = true
			n.Added = true
		}
		if !curIsMap && !sc.removed {
			// cleared locally, render what the baseline had
			child.removed = true
			n.Removed = true
			cur = prev
		}
		n.Removable = editable && curIsMap && !f.Required
		n.Children = b.fields(f.Node, xp, dataXP, cur, prev, child)
	case schema.KindArray:
		n.Addable = editable
		n.Children = b.elements(f, xp, dataXP, cur, prev, sc)
	default:
		n.Value = cur
		if prevOK {
			n.PreviousValue = prev
		}
		n.Changed = curOK != prevOK || !xpath.Equal(cur, prev)
		n.Editable = editable
		n.Invalid = !sc.removed && f.Required && isEmpty(f.Kind, cur)
	}
	return n
}

func (b *builder) elements(f schema.FieldDescriptor, xp, dataXP string, cur, prev any, sc scope) []*Node {
	curArr, _ := cur.([]any)
	prevArr, _ := prev.([]any)

	count := len(curArr)
	if len(prevArr) > count {
		count = len(prevArr)
	}
	minItems := 0
	if f.Node != nil {
		minItems = f.Node.MinItems
	}

	var abbreviated string
	if f.ItemNode != nil {
		abbreviated = f.ItemNode.UI().Abbreviated
	}

	out := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		es := sc
		var c, p any
		cok := i < len(curArr)
		pok := i < len(prevArr)
		if pok {
			p = prevArr[i]
		}
		if cok {
			c = curArr[i]
		} else {
			es.removed = true
			c = p
		}
		if !pok {
			es.added = true
		}

		exp := xpath.Index(xp, i)
		dexp := xpath.Index(dataXP, i)
		if _, data, ok := xpath.XPathOf(c); ok && cok {
			dexp = data
		}

		en := &Node{
			XPath:     exp,
			DataXPath: dexp,
			Name:      strconv.Itoa(i),
			Title:     elementTitle(f, i, c, abbreviated),
			Kind:      f.ItemKind,
			Expanded:  b.opts.Expand.IsExpanded(exp),
			Added:     es.added,
			Removed:   es.removed,
		}
		en.Removable = b.editable(f.UI, es) && len(curArr) > minItems

		if f.ItemKind == schema.KindObject {
			if _, ok := c.(map[string]any); ok {
				en.Children = b.fields(f.ItemNode, exp, dexp, c, p, es)
			}
		} else {
			en.Value = c
			if pok {
				en.PreviousValue = p
			}
			en.Changed = !cok || !pok || !xpath.Equal(c, p)
			en.Editable = b.editable(f.UI, es)
		}
		out = append(out, en)
	}
	return out
}

func (b *builder) newNode(f schema.FieldDescriptor, xp, dataXP string, sc scope) *Node {
	return &Node{
		XPath:        xp,
		DataXPath:    dataXP,
		Name:         f.Key,
		Title:        f.Title(),
		Kind:         f.Kind,
		Help:         f.UI.Help,
		Enum:         f.Enum,
		Autocomplete: f.UI.AutocompleteList,
		Required:     f.Required,
		Hidden:       f.UI.Hide,
		Expanded:     b.opts.Expand.IsExpanded(xp),
		Added:        sc.added,
		Removed:      sc.removed,
	}
}

func elementTitle(f schema.FieldDescriptor, i int, elem any, abbreviated string) string {
	if abbreviated != "" {
		if s := Abbreviate(elem, abbreviated); s != "" {
			return s
		}
	}
	return fmt.Sprintf("%s [%d]", f.Title(), i)
}

// isEmpty is the required+empty rule: an empty or missing string, or a
// missing number. Zero is a valid number and other kinds are never flagged.
func isEmpty(kind schema.Kind, v any) bool {
	switch kind {
	case schema.KindString:
		s, ok := v.(string)
		return v == nil || (ok && s == "")
	case schema.KindNumber:
		return v == nil
	}
	return false
}

// Abbreviate builds a composite display key from obj. format lists xpaths
// separated by "^"; present values are joined with "-".
func Abbreviate(obj any, format string) string {
	var parts []string
	for _, p := range strings.Split(format, "^") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, ok := xpath.Get(obj, p)
		if !ok || v == nil || xpath.IsContainer(v) {
			continue
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "-")
}

// Walk visits nodes depth-first
func Walk(nodes []*Node, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}

// Find returns the node at xp
func Find(nodes []*Node, xp string) *Node {
	var found *Node
	Walk(nodes, func(n *Node) {
		if found == nil && n.XPath == xp {
			found = n
		}
	})
	return found
}

// Invalid lists the xpaths of nodes that fail the required+empty rule
func Invalid(nodes []*Node) []string {
	var out []string
	Walk(nodes, func(n *Node) {
		if n.Invalid {
			out = append(out, n.XPath)
		}
	})
	return out
}
