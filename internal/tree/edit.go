package tree

import (
	"encoding/json"
	"strconv"

	"github.com/flowmesh/schemaui/internal/schema"
	"github.com/flowmesh/schemaui/internal/synth"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// FieldAt resolves xp against the schema of model. Array elements are
// described by their item schema and inherit the array's UI hints.
func FieldAt(doc *schema.Document, model, xp string) (schema.FieldDescriptor, error) {
	node, err := doc.ResolveModel(model)
	if err != nil {
		return schema.FieldDescriptor{}, err
	}
	segs, err := xpath.Parse(xp)
	if err != nil {
		return schema.FieldDescriptor{}, err
	}
	if len(segs) == 0 {
		return schema.FieldDescriptor{}, FieldNotFoundError{Model: model, XPath: xp}
	}

	var fd schema.FieldDescriptor
	for _, s := range segs {
		if s.IsIndex {
			if fd.Kind != schema.KindArray || fd.ItemNode == nil {
				return schema.FieldDescriptor{}, FieldNotFoundError{Model: model, XPath: xp}
			}
			fd = schema.FieldDescriptor{
				Key:      fd.Key,
				Kind:     fd.ItemKind,
				Node:     fd.ItemNode,
				RefModel: fd.ItemModel,
				UI:       fd.UI,
				Enum:     fd.ItemNode.Enum,
				Hints:    fd.Hints,
			}
			node = fd.Node
			continue
		}
		var ok bool
		if fd, ok = doc.Field(node, s.Key); !ok {
			return schema.FieldDescriptor{}, FieldNotFoundError{Model: model, XPath: xp}
		}
		node = fd.Node
	}
	return fd, nil
}

// IsAdded reports whether the location xp belongs to an element or object
// that does not exist in baseline yet
func IsAdded(baseline any, xp string) bool {
	if baseline == nil {
		return true
	}
	segs, err := xpath.Parse(xp)
	if err != nil {
		return false
	}
	for i := 1; i < len(segs); i++ {
		if v, ok := xpath.Get(baseline, xpath.Join(segs[:i])); !ok || v == nil {
			return true
		}
	}
	return false
}

// SetValue writes value at the leaf xp of data and returns the new graph.
// The value is coerced to the field's kind. Mode checks are the caller's.
func SetValue(doc *schema.Document, model string, data, baseline any, xp string, value any) (any, error) {
	fd, err := FieldAt(doc, model, xp)
	if err != nil {
		return data, err
	}
	if err := existingElements(data, xp); err != nil {
		return data, err
	}
	if fd.Kind == schema.KindObject || fd.Kind == schema.KindArray {
		return data, InvalidValueError{XPath: xp, Reason: "not a leaf field"}
	}
	if err := checkEditable(fd, baseline, xp); err != nil {
		return data, err
	}

	v, err := coerce(fd, xp, value)
	if err != nil {
		return data, err
	}
	return xpath.With(data, xp, v)
}

// AddElement appends a synthesized default element to the array at xp, or
// instantiates the absent object at xp
func AddElement(doc *schema.Document, model string, data, baseline any, xp string) (any, error) {
	fd, err := FieldAt(doc, model, xp)
	if err != nil {
		return data, err
	}
	if err := existingElements(data, xp); err != nil {
		return data, err
	}
	if err := checkEditable(fd, baseline, xp); err != nil {
		return data, err
	}

	switch fd.Kind {
	case schema.KindArray:
		var elem any
		if fd.ItemNode != nil {
			elem = synth.GenerateDefault(doc, fd.ItemNode)
		}
		return xpath.Append(data, xp, elem)
	case schema.KindObject:
		if cur, _ := xpath.Get(data, xp); cur != nil {
			return data, InvalidValueError{XPath: xp, Reason: "object already present"}
		}
		obj := synth.GenerateDefault(doc, fd.Node)
		if xpath.IsAnnotated(data) {
			obj = xpath.Annotate(obj, xp, xp)
		}
		return xpath.With(data, xp, obj)
	}
	return data, InvalidValueError{XPath: xp, Reason: "not an array or object"}
}

// RemoveElement removes the array element at xp, renumbering its later
// siblings, or clears the optional object at xp
func RemoveElement(doc *schema.Document, model string, data, baseline any, xp string) (any, error) {
	parent, last, err := xpath.Split(xp)
	if err != nil {
		return data, err
	}
	if err := existingElements(data, xp); err != nil {
		return data, err
	}

	if !last.IsIndex {
		fd, err := FieldAt(doc, model, xp)
		if err != nil {
			return data, err
		}
		if fd.Kind != schema.KindObject || fd.Required {
			return data, InvalidValueError{XPath: xp, Reason: "only array elements and optional objects can be removed"}
		}
		if err := checkEditable(fd, baseline, xp); err != nil {
			return data, err
		}
		return xpath.With(data, xp, nil)
	}

	fd, err := FieldAt(doc, model, parent)
	if err != nil {
		return data, err
	}
	if fd.Kind != schema.KindArray {
		return data, InvalidValueError{XPath: xp, Reason: "parent is not an array"}
	}
	if err := checkEditable(fd, baseline, xp); err != nil {
		return data, err
	}

	cur, _ := xpath.Get(data, parent)
	arr, _ := cur.([]any)
	if fd.Node != nil && len(arr)-1 < fd.Node.MinItems {
		return data, MinItemsError{XPath: parent, MinItems: fd.Node.MinItems}
	}
	return xpath.RemoveAt(data, parent, last.Index)
}

// existingElements fails unless every index in xp addresses an element
// already present in data. Elements are only created by AddElement.
func existingElements(data any, xp string) error {
	segs, err := xpath.Parse(xp)
	if err != nil {
		return err
	}
	for i, s := range segs {
		if !s.IsIndex {
			continue
		}
		parent := xpath.Join(segs[:i])
		cur, _ := xpath.Get(data, parent)
		arr, _ := cur.([]any)
		if s.Index >= len(arr) {
			return xpath.IndexOutOfRangeError{XPath: parent, Index: s.Index, Length: len(arr)}
		}
	}
	return nil
}

func checkEditable(fd schema.FieldDescriptor, baseline any, xp string) error {
	if fd.UI.ServerPopulate {
		return NotEditableError{XPath: xp, Reason: "populated by the server"}
	}
	if fd.UI.OrmNoUpdate && !IsAdded(baseline, xp) {
		return NotEditableError{XPath: xp, Reason: "cannot be updated once stored"}
	}
	return nil
}

func coerce(fd schema.FieldDescriptor, xp string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch fd.Kind {
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return nil, InvalidValueError{XPath: xp, Reason: "expected a string"}
		}
		return s, nil
	case schema.KindNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, InvalidValueError{XPath: xp, Reason: err.Error()}
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, InvalidValueError{XPath: xp, Reason: "expected a number"}
			}
			return f, nil
		}
		return nil, InvalidValueError{XPath: xp, Reason: "expected a number"}
	case schema.KindBoolean:
		switch b := value.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, InvalidValueError{XPath: xp, Reason: "expected a boolean"}
			}
			return parsed, nil
		}
		return nil, InvalidValueError{XPath: xp, Reason: "expected a boolean"}
	case schema.KindEnum:
		for _, allowed := range fd.Enum {
			if xpath.Equal(allowed, value) {
				return allowed, nil
			}
		}
		return nil, InvalidValueError{XPath: xp, Reason: "not one of the permitted values"}
	}
	return value, nil
}
