package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// orderedObject is a decoded JSON object that remembers key order
type orderedObject struct {
	keys   []string
	values map[string]any
}

func (o *orderedObject) get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// decodeOrdered decodes a JSON document into orderedObject, []any and scalar
// values. Numbers decode as float64 to match encoding/json.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &orderedObject{values: make(map[string]any)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.values[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.values[key] = val
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return t, nil
	}
}

// plain converts ordered values back into the map form used for hints
func plain(v any) any {
	switch t := v.(type) {
	case *orderedObject:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plain(t.values[k])
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = plain(el)
		}
		return out
	default:
		return v
	}
}

// structural keywords are consumed by buildNode; everything else is a hint
var structural = map[string]bool{
	"type": true, "format": true, "$ref": true, "properties": true, "items": true,
	"enum": true, "default": true, "minItems": true, "required": true,
	"$defs": true, "definitions": true, "$schema": true, "$id": true,
}

func buildNode(name, pointer string, raw any) (*Node, error) {
	obj, ok := raw.(*orderedObject)
	if !ok {
		// "true" schemas and other shorthands carry no structure
		return &Node{Name: name, Pointer: pointer, Hints: map[string]any{}}, nil
	}

	n := &Node{Name: name, Pointer: pointer, Hints: make(map[string]any)}

	if v, ok := obj.get("type"); ok {
		switch t := v.(type) {
		case string:
			n.Type = t
		case []any:
			// nullable unions such as ["string","null"] take the first non-null type
			for _, el := range t {
				if s, ok := el.(string); ok && s != "null" {
					n.Type = s
					break
				}
			}
		}
	}
	n.Format, _ = valueString(obj, "format")
	n.Ref, _ = valueString(obj, "$ref")

	if v, ok := obj.get("enum"); ok {
		if arr, ok := v.([]any); ok {
			n.Enum = plain(arr).([]any)
		}
	}
	if v, ok := obj.get("default"); ok {
		n.Default = plain(v)
		n.HasDefault = true
	}
	if v, ok := obj.get("minItems"); ok {
		if f, ok := v.(float64); ok && f > 0 {
			n.MinItems = int(f)
		}
	}
	if v, ok := obj.get("required"); ok {
		switch t := v.(type) {
		case []any:
			for _, el := range t {
				if s, ok := el.(string); ok {
					n.RequiredFields = append(n.RequiredFields, s)
				}
			}
		case bool:
			// a boolean "required" on a property is a UI hint
			n.Hints[HintRequired] = t
		}
	}

	if v, ok := obj.get("properties"); ok {
		props, ok := v.(*orderedObject)
		if !ok {
			return nil, InvalidSchemaError{Reason: fmt.Sprintf("%s/properties must be an object", pointer)}
		}
		for _, key := range props.keys {
			child, err := buildNode(key, pointer+"/properties/"+escapePointer(key), props.values[key])
			if err != nil {
				return nil, err
			}
			n.Properties = append(n.Properties, Property{Name: key, Node: child})
		}
	}
	if v, ok := obj.get("items"); ok {
		items, err := buildNode(name, pointer+"/items", v)
		if err != nil {
			return nil, err
		}
		n.Items = items
	}

	for _, key := range obj.keys {
		if !structural[key] {
			n.Hints[key] = plain(obj.values[key])
		}
	}

	n.Kind = kindOf(n)
	return n, nil
}

// kindOf maps raw keywords onto the tagged variant. $ref-only nodes stay
// KindUnknown until resolved.
func kindOf(n *Node) Kind {
	if len(n.Enum) > 0 || n.Type == "enum" {
		return KindEnum
	}
	switch n.Type {
	case "string":
		return KindString
	case "number", "integer":
		return KindNumber
	case "boolean":
		return KindBoolean
	case "object":
		return KindObject
	case "array":
		return KindArray
	}
	if n.Ref != "" {
		return KindUnknown
	}
	if len(n.Properties) > 0 {
		return KindObject
	}
	if n.Items != nil {
		return KindArray
	}
	return KindUnknown
}

func valueString(obj *orderedObject, key string) (string, bool) {
	v, ok := obj.get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

func unescapePointer(s string) string {
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}
