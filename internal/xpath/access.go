package xpath

// Get resolves xpath against obj. Missing intermediate nodes are not an error:
// the second return value is false and the value is nil.
func Get(obj any, p string) (any, bool) {
	segs, err := Parse(p)
	if err != nil {
		return nil, false
	}
	return getSegments(obj, segs)
}

func getSegments(obj any, segs []Segment) (any, bool) {
	cur := obj
	for _, s := range segs {
		if s.IsIndex {
			arr, ok := cur.([]any)
			if !ok || s.Index >= len(arr) {
				return nil, false
			}
			cur = arr[s.Index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s.Key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at xpath inside obj, creating intermediate objects and
// arrays as needed. Containers along the path are updated in place; the
// returned root differs from obj only when obj itself had to be created or
// grown. Set fails with PathConflictError when the path would have to pass
// through an existing scalar.
func Set(obj any, p string, value any) (any, error) {
	segs, err := Parse(p)
	if err != nil {
		return obj, err
	}
	return setSegments(obj, segs, value, p, false)
}

// With is the copy-on-write form of Set: obj is left untouched and a new root
// is returned in which only the containers along the path are fresh copies.
// Branches off the path are shared with obj, so callers must treat both
// graphs as immutable.
func With(obj any, p string, value any) (any, error) {
	segs, err := Parse(p)
	if err != nil {
		return obj, err
	}
	return setSegments(obj, segs, value, p, true)
}

func setSegments(cur any, segs []Segment, value any, full string, copyOnWrite bool) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}

	s := segs[0]
	rest := segs[1:]

	if s.IsIndex {
		var arr []any
		switch t := cur.(type) {
		case nil:
			arr = nil
		case []any:
			arr = t
			if copyOnWrite {
				arr = append([]any(nil), t...)
			}
		default:
			return cur, PathConflictError{XPath: full, Segment: s.String(), Found: kindName(cur)}
		}
		for len(arr) <= s.Index {
			arr = append(arr, nil)
		}
		child, err := setSegments(arr[s.Index], rest, value, full, copyOnWrite)
		if err != nil {
			return cur, err
		}
		arr[s.Index] = child
		return arr, nil
	}

	var m map[string]any
	switch t := cur.(type) {
	case nil:
		m = make(map[string]any)
	case map[string]any:
		m = t
		if copyOnWrite {
			m = make(map[string]any, len(t)+1)
			for k, v := range t {
				m[k] = v
			}
		}
	default:
		return cur, PathConflictError{XPath: full, Segment: s.Key, Found: kindName(cur)}
	}
	child, err := setSegments(m[s.Key], rest, value, full, copyOnWrite)
	if err != nil {
		return cur, err
	}
	m[s.Key] = child
	return m, nil
}

// Delete returns a copy-on-write graph with the property or array element at
// xpath removed. Array removal shifts subsequent elements down.
func Delete(obj any, p string) (any, error) {
	parent, last, err := Split(p)
	if err != nil {
		return obj, err
	}
	container, ok := Get(obj, parent)
	if !ok {
		return obj, nil
	}

	if last.IsIndex {
		return RemoveAt(obj, parent, last.Index)
	}

	m, ok := container.(map[string]any)
	if !ok {
		return obj, PathConflictError{XPath: p, Segment: last.Key, Found: kindName(container)}
	}
	if _, exists := m[last.Key]; !exists {
		return obj, nil
	}
	next := make(map[string]any, len(m))
	for k, v := range m {
		if k != last.Key {
			next[k] = v
		}
	}

	return With(obj, parent, next)
}

func kindName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return "value"
}
