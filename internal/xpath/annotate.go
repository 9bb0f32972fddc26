package xpath

const (
	// KeyXPath holds the logical address of an annotated object node
	KeyXPath = "xpath"
	// KeyDataXPath holds the storage address of an annotated array element.
	// It differs from KeyXPath when a sub-graph is displayed reshaped, for
	// example a nested model mounted at the root of its own view.
	KeyDataXPath = "dataxpath"
)

// IsAnnotationKey reports whether k is one of the reserved annotation keys
func IsAnnotationKey(k string) bool {
	return k == KeyXPath || k == KeyDataXPath
}

// AddXPath returns a deep copy of obj in which every object node below the
// root carries its xpath, and every object element of an array additionally
// carries its dataxpath. Running it on an already annotated graph yields an
// equal graph.
func AddXPath(obj any) any {
	return Annotate(obj, "", "")
}

// Annotate is AddXPath for a graph whose root lives at logical address base
// and storage address dataBase.
func Annotate(obj any, base, dataBase string) any {
	return annotate(obj, base, dataBase, false, base != "")
}

func annotate(v any, logical, data string, inArray, stamp bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t)+2)
		for k, child := range t {
			if IsAnnotationKey(k) {
				continue
			}
			out[k] = annotate(child, Child(logical, k), Child(data, k), false, true)
		}
		if stamp {
			out[KeyXPath] = logical
			if inArray {
				out[KeyDataXPath] = data
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = annotate(child, Index(logical, i), Index(data, i), true, true)
		}
		return out
	default:
		return v
	}
}

// ClearXPath returns a deep copy of obj with all annotations removed. It is
// the inverse of AddXPath and is applied before a graph leaves the process.
func ClearXPath(obj any) any {
	switch t := obj.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if IsAnnotationKey(k) {
				continue
			}
			out[k] = ClearXPath(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = ClearXPath(child)
		}
		return out
	default:
		return obj
	}
}

// IsAnnotated reports whether any object node in obj carries an xpath
func IsAnnotated(obj any) bool {
	switch t := obj.(type) {
	case map[string]any:
		if _, ok := t[KeyXPath]; ok {
			return true
		}
		for k, child := range t {
			if !IsAnnotationKey(k) && IsAnnotated(child) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if IsAnnotated(child) {
				return true
			}
		}
	}
	return false
}

// XPathOf returns the logical and storage addresses stamped on an annotated
// object node
func XPathOf(node any) (logical, data string, ok bool) {
	m, isMap := node.(map[string]any)
	if !isMap {
		return "", "", false
	}
	logical, ok = m[KeyXPath].(string)
	if !ok {
		return "", "", false
	}
	data, hasData := m[KeyDataXPath].(string)
	if !hasData {
		data = logical
	}
	return logical, data, true
}
