package xpath

// InsertAt returns a copy-on-write graph with elem inserted into the array at
// arrayPath before position index. The inserted element and every element
// after it are re-annotated so no sibling keeps a stale index. Graphs that
// carry no annotations are left unannotated.
func InsertAt(obj any, arrayPath string, index int, elem any) (any, error) {
	cur, _ := Get(obj, arrayPath)
	var arr []any
	if cur != nil {
		var ok bool
		if arr, ok = cur.([]any); !ok {
			return obj, NotArrayError{XPath: arrayPath}
		}
	}
	if index < 0 || index > len(arr) {
		return obj, IndexOutOfRangeError{XPath: arrayPath, Index: index, Length: len(arr)}
	}

	next := make([]any, 0, len(arr)+1)
	next = append(next, arr[:index]...)
	next = append(next, elem)
	next = append(next, arr[index:]...)

	if IsAnnotated(obj) {
		next = reannotateFrom(next, arrayPath, dataPathOf(arr, arrayPath), index)
	}
	return With(obj, arrayPath, next)
}

// Append inserts elem at the end of the array at arrayPath
func Append(obj any, arrayPath string, elem any) (any, error) {
	cur, _ := Get(obj, arrayPath)
	arr, _ := cur.([]any)
	return InsertAt(obj, arrayPath, len(arr), elem)
}

// RemoveAt returns a copy-on-write graph with element index removed from the
// array at arrayPath. Subsequent elements are re-annotated with their new
// positions.
func RemoveAt(obj any, arrayPath string, index int) (any, error) {
	cur, ok := Get(obj, arrayPath)
	if !ok {
		return obj, NotArrayError{XPath: arrayPath}
	}
	arr, ok := cur.([]any)
	if !ok {
		return obj, NotArrayError{XPath: arrayPath}
	}
	if index < 0 || index >= len(arr) {
		return obj, IndexOutOfRangeError{XPath: arrayPath, Index: index, Length: len(arr)}
	}

	next := make([]any, 0, len(arr)-1)
	next = append(next, arr[:index]...)
	next = append(next, arr[index+1:]...)

	if IsAnnotated(arr) {
		next = reannotateFrom(next, arrayPath, dataPathOf(arr, arrayPath), index)
	}
	return With(obj, arrayPath, next)
}

// dataPathOf recovers the storage address of an array from its first
// annotated element, falling back to the logical address.
func dataPathOf(arr []any, logical string) string {
	for i, el := range arr {
		if _, data, ok := XPathOf(el); ok {
			if parent, last, err := Split(data); err == nil && last.IsIndex && last.Index == i {
				return parent
			}
		}
	}
	return logical
}

func reannotateFrom(arr []any, logical, data string, from int) []any {
	for i := from; i < len(arr); i++ {
		arr[i] = annotate(arr[i], Index(logical, i), Index(data, i), true, true)
	}
	return arr
}
