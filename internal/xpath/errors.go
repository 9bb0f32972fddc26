package xpath

import "fmt"

// SyntaxError indicates an xpath string could not be parsed
type SyntaxError struct {
	XPath  string
	Offset int
	Reason string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("invalid xpath %q at offset %d: %s", e.XPath, e.Offset, e.Reason)
}

// PathConflictError indicates a write would have to descend through a value
// that is not a container of the required shape.
type PathConflictError struct {
	XPath   string
	Segment string
	Found   string
}

func (e PathConflictError) Error() string {
	return fmt.Sprintf("xpath %q conflicts with existing %s at %q", e.XPath, e.Found, e.Segment)
}

// NotArrayError indicates a splice targeted something other than an array
type NotArrayError struct {
	XPath string
}

func (e NotArrayError) Error() string {
	return fmt.Sprintf("xpath %q does not address an array", e.XPath)
}

// IndexOutOfRangeError indicates a splice index outside the array bounds
type IndexOutOfRangeError struct {
	XPath  string
	Index  int
	Length int
}

func (e IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range for %q (length %d)", e.Index, e.XPath, e.Length)
}
