package tree

import "fmt"

// FieldNotFoundError indicates an xpath that the model's schema does not
// describe
type FieldNotFoundError struct {
	Model string
	XPath string
}

func (e FieldNotFoundError) Error() string {
	return fmt.Sprintf("no field %q in model %s", e.XPath, e.Model)
}

// NotEditableError indicates an edit of a read-only location
type NotEditableError struct {
	XPath  string
	Reason string
}

func (e NotEditableError) Error() string {
	return fmt.Sprintf("field %s is not editable: %s", e.XPath, e.Reason)
}

// InvalidValueError indicates a value that does not fit the field's kind
type InvalidValueError struct {
	XPath  string
	Reason string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.XPath, e.Reason)
}

// MinItemsError indicates a removal that would go below an array's minimum
// cardinality
type MinItemsError struct {
	XPath    string
	MinItems int
}

func (e MinItemsError) Error() string {
	return fmt.Sprintf("array %s requires at least %d elements", e.XPath, e.MinItems)
}
