package schema

import "fmt"

// NotFoundError indicates a model name could not be resolved in the schema
type NotFoundError struct {
	Model string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("model not found in schema: %s", e.Model)
}

// InvalidSchemaError indicates the schema document could not be loaded
type InvalidSchemaError struct {
	Reason string
}

func (e InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema: %s", e.Reason)
}

// ValidationError is one failed constraint of a model instance
type ValidationError struct {
	// XPath addresses the offending value, empty for the instance itself
	XPath   string `json:"xpath"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.XPath == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.XPath, e.Message)
}

// ValidationErrors aggregates the failures of one validation pass
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
}
