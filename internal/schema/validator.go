package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flowmesh/schemaui/internal/xpath"
)

const resourceName = "schema.json"

// Validator validates model instances against their definition. Compiled
// schemas are cached per document and model.
type Validator struct {
	mu       sync.RWMutex
	compiled map[*Document]map[string]*jsonschema.Schema
}

// NewValidator creates a new schema validator
func NewValidator() *Validator {
	return &Validator{
		compiled: make(map[*Document]map[string]*jsonschema.Schema),
	}
}

// Validate checks instance against the named model. Annotations are stripped
// first. Constraint failures are returned as ValidationErrors; compile
// failures are returned as a plain error.
func (v *Validator) Validate(doc *Document, model string, instance any) error {
	compiled, err := v.compile(doc, model)
	if err != nil {
		return err
	}

	if err := compiled.Validate(xpath.ClearXPath(instance)); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return flatten(verr)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// compile compiles the model's definition and caches it
func (v *Validator) compile(doc *Document, model string) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if byModel, ok := v.compiled[doc]; ok {
		if s, ok := byModel[model]; ok {
			v.mu.RUnlock()
			return s, nil
		}
	}
	v.mu.RUnlock()

	node, err := doc.ResolveModel(model)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(doc.Raw())); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	url := resourceName
	if node.Pointer != "#" {
		url += node.Pointer
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", model, err)
	}

	v.mu.Lock()
	if _, ok := v.compiled[doc]; !ok {
		v.compiled[doc] = make(map[string]*jsonschema.Schema)
	}
	v.compiled[doc][model] = compiled
	v.mu.Unlock()

	return compiled, nil
}

// Forget drops compiled schemas of a document that is no longer current
func (v *Validator) Forget(doc *Document) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.compiled, doc)
}

// flatten collects the leaf causes of a validation error
func flatten(verr *jsonschema.ValidationError) ValidationErrors {
	var out ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, ValidationError{
				XPath:   pointerToXPath(e.InstanceLocation),
				Message: e.Message,
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

// pointerToXPath converts an instance JSON pointer such as /orders/0/price
// into orders[0].price. Numeric segments are treated as array indices.
func pointerToXPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	var segs []xpath.Segment
	for _, part := range strings.Split(ptr, "/") {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			segs = append(segs, xpath.Segment{Index: n, IsIndex: true})
			continue
		}
		segs = append(segs, xpath.Segment{Key: unescapePointer(part)})
	}
	return xpath.Join(segs)
}
