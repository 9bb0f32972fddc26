// Package tree materializes an editable node tree from a schema model and a
// pair of data graphs: the working copy and its baseline.
//
// Build is a pure function of its inputs. Edits are applied through the
// command helpers in edit.go, which return new graphs instead of mutating.
package tree

import "github.com/flowmesh/schemaui/internal/schema"

// Mode is the editing mode of a widget
type Mode string

const (
	ModeRead Mode = "read"
	ModeEdit Mode = "edit"
)

// Node is one renderable tree entry
type Node struct {
	XPath     string      `json:"xpath"`
	DataXPath string      `json:"dataxpath"`
	Name      string      `json:"name"`
	Title     string      `json:"title"`
	Kind      schema.Kind `json:"kind"`
	Help      string      `json:"help,omitempty"`
	Enum      []any       `json:"enum,omitempty"`
	// Autocomplete lists suggestion sources for string fields
	Autocomplete []string `json:"autocomplete,omitempty"`

	Value         any  `json:"value,omitempty"`
	PreviousValue any  `json:"previousValue,omitempty"`
	Changed       bool `json:"changed,omitempty"`

	Editable  bool `json:"editable"`
	Removable bool `json:"removable"`
	Addable   bool `json:"addable"`
	Required  bool `json:"required,omitempty"`
	Invalid   bool `json:"invalid,omitempty"`
	Expanded  bool `json:"expanded"`
	Hidden    bool `json:"hidden,omitempty"`
	// Added marks nodes that do not exist in the baseline
	Added bool `json:"added,omitempty"`
	// Removed marks baseline elements removed from the working copy. They are
	// rendered from the baseline and are never editable.
	Removed bool `json:"removed,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// Options are the inputs of Build besides the schema
type Options struct {
	// Data is the working copy
	Data any
	// Baseline is the last confirmed value, nil for a new instance
	Baseline any
	Mode     Mode
	// ShowHidden includes fields marked hide
	ShowHidden bool
	// Expand holds per-xpath collapse state; nil means everything expanded
	Expand *ExpandState
}
