// Package schema loads the JSON Schema that describes the administered models
// and walks it to enumerate fields, types and UI hints.
package schema

// Kind is the tagged variant of a schema node. Every node resolves to exactly
// one kind; rendering code switches over it exhaustively.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	// KindUnknown marks a node whose type could not be determined, such as an
	// unresolvable $ref
	KindUnknown Kind = ""
)

// IsScalar reports whether values of this kind are leaves
func (k Kind) IsScalar() bool {
	switch k {
	case KindString, KindNumber, KindBoolean, KindEnum:
		return true
	}
	return false
}

// Node is one schema definition. Nodes are immutable once the document is
// loaded.
type Node struct {
	// Name is the definition or property name the node was declared under
	Name string
	// Pointer is the JSON pointer of the node inside the document
	Pointer string
	// Kind is the resolved variant. Nodes that only hold a $ref have the kind
	// of their target once resolved through Document.Resolve.
	Kind Kind
	// Type is the raw "type" keyword
	Type string
	// Format is the raw "format" keyword
	Format string
	// Ref is the raw "$ref" keyword
	Ref string
	// Properties lists object properties in declaration order
	Properties []Property
	// Items is the element schema of an array
	Items *Node
	// Enum lists the permitted values of an enum
	Enum []any
	// Default is the declared default value, valid when HasDefault is set
	Default    any
	HasDefault bool
	// MinItems is the minimum cardinality of an array
	MinItems int
	// RequiredFields is the JSON Schema "required" list of an object
	RequiredFields []string
	// Hints holds every non-structural keyword, including UI metadata
	Hints map[string]any
}

// Property is a named member of an object node
type Property struct {
	Name string
	Node *Node
}

// Property returns the named property of n
func (n *Node) Property(name string) (*Node, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Node, true
		}
	}
	return nil, false
}

// IsRequired reports whether field is listed in the object's required list
func (n *Node) IsRequired(field string) bool {
	for _, r := range n.RequiredFields {
		if r == field {
			return true
		}
	}
	return false
}

// UI returns the typed UI metadata of the node
func (n *Node) UI() UIHints {
	return hintsFrom(n.Hints)
}

// UIHints is the UI metadata the engine understands
type UIHints struct {
	Title            string
	Help             string
	Hide             bool
	Required         bool
	ServerPopulate   bool
	OrmNoUpdate      bool
	JSONRoot         bool
	AutocompleteList []string
	Layout           string
	SequenceNumber   int
	Abbreviated      string
	// IDField names the identity field of a JSON-root model, "_id" when unset
	IDField string
}

// Hint keys recognized on schema nodes
const (
	HintTitle          = "title"
	HintDescription    = "description"
	HintHelp           = "help"
	HintHide           = "hide"
	HintRequired       = "ui_required"
	HintServerPopulate = "server_populate"
	HintOrmNoUpdate    = "orm_no_update"
	HintJSONRoot       = "json_root"
	HintAutocomplete   = "autocomplete"
	HintLayout         = "layout"
	HintSequenceNumber = "sequence_number"
	HintAbbreviated    = "abbreviated"
	HintIDField        = "id_field"
)

// DefaultIDField is the identity field of a model instance once stored
const DefaultIDField = "_id"

func hintsFrom(h map[string]any) UIHints {
	ui := UIHints{
		Title:          stringHint(h, HintTitle),
		Help:           stringHint(h, HintHelp),
		Hide:           boolHint(h, HintHide),
		Required:       boolHint(h, HintRequired),
		ServerPopulate: boolHint(h, HintServerPopulate),
		OrmNoUpdate:    boolHint(h, HintOrmNoUpdate),
		JSONRoot:       boolHint(h, HintJSONRoot),
		Layout:         stringHint(h, HintLayout),
		Abbreviated:    stringHint(h, HintAbbreviated),
		IDField:        stringHint(h, HintIDField),
	}
	if ui.Help == "" {
		ui.Help = stringHint(h, HintDescription)
	}
	if ui.IDField == "" {
		ui.IDField = DefaultIDField
	}
	if n, ok := h[HintSequenceNumber].(float64); ok {
		ui.SequenceNumber = int(n)
	}
	switch v := h[HintAutocomplete].(type) {
	case string:
		ui.AutocompleteList = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				ui.AutocompleteList = append(ui.AutocompleteList, s)
			}
		}
	}
	return ui
}

func stringHint(h map[string]any, key string) string {
	s, _ := h[key].(string)
	return s
}

func boolHint(h map[string]any, key string) bool {
	b, _ := h[key].(bool)
	return b
}

// FieldDescriptor is a property of a model with its $ref resolved and its UI
// hints merged: hints declared on the property override those of the
// referenced definition.
type FieldDescriptor struct {
	// Key is the property name
	Key string
	// Kind is the resolved kind
	Kind Kind
	// Node is the resolved schema node
	Node *Node
	// RefModel names the definition the property refers to, if any
	RefModel string
	// ItemKind is the resolved kind of array elements
	ItemKind Kind
	// ItemNode is the resolved element schema of an array
	ItemNode *Node
	// ItemModel names the definition array elements refer to, if any
	ItemModel string
	// Required is set when the field is in the parent's required list or
	// carries the ui_required hint
	Required bool
	UI       UIHints
	Enum     []any
	Default  any
	// Hints is the merged raw hint map
	Hints map[string]any
}

// Title returns the display title, falling back to the key
func (f FieldDescriptor) Title() string {
	if f.UI.Title != "" {
		return f.UI.Title
	}
	return f.Key
}

// ParentRef locates the definition that embeds a model as one of its
// properties
type ParentRef struct {
	// Parent is the embedding definition's name
	Parent string
	// Node is the embedding definition
	Node *Node
	// XPath is the property under which the model is mounted
	XPath string
	// IsCollection is set when the property is an array of the model
	IsCollection bool
}
