// Package filter parses and evaluates the row filter expressions of table
// views, such as `side == "BUY" && price >= 10`.
package filter

import "fmt"

// Operator represents a logical or comparison operator
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreaterThan    Operator = ">"
	OpLessThan       Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "contains"
	OpAnd            Operator = "&&"
	OpOr             Operator = "||"
	OpNot            Operator = "!"
)

// ValueType represents the type of a literal
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeNull    ValueType = "null"
)

// Expression is the interface for all AST nodes
type Expression interface {
	Evaluate(ctx Context) (any, error)
}

// Context is the evaluation scope: one table row or data object
type Context map[string]any

// SyntaxError reports an expression that could not be parsed
type SyntaxError struct {
	Expr   string
	Reason string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Expr, e.Reason)
}

// BinaryExpression represents a binary operation (e.g., A == B)
type BinaryExpression struct {
	Left     Expression
	Operator Operator
	Right    Expression
}

// UnaryExpression negates its operand
type UnaryExpression struct {
	Operator Operator
	Operand  Expression
}

// Literal represents a constant value
type Literal struct {
	Value any
	Type  ValueType
}

func (l *Literal) Evaluate(ctx Context) (any, error) {
	return l.Value, nil
}

// Identifier looks up a field of the row. Dotted and indexed names such as
// limits.max_qty or lines[0].sku address nested values.
type Identifier struct {
	Name string
}

func (i *Identifier) Evaluate(ctx Context) (any, error) {
	v, _ := lookup(ctx, i.Name)
	return v, nil // Treat missing as null
}
