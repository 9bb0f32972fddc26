package filter

import (
	"strconv"
	"strings"
	"text/scanner"
)

// Parse parses a filter expression. The empty expression parses to nil,
// which matches every row.
func Parse(expr string) (Expression, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	var s scanner.Scanner
	s.Init(strings.NewReader(expr))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	// Don't skip unexpected characters, we handle them
	s.Error = func(s *scanner.Scanner, msg string) {}

	p := &parser{s: &s, expr: expr}
	p.next()

	res, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected token at end of expression: " + p.lit)
	}

	return res, nil
}

type parser struct {
	s    *scanner.Scanner
	expr string
	tok  rune
	lit  string
}

// opToken marks a scanned multi-character operator
const opToken = -100

// operatorPairs maps the first rune of a two-rune operator to its second
var operatorPairs = map[rune]rune{'=': '=', '!': '=', '<': '=', '>': '=', '&': '&', '|': '|'}

func (p *parser) errorf(reason string) error {
	return SyntaxError{Expr: p.expr, Reason: reason}
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.lit = p.s.TokenText()

	if second, ok := operatorPairs[p.tok]; ok && p.s.Peek() == second {
		p.s.Scan()
		p.lit = string(p.tok) + string(second)
		p.tok = opToken
	}
}

func (p *parser) parseOr() (Expression, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.lit == "||" {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpression{Left: lhs, Operator: OpOr, Right: rhs}
	}

	return lhs, nil
}

func (p *parser) parseAnd() (Expression, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.lit == "&&" {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpression{Left: lhs, Operator: OpAnd, Right: rhs}
	}

	return lhs, nil
}

func (p *parser) parseUnary() (Expression, error) {
	if p.tok == '!' {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expression, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	switch p.lit {
	case "==", "!=", ">", "<", ">=", "<=", "contains":
		op := Operator(p.lit)
		p.next()
		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &BinaryExpression{Left: lhs, Operator: op, Right: rhs}, nil
	}

	return lhs, nil
}

func (p *parser) parsePrimary() (Expression, error) {
	switch p.tok {
	case scanner.Ident:
		switch p.lit {
		case "true", "false":
			v := p.lit == "true"
			p.next()
			return &Literal{Value: v, Type: TypeBoolean}, nil
		case "null":
			p.next()
			return &Literal{Type: TypeNull}, nil
		}
		return p.parsePath()
	case scanner.String:
		val, err := strconv.Unquote(p.lit)
		if err != nil {
			return nil, p.errorf("bad string literal " + p.lit)
		}
		p.next()
		return &Literal{Value: val, Type: TypeString}, nil
	case scanner.Int, scanner.Float:
		f, err := strconv.ParseFloat(p.lit, 64)
		if err != nil {
			return nil, p.errorf("bad number " + p.lit)
		}
		p.next()
		return &Literal{Value: f, Type: TypeNumber}, nil
	case '-':
		p.next()
		if p.tok != scanner.Int && p.tok != scanner.Float {
			return nil, p.errorf("expected number after '-'")
		}
		f, err := strconv.ParseFloat(p.lit, 64)
		if err != nil {
			return nil, p.errorf("bad number " + p.lit)
		}
		p.next()
		return &Literal{Value: -f, Type: TypeNumber}, nil
	case '(':
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.lit != ")" {
			return nil, p.errorf("expected closing parenthesis")
		}
		p.next()
		return expr, nil
	case scanner.EOF:
		return nil, p.errorf("unexpected end of expression")
	default:
		return nil, p.errorf("unexpected token: " + p.lit)
	}
}

// parsePath reads a field reference such as lines[0].sku
func (p *parser) parsePath() (Expression, error) {
	var b strings.Builder
	b.WriteString(p.lit)
	p.next()

	for {
		switch p.lit {
		case ".":
			p.next()
			if p.tok != scanner.Ident {
				return nil, p.errorf("expected identifier after dot")
			}
			b.WriteString("." + p.lit)
			p.next()
		case "[":
			p.next()
			if p.tok != scanner.Int {
				return nil, p.errorf("expected index inside brackets")
			}
			b.WriteString("[" + p.lit + "]")
			p.next()
			if p.lit != "]" {
				return nil, p.errorf("expected closing bracket")
			}
			p.next()
		default:
			return &Identifier{Name: b.String()}, nil
		}
	}
}
