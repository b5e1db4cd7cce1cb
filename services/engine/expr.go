package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Condition expressions are parsed once into a small tagged tree instead of
// being rebuilt and evaluated as code at runtime. Identifiers stay raw
// ColumnRefs until Resolve binds them against a concrete window schema,
// where a trailing _N suffix turns into a lookback shift.

type Expr interface{ exprNode() }

type ColumnRef struct{ Name string }

type ShiftedColumnRef struct {
	Name  string
	Shift int
}

type Literal struct{ Value float64 }

type CompareOp int

const (
	OpGt CompareOp = iota
	OpLt
	OpEq
)

type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

type And struct{ Left, Right Expr }

type Or struct{ Left, Right Expr }

type Not struct{ Expr Expr }

func (ColumnRef) exprNode()        {}
func (ShiftedColumnRef) exprNode() {}
func (Literal) exprNode()         {}
func (Compare) exprNode()         {}
func (And) exprNode()             {}
func (Or) exprNode()              {}
func (Not) exprNode()             {}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokOp     // > < ==
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '>' || c == '<':
			toks = append(toks, token{tokOp, string(c)})
			i++
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{tokOp, "=="})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected %q at offset %d (did you mean ==?)", c, i)
			}
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			word := src[i:j]
			switch word {
			case "and":
				toks = append(toks, token{tokAnd, word})
			case "or":
				toks = append(toks, token{tokOr, word})
			case "not":
				toks = append(toks, token{tokNot, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// Parse translates one condition string into an expression tree. The
// grammar is booleans over comparisons:
//
//	or   := and ("or" and)*
//	and  := unary ("and" unary)*
//	unary := "not" unary | "(" or ")" | comparison
//	comparison := operand (">"|"<"|"==") operand
//	operand := NUMBER | IDENT
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q after expression", t.text)
	}
	return e, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.peek().kind {
	case tokNot:
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected ), got %q", t.text)
		}
		return inner, nil
	default:
		return p.parseComparison()
	}
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind != tokOp {
		return nil, fmt.Errorf("expected comparison operator, got %q", t.text)
	}
	var op CompareOp
	switch t.text {
	case ">":
		op = OpGt
	case "<":
		op = OpLt
	case "==":
		op = OpEq
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return Compare{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseOperand() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return Literal{Value: v}, nil
	case tokIdent:
		return ColumnRef{Name: t.text}, nil
	default:
		return nil, fmt.Errorf("expected column or number, got %q", t.text)
	}
}

// Resolve binds identifiers against a window schema. An exact column match
// wins; otherwise a trailing _N suffix whose base is a column becomes a
// ShiftedColumnRef; anything else is a TranslationError.
func Resolve(e Expr, hasCol func(string) bool) (Expr, error) {
	switch n := e.(type) {
	case ColumnRef:
		if hasCol(n.Name) {
			return n, nil
		}
		if idx := strings.LastIndexByte(n.Name, '_'); idx > 0 {
			base, suffix := n.Name[:idx], n.Name[idx+1:]
			if shift, err := strconv.Atoi(suffix); err == nil && shift > 0 && hasCol(base) {
				return ShiftedColumnRef{Name: base, Shift: shift}, nil
			}
		}
		return nil, &TranslationError{Name: n.Name}
	case ShiftedColumnRef:
		if !hasCol(n.Name) {
			return nil, &TranslationError{Name: n.Name}
		}
		return n, nil
	case Literal:
		return n, nil
	case Compare:
		left, err := Resolve(n.Left, hasCol)
		if err != nil {
			return nil, err
		}
		right, err := Resolve(n.Right, hasCol)
		if err != nil {
			return nil, err
		}
		return Compare{Op: n.Op, Left: left, Right: right}, nil
	case And:
		left, err := Resolve(n.Left, hasCol)
		if err != nil {
			return nil, err
		}
		right, err := Resolve(n.Right, hasCol)
		if err != nil {
			return nil, err
		}
		return And{Left: left, Right: right}, nil
	case Or:
		left, err := Resolve(n.Left, hasCol)
		if err != nil {
			return nil, err
		}
		right, err := Resolve(n.Right, hasCol)
		if err != nil {
			return nil, err
		}
		return Or{Left: left, Right: right}, nil
	case Not:
		inner, err := Resolve(n.Expr, hasCol)
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}
