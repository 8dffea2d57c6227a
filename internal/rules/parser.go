package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Node is a parsed condition-expression node.
type Node interface {
	// String renders the node back to a canonical expression.
	String() string
}

// Or evaluates true when any term is true. OR binds weaker than AND.
type Or struct {
	Terms []Node
}

func (n *Or) String() string {
	parts := make([]string, len(n.Terms))
	for i, t := range n.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// And evaluates true when every term is true.
type And struct {
	Terms []Node
}

func (n *And) String() string {
	parts := make([]string, len(n.Terms))
	for i, t := range n.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// Comparison is a single operand-operator-operand test.
type Comparison struct {
	Left  Operand
	Op    string
	Right Operand
}

func (n *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", n.Left.String(), n.Op, n.Right.String())
}

// Operand is either a numeric literal or a named indicator token, optionally
// parameterized by a period (e.g. EMA(21)).
type Operand struct {
	Literal   *float64
	Indicator string
	Period    int
}

func (o Operand) String() string {
	if o.Literal != nil {
		return strconv.FormatFloat(*o.Literal, 'f', -1, 64)
	}
	if o.Period > 0 {
		return fmt.Sprintf("%s(%d)", o.Indicator, o.Period)
	}
	return o.Indicator
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse parses a condition expression into an AST. The grammar is
//
//	OrExpr     := AndExpr ("OR" AndExpr)*
//	AndExpr    := Primary ("AND" Primary)*
//	Primary    := "(" OrExpr ")" | Comparison
//	Comparison := Operand Op Operand
//
// with operators < <= > >= == != =. Parenthesized sub-expressions nest to
// any depth.
func Parse(condition string) (Node, error) {
	tokens, err := lex(condition)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().pos)
	}
	return node, nil
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			start := i
			i++
			if i < len(input) && input[i] == '=' {
				i++
			}
			op := input[start:i]
			if op == "!" {
				return nil, fmt.Errorf("invalid operator %q at offset %d", op, start)
			}
			tokens = append(tokens, token{kind: tokOperator, text: op, pos: start})
		case unicode.IsDigit(c) || c == '.' || c == '-':
			start := i
			i++
			for i < len(input) && (unicode.IsDigit(rune(input[i])) || input[i] == '.') {
				i++
			}
			text := input[start:i]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q at offset %d", text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, pos: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(input) && (unicode.IsLetter(rune(input[i])) || unicode.IsDigit(rune(input[i])) || input[i] == '_') {
				i++
			}
			text := input[start:i]
			switch strings.ToUpper(text) {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, text: text, pos: start})
			case "OR":
				tokens = append(tokens, token{kind: tokOr, text: text, pos: start})
			default:
				tokens = append(tokens, token{kind: tokIdent, text: text, pos: start})
			}
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.peek().kind == tokOr {
		p.next()
		term, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	terms := []Node{first}
	for p.peek().kind == tokAnd {
		p.next()
		term, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &And{Terms: terms}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis at offset %d", p.peek().pos)
		}
		p.next()
		return node, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op := p.peek()
	if op.kind != tokOperator {
		return nil, fmt.Errorf("expected comparison operator at offset %d, got %q", op.pos, op.text)
	}
	p.next()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Comparison{Left: left, Op: op.text, Right: right}, nil
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("invalid number %q at offset %d", t.text, t.pos)
		}
		return Operand{Literal: &v}, nil
	case tokIdent:
		p.next()
		op := Operand{Indicator: t.text}
		// Optional period argument: EMA(21).
		if p.peek().kind == tokLParen {
			p.next()
			num := p.peek()
			if num.kind != tokNumber {
				return Operand{}, fmt.Errorf("expected period after %q at offset %d", t.text, num.pos)
			}
			p.next()
			period, err := strconv.Atoi(num.text)
			if err != nil || period <= 0 {
				return Operand{}, fmt.Errorf("invalid period %q at offset %d", num.text, num.pos)
			}
			if p.peek().kind != tokRParen {
				return Operand{}, fmt.Errorf("missing closing parenthesis after period at offset %d", p.peek().pos)
			}
			p.next()
			op.Period = period
		}
		return op, nil
	default:
		return Operand{}, fmt.Errorf("expected operand at offset %d, got %q", t.pos, t.text)
	}
}
