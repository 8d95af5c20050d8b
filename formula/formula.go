// Package formula implements the closed arithmetic expression language used
// by calculate rules. The grammar supports positional variables Q1..Qn, the
// binary operators + - * /, unary minus and parenthesised grouping, with
// conventional precedence and left-to-right associativity. The language is
// deliberately this small: formulas are user-authored, so they are parsed by
// an explicit grammar and never handed to a general-purpose evaluator.
package formula

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// ErrDivisionByZero marks a formula whose divisor evaluated to zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrUnboundVariable marks a variable reference beyond the bound sources.
	ErrUnboundVariable = errors.New("unbound variable")
)

// Program is a compiled formula ready for repeated evaluation.
type Program struct {
	src  string
	root node
	vars []int
}

// Compile tokenizes and parses the formula into an evaluable program.
func Compile(src string) (*Program, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("position %d: unexpected %q", tok.pos, tok.text)
	}
	program := &Program{src: src, root: root}
	seen := make(map[int]struct{})
	collectVariables(root, seen)
	for idx := range seen {
		program.vars = append(program.vars, idx)
	}
	sort.Ints(program.vars)
	return program, nil
}

// Eval compiles and evaluates src in one step.
func Eval(src string, bindings []float64) (float64, error) {
	program, err := Compile(src)
	if err != nil {
		return 0, err
	}
	return program.Eval(bindings)
}

// Source returns the original formula text.
func (p *Program) Source() string { return p.src }

// Variables returns the distinct 1-based variable indexes referenced by the
// formula, in ascending order.
func (p *Program) Variables() []int {
	out := make([]int, len(p.vars))
	copy(out, p.vars)
	return out
}

// Eval runs the program against positional bindings: Q1 reads bindings[0]
// and so on. A reference past the end of bindings yields ErrUnboundVariable,
// a zero divisor yields ErrDivisionByZero. Arithmetic runs on decimals so
// chained user input does not accumulate float drift.
func (p *Program) Eval(bindings []float64) (float64, error) {
	result, err := p.root.eval(bindings)
	if err != nil {
		return 0, err
	}
	return result.InexactFloat64(), nil
}

type node interface {
	eval(bindings []float64) (decimal.Decimal, error)
}

type numberNode struct {
	value decimal.Decimal
}

func (n numberNode) eval([]float64) (decimal.Decimal, error) {
	return n.value, nil
}

type variableNode struct {
	index int // 1-based
}

func (n variableNode) eval(bindings []float64) (decimal.Decimal, error) {
	if n.index < 1 || n.index > len(bindings) {
		return decimal.Zero, fmt.Errorf("Q%d: %w", n.index, ErrUnboundVariable)
	}
	return decimal.NewFromFloat(bindings[n.index-1]), nil
}

type unaryNode struct {
	operand node
}

func (n unaryNode) eval(bindings []float64) (decimal.Decimal, error) {
	value, err := n.operand.eval(bindings)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Neg(), nil
}

type binaryNode struct {
	op    rune
	left  node
	right node
}

func (n binaryNode) eval(bindings []float64) (decimal.Decimal, error) {
	left, err := n.left.eval(bindings)
	if err != nil {
		return decimal.Zero, err
	}
	right, err := n.right.eval(bindings)
	if err != nil {
		return decimal.Zero, err
	}
	switch n.op {
	case '+':
		return left.Add(right), nil
	case '-':
		return left.Sub(right), nil
	case '*':
		return left.Mul(right), nil
	case '/':
		if right.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return left.Div(right), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported operator %q", n.op)
	}
}

func collectVariables(n node, seen map[int]struct{}) {
	switch v := n.(type) {
	case variableNode:
		seen[v.index] = struct{}{}
	case unaryNode:
		collectVariables(v.operand, seen)
	case binaryNode:
		collectVariables(v.left, seen)
		collectVariables(v.right, seen)
	}
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenVariable
	tokenOperator
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			tokens = append(tokens, token{kind: tokenOperator, text: string(r), pos: i})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case r == 'Q' || r == 'q':
			start := i
			i++
			digits := 0
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
				digits++
			}
			if digits == 0 {
				return nil, fmt.Errorf("position %d: variable is missing its index", start)
			}
			tokens = append(tokens, token{kind: tokenVariable, text: string(runes[start:i]), pos: start})
		case unicode.IsDigit(r) || r == '.':
			start := i
			dots := 0
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				if runes[i] == '.' {
					dots++
				}
				i++
			}
			if dots > 1 {
				return nil, fmt.Errorf("position %d: malformed number %q", start, string(runes[start:i]))
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i]), pos: start})
		default:
			return nil, fmt.Errorf("position %d: unexpected character %q", i, r)
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(runes)})
	return tokens, nil
}

type parser struct {
	tokens []token
	next   int
}

func (p *parser) peek() token {
	return p.tokens[p.next]
}

func (p *parser) advance() token {
	tok := p.tokens[p.next]
	if tok.kind != tokenEOF {
		p.next++
	}
	return tok
}

// expression := term (('+'|'-') term)*
func (p *parser) parseExpression() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: rune(tok.text[0]), left: left, right: right}
	}
}

// term := factor (('*'|'/') factor)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenOperator || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: rune(tok.text[0]), left: left, right: right}
	}
}

// factor := NUMBER | VARIABLE | '-' factor | '(' expression ')'
func (p *parser) parseFactor() (node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokenNumber:
		value, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, fmt.Errorf("position %d: malformed number %q", tok.pos, tok.text)
		}
		return numberNode{value: value}, nil
	case tokenVariable:
		index, err := strconv.Atoi(strings.TrimLeft(tok.text[1:], "0"))
		if err != nil || index < 1 {
			return nil, fmt.Errorf("position %d: invalid variable %q", tok.pos, tok.text)
		}
		return variableNode{index: index}, nil
	case tokenOperator:
		if tok.text == "-" {
			operand, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			return unaryNode{operand: operand}, nil
		}
		return nil, fmt.Errorf("position %d: unexpected operator %q", tok.pos, tok.text)
	case tokenLParen:
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		closing := p.advance()
		if closing.kind != tokenRParen {
			return nil, fmt.Errorf("position %d: missing closing parenthesis", closing.pos)
		}
		return inner, nil
	case tokenRParen:
		return nil, fmt.Errorf("position %d: unexpected closing parenthesis", tok.pos)
	default:
		return nil, fmt.Errorf("position %d: unexpected end of formula", tok.pos)
	}
}
