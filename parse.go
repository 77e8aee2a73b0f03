package moneyexpr

import (
	"io"
	"strings"
)

// expression := term (('+' | '-') term)*
// term       := power (('*' | '/') power)*
// power      := unary ('^' power)?
// unary      := '-' unary | primary
// primary    := NUMBER | '(' expression ')'

// MaxDepth is the deepest nesting of parentheses, unary operators, and
// exponents that Parse accepts.
const MaxDepth = 256

// Expr is a parsed arithmetic expression.
type Expr struct {
	// n is the root node of the expression.
	n *node
}

// parser holds the state of a single parse.
type parser struct {
	scan *lexer
	// prev is the last token consumed.
	prev Token
	// depth is the number of unary rules being parsed.
	depth int
}

// peek returns the next token without consuming it.
func (p *parser) peek() (Token, error) {
	tok, err := p.scan.next()
	if err != nil {
		return tok, err
	}
	p.scan.push(tok)
	return tok, nil
}

// advance consumes the token returned by the last peek.
func (p *parser) advance() Token {
	tok, err := p.scan.next()
	if err != nil {
		panic("moneyexpr: advance without peek: " + err.Error())
	}
	p.prev = tok
	return tok
}

// Parse parses a normalized arithmetic expression.
func Parse(src io.RuneScanner) (*Expr, error) {
	p := parser{scan: lex(src)}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokenEOF {
		return nil, &EndError{Off: tok.Pos, Text: tok.Lexeme}
	}
	return &Expr{n: n}, nil
}

// ParseString is a shortcut to parse an expression from a string.
func ParseString(src string) (*Expr, error) {
	return Parse(strings.NewReader(src))
}

func (p *parser) expression() (*node, error) {
	return p.binary(p.term, TokenPlus, TokenMinus)
}

func (p *parser) term() (*node, error) {
	return p.binary(p.power, TokenStar, TokenSlash)
}

// binary parses a left-associative chain of operands joined by either of two
// operators.
func (p *parser) binary(operand func() (*node, error), a, b TokenKind) (*node, error) {
	l, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != a && tok.Kind != b {
			return l, nil
		}
		p.advance()
		r, err := operand()
		if err != nil {
			return nil, err
		}
		l = &node{kind: nodeBinary, op: tok.Kind, left: l, right: r, pos: l.pos, end: r.end, at: tok.Pos}
	}
}

func (p *parser) power() (*node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokenExponent {
		return l, nil
	}
	p.advance()
	r, err := p.power()
	if err != nil {
		return nil, err
	}
	return &node{kind: nodeBinary, op: TokenExponent, left: l, right: r, pos: l.pos, end: r.end, at: tok.Pos}, nil
}

func (p *parser) unary() (*node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	// Every nested rule passes through here.
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, &DepthError{Off: tok.Pos, Text: tok.Lexeme}
	}
	if tok.Kind != TokenMinus {
		return p.primary()
	}
	p.advance()
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &node{kind: nodeUnary, op: TokenMinus, left: x, pos: tok.Pos, end: x.end, at: tok.Pos}, nil
}

func (p *parser) primary() (*node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokenNumber:
		p.advance()
		end := tok.Pos + len(tok.Lexeme)
		return &node{kind: nodeNum, val: tok.Literal, pos: tok.Pos, end: end, at: tok.Pos}, nil
	case TokenLParen:
		p.advance()
		if next, err := p.peek(); err != nil {
			return nil, err
		} else if next.Kind == TokenRParen {
			return nil, &EmptyExpressionError{Off: tok.Pos}
		}
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		end, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch end.Kind {
		case TokenRParen:
			p.advance()
			return &node{kind: nodeGroup, left: x, pos: tok.Pos, end: end.Pos + 1, at: tok.Pos}, nil
		case TokenEOF:
			return nil, &BracketError{Off: tok.Pos}
		default:
			return nil, &EndError{Off: end.Pos, Text: end.Lexeme}
		}
	}
	// Anything else means a missing operand.
	switch {
	case p.prev.Kind.isOperator():
		return nil, &OperandError{Off: p.prev.Pos, Operator: p.prev.Lexeme, Right: true}
	case tok.Kind == TokenEOF && p.prev.Kind == TokenLParen:
		return nil, &BracketError{Off: p.prev.Pos}
	case tok.Kind == TokenEOF:
		return nil, &EmptyExpressionError{Off: tok.Pos}
	case tok.Kind.isOperator():
		return nil, &OperandError{Off: tok.Pos, Operator: tok.Lexeme}
	default:
		return nil, &EndError{Off: tok.Pos, Text: tok.Lexeme}
	}
}

// String formats the expression with + and - spaced, other operators tight,
// and only the parentheses that precedence requires.
func (e *Expr) String() string {
	return format(e.n, nil)
}
