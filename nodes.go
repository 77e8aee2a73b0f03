package moneyexpr

import (
	"strings"

	"github.com/shopspring/decimal"
)

// node is a node in the syntax tree of an expression.
type node struct {
	kind nodeKind
	// op is the operator of a unary or binary node.
	op TokenKind
	// val is the value of a number.
	val decimal.Decimal

	left  *node
	right *node

	// pos and end are the offsets of the first rune of the node and of the
	// rune after its last in the normalized expression. at is the offset of
	// the node's operator, or pos if it has none.
	pos, end, at int
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum    // val
	nodeGroup  // (left)
	nodeUnary  // op left
	nodeBinary // left op right
)

var nodeKindNames = [...]string{
	nodeNone:   "None",
	nodeNum:    "Num",
	nodeGroup:  "Group",
	nodeUnary:  "Unary",
	nodeBinary: "Binary",
}

func (k nodeKind) String() string {
	if k < 0 || int(k) >= len(nodeKindNames) {
		return "nodeKind(?)"
	}
	return nodeKindNames[k]
}

// Binding strengths of the printed forms of nodes. Higher binds tighter.
const (
	levelSum = 1 + iota
	levelProduct
	levelPower
	levelUnary
	levelAtom
)

// level gets the binding strength of a node. Groups are transparent.
func (n *node) level() int {
	switch n.kind {
	case nodeNum:
		return levelAtom
	case nodeGroup:
		return n.left.level()
	case nodeUnary:
		return levelUnary
	case nodeBinary:
		switch n.op {
		case TokenPlus, TokenMinus:
			return levelSum
		case TokenStar, TokenSlash:
			return levelProduct
		case TokenExponent:
			return levelPower
		}
	}
	return 0
}

// unwrap strips groups from a node.
func (n *node) unwrap() *node {
	for n.kind == nodeGroup {
		n = n.left
	}
	return n
}

// printer formats a tree with minimal parentheses. ann holds text to write
// after a node, e.g. a currency code.
type printer struct {
	b   strings.Builder
	ann map[*node]string
}

func (p *printer) write(n *node, paren bool) {
	s := p.ann[n]
	if s != "" && n.kind == nodeGroup && n.level() < levelAtom {
		// Keep the parentheses of a group that carries a currency.
		paren = true
	}
	if paren {
		p.b.WriteByte('(')
	}
	p.fmt(n)
	if paren {
		p.b.WriteByte(')')
	}
	if s != "" {
		p.b.WriteByte(' ')
		p.b.WriteString(s)
	}
}

func (p *printer) fmt(n *node) {
	switch n.kind {
	case nodeNum:
		p.b.WriteString(n.val.String())
	case nodeGroup:
		p.write(n.left, false)
	case nodeUnary:
		p.b.WriteString(opText(n.op))
		l := n.left.level()
		p.write(n.left, l < levelAtom)
	case nodeBinary:
		lv := n.level()
		ll, rl := n.left.level(), n.right.level()
		var lp, rp bool
		if n.op == TokenExponent {
			// (-2)^x and (a^b)^c need parentheses on the left; a^-b only on
			// the right.
			lp = ll < levelAtom
			rp = rl < lv || rl == levelUnary
		} else {
			lp = ll < lv
			rp = rl <= lv || rl == levelUnary
		}
		p.write(n.left, lp)
		switch n.op {
		case TokenPlus, TokenMinus:
			p.b.WriteString(" " + opText(n.op) + " ")
		default:
			p.b.WriteString(opText(n.op))
		}
		p.write(n.right, rp)
	default:
		panic("moneyexpr: invalid node kind " + n.kind.String() + " after writing " + p.b.String())
	}
}

// opText gets the text of an operator token kind.
func opText(k TokenKind) string {
	for i, o := range operkinds {
		if o == k {
			return Operators[i : i+1]
		}
	}
	return "?"
}

// format prints a tree with annotations.
func format(n *node, ann map[*node]string) string {
	p := printer{ann: ann}
	p.write(n, false)
	return p.b.String()
}
