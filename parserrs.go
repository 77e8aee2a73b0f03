package moneyexpr

import "strconv"

// OperandError is an error indicating an operator without one of its operands.
// It implements PositionedError.
type OperandError struct {
	// Off is the position of the operator.
	Off int
	// Operator is the operator missing an operand.
	Operator string
	// Right is whether the right operand is missing. Otherwise, the operator
	// appeared where an operand was expected and has no left operand.
	Right bool
}

func (err *OperandError) Error() string {
	if err.Right {
		return errpos(err.Off, "missing right operand for "+strconv.Quote(err.Operator))
	}
	return errpos(err.Off, "no left operand for "+strconv.Quote(err.Operator))
}

func (err *OperandError) Pos() int {
	return err.Off
}

func (err *OperandError) Kind() ErrorKind {
	if err.Right {
		return InvalidRightOperand
	}
	return EmptyLeftOperand
}

// BracketError is an error indicating an open parenthesis that is never
// closed. It implements PositionedError.
type BracketError struct {
	// Off is the position of the open parenthesis.
	Off int
}

func (err *BracketError) Error() string {
	return errpos(err.Off, "open bracket ( with no close bracket")
}

func (err *BracketError) Pos() int {
	return err.Off
}

func (err *BracketError) Kind() ErrorKind {
	return UnclosedParentheses
}

// EndError is an error indicating a token left over after a complete
// expression or subexpression. It implements PositionedError.
type EndError struct {
	// Off is the position of the unexpected token.
	Off int
	// Text is the unexpected token.
	Text string
}

func (err *EndError) Error() string {
	return errpos(err.Off, "expected end of input, found "+strconv.Quote(err.Text))
}

func (err *EndError) Pos() int {
	return err.Off
}

func (err *EndError) Kind() ErrorKind {
	return ExpectedEndOfInput
}

// DepthError is an error indicating an expression nested more deeply than
// MaxDepth. It implements PositionedError.
type DepthError struct {
	// Off is the position of the first token past the limit.
	Off int
	// Text is that token.
	Text string
}

func (err *DepthError) Error() string {
	return errpos(err.Off, "expression nested too deeply at "+strconv.Quote(err.Text))
}

func (err *DepthError) Pos() int {
	return err.Off
}

func (err *DepthError) Kind() ErrorKind {
	return ExpectedEndOfInput
}

// EmptyExpressionError is an error indicating an empty expression or an empty
// pair of parentheses. It implements PositionedError.
type EmptyExpressionError struct {
	// Off is the position of the open parenthesis, or of the end of input if
	// there is no expression at all.
	Off int
}

func (err *EmptyExpressionError) Error() string {
	return errpos(err.Off, "empty expression")
}

func (err *EmptyExpressionError) Pos() int {
	return err.Off
}

func (err *EmptyExpressionError) Kind() ErrorKind {
	return EmptyExpression
}

// OperatorError is an error indicating a tree node whose operator does not
// belong to its node kind. It means the parser built a tree the evaluator does
// not understand. It implements PositionedError.
type OperatorError struct {
	// Off is the position of the operator.
	Off int
	// Operator is the operator that was not understood.
	Operator string
	// Unary is whether the operator was found on a unary node.
	Unary bool
}

func (err *OperatorError) Error() string {
	s := "binary"
	if err.Unary {
		s = "unary"
	}
	return errpos(err.Off, "unknown "+s+" operator "+strconv.Quote(err.Operator))
}

func (err *OperatorError) Pos() int {
	return err.Off
}

func (err *OperatorError) Kind() ErrorKind {
	if err.Unary {
		return InvalidUnaryOperator
	}
	return InvalidBinaryOperator
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// PositionedError is an error with position information. Every error the
// tokenizer, parser, and evaluator produce for invalid input implements it.
type PositionedError interface {
	error
	// Pos returns the 0-based rune offset into the normalized expression of
	// the token that caused the error.
	Pos() int
	// Kind classifies the error.
	Kind() ErrorKind
}

var (
	_ PositionedError = (*LexError)(nil)
	_ PositionedError = (*OperandError)(nil)
	_ PositionedError = (*BracketError)(nil)
	_ PositionedError = (*EndError)(nil)
	_ PositionedError = (*DepthError)(nil)
	_ PositionedError = (*EmptyExpressionError)(nil)
	_ PositionedError = (*OperatorError)(nil)
	_ PositionedError = (*ArithError)(nil)
)
