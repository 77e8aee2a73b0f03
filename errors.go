package moneyexpr

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

// ErrorKind classifies a failure to turn a query into an InputQuery.
type ErrorKind int8

const (
	kindNone ErrorKind = iota
	// EmptyExpression means the value region normalizes to nothing, or a pair
	// of parentheses holds nothing.
	EmptyExpression
	// InvalidToken means a character or word that is not a number, operator,
	// parenthesis, currency, or magnitude.
	InvalidToken
	// EmptyLeftOperand means a binary operator with no preceding operand.
	EmptyLeftOperand
	// InvalidRightOperand means an operator followed by the end of input or a
	// closing parenthesis.
	InvalidRightOperand
	// UnclosedParentheses means an open parenthesis that is never closed.
	UnclosedParentheses
	// ExpectedEndOfInput means tokens left after a complete expression.
	ExpectedEndOfInput
	// InvalidBinaryOperator and InvalidUnaryOperator mean a parser bug.
	InvalidBinaryOperator
	InvalidUnaryOperator
	// IllegalOperationResult means a failure during evaluation or conversion,
	// e.g. division by zero.
	IllegalOperationResult
	// InvalidValueProvided means ambiguous currency tagging.
	InvalidValueProvided
)

var errorKindKeys = [...]string{
	kindNone:               "",
	EmptyExpression:        "empty_expression",
	InvalidToken:           "invalid_token",
	EmptyLeftOperand:       "empty_left_operand",
	InvalidRightOperand:    "invalid_right_operand",
	UnclosedParentheses:    "unclosed_parentheses",
	ExpectedEndOfInput:     "expected_eof",
	InvalidBinaryOperator:  "invalid_binary_operator",
	InvalidUnaryOperator:   "invalid_unary_operator",
	IllegalOperationResult: "illegal_operation_result",
	InvalidValueProvided:   "invalid_value_provided",
}

// String returns the message key for the kind. It is the key of the kind's
// template under messages in the configuration.
func (k ErrorKind) String() string {
	if k <= 0 || int(k) >= len(errorKindKeys) {
		return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
	}
	return errorKindKeys[k]
}

// InputError is the failure result of parsing a query. Position always refers
// to the raw query the user typed.
type InputError struct {
	// Query is the raw query.
	Query string
	// Position is the 1-based rune offset into Query of the failure.
	Position int
	// Kind classifies the failure.
	Kind ErrorKind
	// Lexeme is the offending text.
	Lexeme string
	// Message is the user-facing message built from the kind's template.
	Message string

	err error
}

func (err *InputError) Error() string {
	if err.Message == "" {
		return errpos(err.Position, err.Kind.String())
	}
	return errpos(err.Position, err.Message)
}

// Unwrap returns the stage or collaborator error that caused the failure, if
// any.
func (err *InputError) Unwrap() error {
	return err.err
}

// Pos returns the 1-based position of the failure in the raw query.
func (err *InputError) Pos() int {
	return err.Position
}

// Render returns a multi-line diagnostic: the query, a caret under the
// offending character, and the message.
func (err *InputError) Render() string {
	var b strings.Builder
	line, col := err.line()
	b.WriteString(line)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", col))
	b.WriteString("^\n")
	b.WriteString(err.Message)
	return b.String()
}

// Markdown returns the diagnostic from Render in a fenced code block.
func (err *InputError) Markdown() string {
	return "```\n" + err.Render() + "\n```"
}

// line finds the line of the query containing the error position and the
// display column of the position within it.
func (err *InputError) line() (string, int) {
	r := []rune(err.Query)
	p := min(max(err.Position-1, 0), len(r))
	start, end := p, p
	for start > 0 && r[start-1] != '\n' {
		start--
	}
	for end < len(r) && r[end] != '\n' {
		end++
	}
	return string(r[start:end]), uniseg.StringWidth(string(r[start:p]))
}

// AsInputError is a shortcut for errors.As with *InputError.
func AsInputError(err error) (*InputError, bool) {
	var ie *InputError
	ok := errors.As(err, &ie)
	return ie, ok
}

// Messages formats user-facing messages from templates keyed by ErrorKind
// strings. Templates may contain {lexeme} and {position}.
type Messages map[string]string

func (m Messages) format(kind ErrorKind, lexeme string, pos int) string {
	t, ok := m[kind.String()]
	if !ok {
		t = defaultMessages[kind]
	}
	return strings.NewReplacer("{lexeme}", lexeme, "{position}", strconv.Itoa(pos)).Replace(t)
}

var defaultMessages = map[ErrorKind]string{
	EmptyExpression:        "empty expression at position {position}",
	InvalidToken:           "unrecognized {lexeme} at position {position}",
	EmptyLeftOperand:       "operator {lexeme} at position {position} has no left operand",
	InvalidRightOperand:    "operator {lexeme} at position {position} has no right operand",
	UnclosedParentheses:    "parenthesis at position {position} is never closed",
	ExpectedEndOfInput:     "unexpected {lexeme} at position {position}",
	InvalidBinaryOperator:  "invalid binary operator {lexeme} at position {position}",
	InvalidUnaryOperator:   "invalid unary operator {lexeme} at position {position}",
	IllegalOperationResult: "cannot compute the result of {lexeme}",
	InvalidValueProvided:   "{lexeme} at position {position} mixes currencies",
}

// inputError creates an InputError at a 1-based raw position.
func (m Messages) inputError(query string, pos int, kind ErrorKind, lexeme string, cause error) *InputError {
	return &InputError{
		Query:    query,
		Position: pos,
		Kind:     kind,
		Lexeme:   lexeme,
		Message:  m.format(kind, lexeme, pos),
		err:      cause,
	}
}
