package moneyexpr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want string
	}{
		{EmptyExpression, "empty_expression"},
		{InvalidToken, "invalid_token"},
		{ExpectedEndOfInput, "expected_eof"},
		{InvalidValueProvided, "invalid_value_provided"},
		{kindNone, "ErrorKind(0)"},
		{ErrorKind(100), "ErrorKind(100)"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.kind.String())
	}
}

func TestMessagesFormat(t *testing.T) {
	m := Messages{"invalid_token": "bad {lexeme} at {position}, {lexeme}!"}
	assert.Equal(t, "bad ю at 10, ю!", m.format(InvalidToken, "ю", 10))
	// Missing templates fall back to built-in messages.
	assert.Equal(t, "unexpected 0 at position 7", m.format(ExpectedEndOfInput, "0", 7))
	assert.Equal(t, "empty expression at position 1", Messages(nil).format(EmptyExpression, "", 1))
}

func TestInputError(t *testing.T) {
	cause := errors.New("cause")
	err := Messages(nil).inputError("1 + x", 5, InvalidToken, "x", cause)
	assert.Equal(t, "unrecognized x at position 5", err.Message)
	assert.Equal(t, "5: unrecognized x at position 5", err.Error())
	assert.Equal(t, 5, err.Pos())
	assert.ErrorIs(t, err, cause)
	ie, ok := AsInputError(err)
	assert.True(t, ok)
	assert.Same(t, err, ie)
	_, ok = AsInputError(cause)
	assert.False(t, ok)
}

func TestInputErrorRender(t *testing.T) {
	cases := []struct {
		name  string
		query string
		pos   int
		want  string
	}{
		{
			name:  "ascii",
			query: "123 EUR EUR",
			pos:   9,
			want:  "123 EUR EUR\n        ^\nmsg",
		},
		{
			name:  "cyrillic",
			query: "доллар ?",
			pos:   8,
			want:  "доллар ?\n       ^\nmsg",
		},
		{
			name:  "wide",
			query: "日本 x",
			pos:   4,
			want:  "日本 x\n     ^\nmsg",
		},
		{
			name:  "end",
			query: "1+",
			pos:   3,
			want:  "1+\n  ^\nmsg",
		},
		{
			name:  "multiline",
			query: "1\n2 x",
			pos:   5,
			want:  "2 x\n  ^\nmsg",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := &InputError{Query: c.query, Position: c.pos, Kind: InvalidToken, Message: "msg"}
			assert.Equal(t, c.want, err.Render())
			assert.Equal(t, "```\n"+c.want+"\n```", err.Markdown())
		})
	}
}
