package moneyexpr

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Token is a lexical token of a normalized arithmetic expression.
type Token struct {
	Kind   TokenKind
	Lexeme string
	// Literal is the value of a TokenNumber. It is zero for other kinds.
	Literal decimal.Decimal
	// Pos is the 0-based rune offset of the token's first rune.
	Pos int
}

func (t Token) String() string {
	return t.Kind.String() + ":" + t.Lexeme + "@" + strconv.Itoa(t.Pos)
}

// TokenKind is the kind of a Token.
type TokenKind int8

const (
	tokenNone TokenKind = iota
	// TokenNumber is a decimal number.
	TokenNumber
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenExponent
	TokenLParen
	TokenRParen
	// TokenEOF indicates the end of the input.
	TokenEOF
)

var tokenKindNames = [...]string{
	tokenNone:     "None",
	TokenNumber:   "Number",
	TokenPlus:     "Plus",
	TokenMinus:    "Minus",
	TokenStar:     "Star",
	TokenSlash:    "Slash",
	TokenExponent: "Exponent",
	TokenLParen:   "LParen",
	TokenRParen:   "RParen",
	TokenEOF:      "EOF",
}

func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(tokenKindNames) {
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}
	return tokenKindNames[k]
}

// isOperator reports whether the kind is one of the arithmetic operators.
func (k TokenKind) isOperator() bool {
	return TokenPlus <= k && k <= TokenExponent
}

// Operators contains the runes which are considered to be operators, in the
// same order as their token kinds.
const Operators = "+-*/^"

var operkinds = [...]TokenKind{TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenExponent}

type lexer struct {
	src  io.RuneScanner
	buf  strings.Builder
	rune int
	p    Token
	eof  bool
}

func lex(src io.RuneScanner) *lexer {
	return &lexer{src: src}
}

// push unreads a token so that it is the next token returned from next. Panics
// if there is already a pushed token.
func (l *lexer) push(tok Token) {
	if l.p.Kind != tokenNone {
		panic("moneyexpr: double push")
	}
	l.p = tok
}

// readRune reads a rune from the src and updates the lexer's position info.
func (l *lexer) readRune() (r rune, err error) {
	r, sz, err := l.src.ReadRune()
	if sz > 0 {
		l.rune++
	}
	return r, err
}

// unreadRune unreads a rune from the src and updates the lexer's position
// info. Panics if unreading returns an error.
func (l *lexer) unreadRune() {
	if err := l.src.UnreadRune(); err != nil {
		panic(err)
	}
	l.rune--
}

// next scans the next token from the input. The first time EOF is encountered,
// the result is an EOF token with a nil error. Subsequent times, if the EOF
// token is not pushed, the result is an empty token with io.EOF.
func (l *lexer) next() (Token, error) {
	if l.p.Kind != tokenNone {
		tok := l.p
		l.p = Token{}
		return tok, nil
	}
	if l.eof {
		return Token{}, io.EOF
	}
	defer l.buf.Reset()
	tok := Token{Pos: l.rune}
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				tok.Kind = TokenEOF
				l.eof = true
				return tok, nil
			}
			return tok, err
		}
		switch {
		case unicode.IsSpace(r):
			tok.Pos++
			continue
		case '0' <= r && r <= '9', r == '.':
			l.unreadRune()
			lit, err := l.scanNum(tok.Pos)
			if err != nil {
				return tok, err
			}
			tok.Lexeme = l.buf.String()
			tok.Kind = TokenNumber
			tok.Literal = lit
			return tok, nil
		case r == '(':
			tok.Lexeme, tok.Kind = "(", TokenLParen
			return tok, nil
		case r == ')':
			tok.Lexeme, tok.Kind = ")", TokenRParen
			return tok, nil
		default:
			if k := strings.IndexRune(Operators, r); k >= 0 {
				tok.Lexeme = Operators[k : k+1]
				tok.Kind = operkinds[k]
				return tok, nil
			}
			return tok, &LexError{Text: string(r), Off: tok.Pos}
		}
	}
}

// scanNum scans a run of digits containing at most one decimal point.
func (l *lexer) scanNum(start int) (decimal.Decimal, error) {
	var dig, dot bool
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return decimal.Decimal{}, err
		}
		if r == '.' {
			if dot {
				return decimal.Decimal{}, &LexError{Text: l.buf.String() + ".", Off: l.rune - 1}
			}
			dot = true
			l.buf.WriteRune(r)
			continue
		}
		if r < '0' || '9' < r {
			l.unreadRune()
			break
		}
		dig = true
		l.buf.WriteRune(r)
	}
	text := l.buf.String()
	if !dig {
		return decimal.Decimal{}, &LexError{Text: text, Off: start}
	}
	if strings.HasPrefix(text, ".") {
		text = "0" + text
	}
	text = strings.TrimSuffix(text, ".")
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, &LexError{Text: l.buf.String(), Off: start}
	}
	return v, nil
}

// Tokenize converts a normalized expression into tokens, ending with a
// TokenEOF. It stops at the first rune that cannot begin a token.
func Tokenize(text string) ([]Token, error) {
	scan := lex(strings.NewReader(text))
	var toks []Token
	for {
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks, nil
		}
	}
}

// LexError indicates an invalid token. It implements PositionedError.
type LexError struct {
	// Text is the text the lexer was scanning when the invalid rune was
	// encountered, including the invalid rune.
	Text string
	// Off is the offset of the rune that could not be lexed.
	Off int
}

func (err *LexError) Error() string {
	return errpos(err.Off, "invalid token "+strconv.Quote(err.Text))
}

func (err *LexError) Pos() int {
	return err.Off
}

func (err *LexError) Kind() ErrorKind {
	return InvalidToken
}
