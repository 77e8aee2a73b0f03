package moneyexpr

import (
	"errors"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zephyrtronium/bigfloat"
)

// ResultScale is the number of decimal places in evaluation results.
const ResultScale = 8

const (
	// DefaultPrec is the default number of decimal places kept by inexact
	// operations.
	DefaultPrec = 32
	// MinPrec is the smallest precision a Context uses.
	MinPrec = 20
	// DefaultMaxExponent is the default largest integer part of an exponent.
	DefaultMaxExponent = 4096
	// DefaultMaxDigits is the default largest estimated number of digits in
	// the result of an exact power.
	DefaultMaxDigits = 20000
)

var (
	// ErrDivisionByZero is the cause of an ArithError from dividing by zero,
	// including raising zero to a negative power.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrExponentRange is the cause of an ArithError from an exponent whose
	// magnitude is too large, or a power whose result would have too many
	// digits.
	ErrExponentRange = errors.New("exponent out of range")
	// ErrDomain is the cause of an ArithError from an operation whose result
	// is not a real number, e.g. a negative number to a fractional power.
	ErrDomain = errors.New("result is not a real number")
)

// Context is a context for evaluating expressions. A Context is immutable, so
// it is safe to use concurrently.
type Context struct {
	prec      int32
	maxExp    int64
	maxDigits int64
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption()
}

type (
	precopt      int32
	maxexpopt    int64
	maxdigitsopt int64
)

func (precopt) ctxOption()      {}
func (maxexpopt) ctxOption()    {}
func (maxdigitsopt) ctxOption() {}

// Prec sets the number of decimal places kept by division and fractional
// exponentiation. Values below MinPrec use MinPrec.
func Prec(places int32) ContextOption {
	return precopt(places)
}

// MaxExponent sets the largest allowed integer part of the magnitude of an
// exponent.
func MaxExponent(n int64) ContextOption {
	return maxexpopt(n)
}

// MaxDigits sets the largest estimated number of digits in the result of the
// exact part of a power, so that x^n with n within MaxExponent still cannot
// grow without bound when x is itself large.
func MaxDigits(n int64) ContextOption {
	return maxdigitsopt(n)
}

// NewContext creates a new evaluation context. If no precision is given, the
// default is DefaultPrec.
func NewContext(opts ...ContextOption) *Context {
	ctx := Context{prec: DefaultPrec, maxExp: DefaultMaxExponent, maxDigits: DefaultMaxDigits}
	for _, opt := range opts {
		switch opt := opt.(type) {
		case nil: // do nothing
		case precopt:
			ctx.prec = max(int32(opt), MinPrec)
		case maxexpopt:
			ctx.maxExp = int64(opt)
		case maxdigitsopt:
			ctx.maxDigits = int64(opt)
		default:
			panic("moneyexpr: unknown option type")
		}
	}
	return &ctx
}

// Prec returns the number of decimal places kept by inexact operations.
func (ctx *Context) Prec() int32 {
	return ctx.prec
}

// Eval evaluates an expression and returns the result rounded half-to-even to
// ResultScale decimal places.
func (ctx *Context) Eval(e *Expr) (decimal.Decimal, error) {
	v, err := ctx.eval(e.n)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.RoundBank(ResultScale), nil
}

// eval computes the unrounded value of a node.
func (ctx *Context) eval(n *node) (decimal.Decimal, error) {
	switch n.kind {
	case nodeNum:
		return n.val, nil
	case nodeGroup:
		return ctx.eval(n.left)
	case nodeUnary:
		x, err := ctx.eval(n.left)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if n.op != TokenMinus {
			return decimal.Decimal{}, &OperatorError{Off: n.at, Operator: opText(n.op), Unary: true}
		}
		return x.Neg(), nil
	case nodeBinary:
		l, err := ctx.eval(n.left)
		if err != nil {
			return decimal.Decimal{}, err
		}
		r, err := ctx.eval(n.right)
		if err != nil {
			return decimal.Decimal{}, err
		}
		switch n.op {
		case TokenPlus:
			return l.Add(r), nil
		case TokenMinus:
			return l.Sub(r), nil
		case TokenStar:
			return l.Mul(r), nil
		case TokenSlash:
			if r.IsZero() {
				return decimal.Decimal{}, &ArithError{Off: n.at, Op: "/", Err: ErrDivisionByZero}
			}
			return l.DivRound(r, ctx.prec), nil
		case TokenExponent:
			v, err := ctx.pow(l, r)
			if err != nil {
				return decimal.Decimal{}, &ArithError{Off: n.at, Op: "^", Err: err}
			}
			return v, nil
		default:
			return decimal.Decimal{}, &OperatorError{Off: n.at, Operator: opText(n.op)}
		}
	default:
		panic("moneyexpr: invalid AST node " + n.kind.String())
	}
}

// pow computes x^y. The integer part of the exponent is applied exactly by
// repeated squaring and the fractional part as exp(f ln x).
func (ctx *Context) pow(x, y decimal.Decimal) (decimal.Decimal, error) {
	neg := y.Sign() < 0
	y = y.Abs()
	ip := y.Truncate(0)
	fp := y.Sub(ip)
	if ip.GreaterThan(decimal.NewFromInt(ctx.maxExp)) {
		return decimal.Decimal{}, ErrExponentRange
	}
	if x.IsZero() {
		switch {
		case y.IsZero():
			return decimal.NewFromInt(1), nil
		case neg:
			return decimal.Decimal{}, ErrDivisionByZero
		default:
			return decimal.Decimal{}, nil
		}
	}
	n := ip.IntPart()
	if d := digits(x); n > 0 && d > ctx.maxDigits/n {
		return decimal.Decimal{}, ErrExponentRange
	}
	r := powInt(x, n)
	if !fp.IsZero() {
		if x.Sign() < 0 {
			return decimal.Decimal{}, ErrDomain
		}
		f, err := ctx.powFrac(x, fp)
		if err != nil {
			return decimal.Decimal{}, err
		}
		r = r.Mul(f)
	}
	if neg {
		if r.IsZero() {
			return decimal.Decimal{}, ErrDivisionByZero
		}
		r = decimal.NewFromInt(1).DivRound(r, ctx.prec)
	}
	return r, nil
}

// digits estimates from above the number of decimal digits needed to write x
// exactly without an exponent, counting both sides of the decimal point. The
// digits of x^n are at most n times as many.
func digits(x decimal.Decimal) int64 {
	// log10(2) < 30103/100000
	d := int64(x.Coefficient().BitLen())*30103/100000 + 1
	e := int64(x.Exponent())
	return d + max(e, -e)
}

// powInt computes x^n exactly for n >= 0.
func powInt(x decimal.Decimal, n int64) decimal.Decimal {
	r := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 != 0 {
			r = r.Mul(x)
		}
		n >>= 1
		if n > 0 {
			x = x.Mul(x)
		}
	}
	return r
}

// powFrac computes x^f for x > 0 and 0 < f < 1 in binary floating-point with
// enough bits to cover the context's precision.
func (ctx *Context) powFrac(x, f decimal.Decimal) (decimal.Decimal, error) {
	bits := uint(ctx.prec)*4 + 64
	bx, _, err := big.ParseFloat(x.String(), 10, bits, big.ToNearestEven)
	if err != nil {
		return decimal.Decimal{}, err
	}
	bf, _, err := big.ParseFloat(f.String(), 10, bits, big.ToNearestEven)
	if err != nil {
		return decimal.Decimal{}, err
	}
	r := new(big.Float).SetPrec(bits)
	bigfloat.Log(r, bx)
	r.Mul(r, bf)
	bigfloat.Exp(r, r)
	if r.IsInf() {
		return decimal.Decimal{}, ErrExponentRange
	}
	v, err := decimal.NewFromString(r.Text('e', int(ctx.prec)))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v, nil
}

// Eval is a shortcut to parse an expression and return its result using a
// new context.
func Eval(src io.RuneScanner, opts ...ContextOption) (decimal.Decimal, error) {
	a, err := Parse(src)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return NewContext(opts...).Eval(a)
}

// EvalString is a shortcut to parse and evaluate a string expression.
func EvalString(src string, opts ...ContextOption) (decimal.Decimal, error) {
	return Eval(strings.NewReader(src), opts...)
}

// ArithError is an error from an arithmetic operation. It implements
// PositionedError.
type ArithError struct {
	// Off is the position of the operator.
	Off int
	// Op is the operator.
	Op string
	// Err is the cause, e.g. ErrDivisionByZero.
	Err error
}

func (err *ArithError) Error() string {
	return errpos(err.Off, strconv.Quote(err.Op)+": "+err.Err.Error())
}

func (err *ArithError) Unwrap() error {
	return err.Err
}

func (err *ArithError) Pos() int {
	return err.Off
}

func (err *ArithError) Kind() ErrorKind {
	return IllegalOperationResult
}
