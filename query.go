package moneyexpr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

// QueryType is the shape of a parsed query.
type QueryType int8

const (
	// SingleValue is a single number, optionally with one currency.
	SingleValue QueryType = iota
	// SingleCurrencyExpr is an arithmetic expression in at most one currency.
	SingleCurrencyExpr
	// MultiCurrencyExpr is a sum of amounts in different currencies.
	MultiCurrencyExpr
)

func (t QueryType) String() string {
	switch t {
	case SingleValue:
		return "SingleValue"
	case SingleCurrencyExpr:
		return "SingleCurrencyExpr"
	case MultiCurrencyExpr:
		return "MultiCurrencyExpr"
	default:
		return "QueryType(" + strconv.Itoa(int(t)) + ")"
	}
}

// InputQuery is the successful result of parsing a query.
type InputQuery struct {
	// RawQuery is the query as typed.
	RawQuery string
	// Expression is the normalized expression. For MultiCurrencyExpr, each
	// currency follows the operand it tags.
	Expression string
	// ExpressionResult is the value of the expression in BaseCurrency,
	// rounded half-to-even to ResultScale decimal places.
	ExpressionResult decimal.Decimal
	Type             QueryType
	BaseCurrency     string
	// InvolvedCurrencies are the currencies named in the value region in the
	// order they first appear, or only the base currency if there are none.
	InvolvedCurrencies []string
	// Targets are the currencies to show the result in, base first.
	Targets []string
}

// Converter converts amounts into the rate base currency. Implementations
// typically fetch exchange rates and may block.
type Converter interface {
	// ConvertToBase expresses amount units of currency from in the rate
	// base currency.
	ConvertToBase(ctx context.Context, amount decimal.Decimal, from string) (decimal.Decimal, error)
}

// QueryParser turns raw queries into InputQuery values. It is immutable after
// creation and safe for concurrent use, provided its Converter is.
type QueryParser struct {
	norm *Normalizer
	res  *Resolver
	eval *Context
	conv Converter
	log  *slog.Logger
	msgs Messages

	base     string
	rateBase string
	defaults []string
	involved bool
}

// NewQueryParser creates a query parser from a validated configuration and a
// rate collaborator.
func NewQueryParser(cfg *Config, conv Converter, opts ...QueryOption) (*QueryParser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := queryopts{
		log:  slog.New(slog.DiscardHandler),
		eval: cfg.Context(),
	}
	for _, opt := range opts {
		o = opt.queryOption(o)
	}
	res := NewResolver(cfg.Currencies.Supported)
	q := QueryParser{
		norm:     NewNormalizer(res, cfg.Magnitudes, cfg.Messages),
		res:      res,
		eval:     o.eval,
		conv:     conv,
		log:      o.log,
		msgs:     cfg.Messages,
		base:     cfg.Currencies.Base,
		rateBase: cfg.rateBase(),
		defaults: slices.Clone(cfg.Currencies.Default),
		involved: cfg.IncludeInvolvedTargets,
	}
	return &q, nil
}

// Resolver returns the currency resolver the parser uses.
func (q *QueryParser) Resolver() *Resolver {
	return q.res
}

// Parse parses a raw query. On failure, the error is an *InputError, with one
// exception: if ctx ends while converting currencies, the error wraps
// ctx.Err().
func (q *QueryParser) Parse(ctx context.Context, raw string) (*InputQuery, error) {
	nz, err := q.norm.Normalize(raw)
	if err != nil {
		return nil, err
	}
	expr, err := ParseString(nz.Expression)
	if err != nil {
		return nil, q.stageError(nz, err)
	}
	base, adds, rems, err := q.directives(nz)
	if err != nil {
		return nil, err
	}
	var involved []string
	for _, t := range nz.Tags {
		if !slices.Contains(involved, t.Code) {
			involved = append(involved, t.Code)
		}
	}

	var r *InputQuery
	if len(involved) <= 1 {
		r, err = q.single(ctx, nz, expr, base, involved)
	} else {
		r, err = q.multi(ctx, nz, expr, base, involved)
	}
	if err != nil {
		return nil, err
	}
	r.Targets = q.targets(r.BaseCurrency, r.InvolvedCurrencies, adds, rems)
	q.log.DebugContext(ctx, "parsed query",
		slog.String("query", raw),
		slog.String("expression", r.Expression),
		slog.String("type", r.Type.String()),
		slog.String("base", r.BaseCurrency),
		slog.Any("involved", r.InvolvedCurrencies),
	)
	return r, nil
}

// directives resolves the directive words of a query into the base currency,
// if any, and additions and removals of targets.
func (q *QueryParser) directives(nz *Normalized) (base string, adds, rems []string, err error) {
	for _, d := range nz.Directives {
		code, ok := q.res.Resolve(d.Text)
		if !ok {
			return "", nil, nil, q.msgs.inputError(nz.Query, d.Pos, InvalidToken, d.Word, nil)
		}
		switch d.Kind {
		case DirectiveBase:
			if base == "" {
				base = code
			}
		case DirectiveAdd, DirectiveExtra:
			adds = append(adds, code)
		case DirectiveRemove:
			rems = append(rems, code)
		}
	}
	return base, adds, rems, nil
}

// single evaluates a query whose value region names at most one currency.
func (q *QueryParser) single(ctx context.Context, nz *Normalized, expr *Expr, base string, involved []string) (*InputQuery, error) {
	cur := ""
	if len(involved) != 0 {
		cur = involved[0]
	}
	switch {
	case base != "": // directive wins
	case cur != "":
		base = cur
	default:
		base = q.base
	}
	if cur == "" {
		cur = base
	}
	v, err := q.eval.eval(expr.n)
	if err != nil {
		return nil, q.stageError(nz, err)
	}
	v, err = q.exchange(ctx, nz, v, cur, base)
	if err != nil {
		return nil, err
	}
	typ := SingleCurrencyExpr
	if expr.n.unwrap().kind == nodeNum {
		typ = SingleValue
	}
	q.log.DebugContext(ctx, "single currency", slog.String("currency", cur), slog.String("base", base))
	return &InputQuery{
		RawQuery:           nz.Query,
		Expression:         expr.String(),
		ExpressionResult:   v.RoundBank(ResultScale),
		Type:               typ,
		BaseCurrency:       base,
		InvolvedCurrencies: []string{cur},
	}, nil
}

// segment is an operand of the top-level sum of a multi-currency query.
type segment struct {
	n *node
	// neg is whether the segment is subtracted.
	neg  bool
	code string
}

// segments splits a tree into the operands of its top-level chain of
// additions and subtractions.
func segments(n *node, neg bool, out []segment) []segment {
	if n.kind == nodeBinary && (n.op == TokenPlus || n.op == TokenMinus) {
		out = segments(n.left, neg, out)
		return segments(n.right, n.op == TokenMinus, out)
	}
	return append(out, segment{n: n, neg: neg})
}

// deepestEnding finds the innermost number or group ending at off.
func deepestEnding(n *node, off int) *node {
	if n == nil || n.end < off || n.pos > off {
		return nil
	}
	if d := deepestEnding(n.right, off); d != nil {
		return d
	}
	if d := deepestEnding(n.left, off); d != nil {
		return d
	}
	if n.end == off && (n.kind == nodeNum || n.kind == nodeGroup) {
		return n
	}
	return nil
}

// multi evaluates a query whose value region names two or more currencies.
func (q *QueryParser) multi(ctx context.Context, nz *Normalized, expr *Expr, base string, involved []string) (*InputQuery, error) {
	if base == "" {
		base = q.base
	}
	segs := segments(expr.n, false, nil)
	ann := make(map[*node]string, len(nz.Tags))
	for _, t := range nz.Tags {
		// The tag belongs to the last segment starting at or before it.
		k := 0
		for i, s := range segs {
			if s.n.pos <= t.Off {
				k = i
			}
		}
		s := &segs[k]
		if s.code != "" && s.code != t.Code {
			return nil, q.msgs.inputError(nz.Query, t.Pos, InvalidValueProvided, t.Text, nil)
		}
		s.code = t.Code
		at := s.n
		if !t.Prefix {
			if d := deepestEnding(s.n, t.Off); d != nil {
				at = d
			}
		}
		ann[at] = t.Code
	}
	var sum decimal.Decimal
	for _, s := range segs {
		v, err := q.eval.eval(s.n)
		if err != nil {
			return nil, q.stageError(nz, err)
		}
		code := s.code
		if code == "" {
			code = base
		}
		v, err = q.exchange(ctx, nz, v, code, base)
		if err != nil {
			return nil, err
		}
		if s.neg {
			v = v.Neg()
		}
		sum = sum.Add(v)
	}
	q.log.DebugContext(ctx, "multiple currencies", slog.Int("segments", len(segs)), slog.String("base", base))
	return &InputQuery{
		RawQuery:           nz.Query,
		Expression:         format(expr.n, ann),
		ExpressionResult:   sum.RoundBank(ResultScale),
		Type:               MultiCurrencyExpr,
		BaseCurrency:       base,
		InvolvedCurrencies: involved,
	}, nil
}

// exchange expresses an amount of currency from in currency to.
func (q *QueryParser) exchange(ctx context.Context, nz *Normalized, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	v, err := q.conv.ConvertToBase(ctx, amount, from)
	if err != nil {
		return decimal.Decimal{}, q.convError(ctx, nz, from, err)
	}
	if to == q.rateBase {
		return v, nil
	}
	unit, err := q.conv.ConvertToBase(ctx, decimal.NewFromInt(1), to)
	if err != nil {
		return decimal.Decimal{}, q.convError(ctx, nz, to, err)
	}
	if unit.IsZero() {
		return decimal.Decimal{}, q.convError(ctx, nz, to, fmt.Errorf("%w: zero rate for %s", ErrRateUnavailable, to))
	}
	return v.DivRound(unit, q.eval.prec), nil
}

func (q *QueryParser) convError(ctx context.Context, nz *Normalized, code string, err error) error {
	q.log.WarnContext(ctx, "conversion failed", slog.String("currency", code), slog.Any("err", err))
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("converting %s: %w", code, err)
	}
	return q.msgs.inputError(nz.Query, nz.Start, IllegalOperationResult, code, err)
}

// stageError converts an error from parsing or evaluating the normalized
// expression to an InputError at the corresponding query position.
// Evaluation failures point at the start of the value region.
func (q *QueryParser) stageError(nz *Normalized, err error) error {
	var pe PositionedError
	if !errors.As(err, &pe) {
		return q.msgs.inputError(nz.Query, nz.Start, IllegalOperationResult, nz.Expression, err)
	}
	kind := pe.Kind()
	pos := nz.RawPos(pe.Pos())
	lexeme := ""
	switch e := pe.(type) {
	case *OperandError:
		lexeme = e.Operator
	case *EndError:
		lexeme = e.Text
	case *DepthError:
		lexeme = e.Text
	case *LexError:
		lexeme = e.Text
	case *OperatorError:
		lexeme = e.Operator
	case *BracketError:
		lexeme = "("
	case *ArithError:
		pos, lexeme = nz.Start, nz.Expression
	}
	return q.msgs.inputError(nz.Query, pos, kind, lexeme, err)
}

// targets assembles the target currencies: the base, the defaults, the
// involved currencies if configured, then additions, without removals other
// than the base.
func (q *QueryParser) targets(base string, involved, adds, rems []string) []string {
	t := []string{base}
	add := func(codes []string) {
		for _, c := range codes {
			if !slices.Contains(t, c) && (c == base || !slices.Contains(rems, c)) {
				t = append(t, c)
			}
		}
	}
	add(q.defaults)
	if q.involved {
		add(involved)
	}
	add(adds)
	return t
}
