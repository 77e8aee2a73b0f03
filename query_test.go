package moneyexpr

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingConverter counts conversions made through a rate table.
type countingConverter struct {
	t     *RateTable
	calls atomic.Int32
}

func (c *countingConverter) ConvertToBase(ctx context.Context, amount decimal.Decimal, from string) (decimal.Decimal, error) {
	c.calls.Add(1)
	return c.t.ConvertToBase(ctx, amount, from)
}

func testRates() *RateTable {
	return NewRateTable("BYN", map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(3),
		"EUR": decimal.NewFromInt(4),
		"CZK": decimal.RequireFromString("0.1"),
		"RUB": decimal.RequireFromString("0.04"),
		"UAH": decimal.RequireFromString("0.08"),
		"GBP": decimal.NewFromInt(5),
	})
}

func testQueryParser(t *testing.T) (*QueryParser, *countingConverter) {
	t.Helper()
	conv := &countingConverter{t: testRates()}
	qp, err := NewQueryParser(DefaultConfig(), conv)
	require.NoError(t, err)
	return qp, conv
}

func TestQueryParse(t *testing.T) {
	cases := []struct {
		query    string
		expr     string
		result   string
		typ      QueryType
		base     string
		involved []string
		targets  []string
	}{
		{
			query:    "12012.12",
			expr:     "12012.12",
			result:   "12012.12",
			typ:      SingleValue,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "12012.12BYN",
			expr:     "12012.12",
			result:   "12012.12",
			typ:      SingleValue,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "10k",
			expr:     "10000",
			result:   "10000",
			typ:      SingleValue,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "1kkc",
			expr:     "1000",
			result:   "1000",
			typ:      SingleValue,
			base:     "CZK",
			involved: []string{"CZK"},
			targets:  []string{"CZK", "BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "1кр",
			expr:     "1000",
			result:   "1000",
			typ:      SingleValue,
			base:     "RUB",
			involved: []string{"RUB"},
			targets:  []string{"RUB", "BYN", "USD", "EUR"},
		},
		{
			query:    "18$",
			expr:     "18",
			result:   "18",
			typ:      SingleValue,
			base:     "USD",
			involved: []string{"USD"},
			targets:  []string{"USD", "BYN", "EUR", "RUB"},
		},
		{
			query:    "1 UAH",
			expr:     "1",
			result:   "1",
			typ:      SingleValue,
			base:     "UAH",
			involved: []string{"UAH"},
			targets:  []string{"UAH", "BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "Гривна",
			expr:     "1",
			result:   "1",
			typ:      SingleValue,
			base:     "UAH",
			involved: []string{"UAH"},
			targets:  []string{"UAH", "BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "1k BYN + 10k BYN",
			expr:     "1000 + 10000",
			result:   "11000",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "3-(2*3)+1",
			expr:     "3 - 2*3 + 1",
			result:   "-2",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "(0,1 + 0,2) / (2 * 2) !CZK",
			expr:     "(0.1 + 0.2)/(2*2)",
			result:   "0.075",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "2+7--7 +CZK",
			expr:     "2 + 7 - (-7)",
			result:   "16",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "-7+2+7 !CZK",
			expr:     "-7 + 2 + 7",
			result:   "2",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "2+7* - 2 !CZK",
			expr:     "2 + 7*(-2)",
			result:   "-12",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "10 USD + 5 USD +CZK",
			expr:     "10 + 5",
			result:   "15",
			typ:      SingleCurrencyExpr,
			base:     "USD",
			involved: []string{"USD"},
			targets:  []string{"USD", "BYN", "EUR", "RUB", "CZK"},
		},
		{
			query:    "1000$ * 0.91 / 10",
			expr:     "1000*0.91/10",
			result:   "91",
			typ:      SingleCurrencyExpr,
			base:     "USD",
			involved: []string{"USD"},
			targets:  []string{"USD", "BYN", "EUR", "RUB"},
		},
		{
			query:    "1kkc + 10k$",
			expr:     "1000 CZK + 10000 USD",
			result:   "30100",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"CZK", "USD"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "(2 + 7 )USD + 2EUR +CZK",
			expr:     "(2 + 7) USD + 2 EUR",
			result:   "35",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"USD", "EUR"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "(2 + 7 )USD * 2 + 2EUR/2 &CZK",
			expr:     "(2 + 7) USD*2 + 2 EUR/2",
			result:   "58",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"USD", "EUR"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "USD(2 + 7 ) * 2 + 2/2EUR &CZK",
			expr:     "(2 + 7)*2 USD + 2/2 EUR",
			result:   "58",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"USD", "EUR"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "10 * 10 * 10 eUrO + 10 USD",
			expr:     "10*10*10 EUR + 10 USD",
			result:   "4030",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"EUR", "USD"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "10 USD - 2 EUR",
			expr:     "10 USD - 2 EUR",
			result:   "22",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"USD", "EUR"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "5 USD + 3 EUR + 2",
			expr:     "5 USD + 3 EUR + 2",
			result:   "29",
			typ:      MultiCurrencyExpr,
			base:     "BYN",
			involved: []string{"USD", "EUR"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
		{
			query:    "18 +кроны !br",
			expr:     "18",
			result:   "18",
			typ:      SingleValue,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB", "CZK"},
		},
		{
			query:    "18грн !aeyns",
			expr:     "18",
			result:   "18",
			typ:      SingleValue,
			base:     "UAH",
			involved: []string{"UAH"},
			targets:  []string{"UAH", "BYN", "USD", "EUR", "RUB", "GBP"},
		},
		{
			query:    "рубль &гривна",
			expr:     "1",
			result:   "1",
			typ:      SingleValue,
			base:     "RUB",
			involved: []string{"RUB"},
			targets:  []string{"RUB", "BYN", "USD", "EUR", "UAH"},
		},
		{
			query:    "10 USD +CZK EUR",
			expr:     "10",
			result:   "7.5",
			typ:      SingleValue,
			base:     "EUR",
			involved: []string{"USD"},
			targets:  []string{"EUR", "BYN", "USD", "RUB", "CZK"},
		},
		{
			query:    "5 -USD -BYN",
			expr:     "5",
			result:   "5",
			typ:      SingleValue,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "EUR", "RUB"},
		},
		{
			query:    "2^0.5",
			expr:     "2^0.5",
			result:   "1.41421356",
			typ:      SingleCurrencyExpr,
			base:     "BYN",
			involved: []string{"BYN"},
			targets:  []string{"BYN", "USD", "EUR", "RUB"},
		},
	}
	qp, _ := testQueryParser(t)
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			r, err := qp.Parse(context.Background(), c.query)
			require.NoError(t, err)
			assert.Equal(t, c.query, r.RawQuery)
			assert.Equal(t, c.expr, r.Expression)
			want := decimal.RequireFromString(c.result)
			assert.True(t, want.Equal(r.ExpressionResult), "want result %s, got %s", want, r.ExpressionResult)
			assert.Equal(t, c.typ, r.Type)
			assert.Equal(t, c.base, r.BaseCurrency)
			assert.Equal(t, c.involved, r.InvolvedCurrencies)
			assert.Equal(t, c.targets, r.Targets)
		})
	}
}

func TestQueryParseErrors(t *testing.T) {
	cases := []struct {
		query string
		kind  ErrorKind
		pos   int
	}{
		{"", EmptyExpression, 1},
		{"asd?/", InvalidToken, 1},
		{"asdf", InvalidToken, 1},
		{"%23", InvalidToken, 1},
		{"/*123 &BYN", EmptyLeftOperand, 1},
		{"*1000", EmptyLeftOperand, 1},
		{"123^^", InvalidRightOperand, 4},
		{"(1+2", UnclosedParentheses, 1},
		{"123/0", IllegalOperationResult, 1},
		{"1.9к$ * 0ю91", InvalidToken, 10},
		{"123EUR / 123 USD", InvalidValueProvided, 14},
		{"123EUR / 0 + 23 USD", IllegalOperationResult, 1},
		{"123 && EUR / 0 + 23 USD", InvalidToken, 5},
		{"123 EUR EUR", InvalidValueProvided, 9},
		{"10 долларов + 10 евро / 0", IllegalOperationResult, 1},
		{"10 / 0 +долларов", IllegalOperationResult, 1},
		{"10 долларов + 10 asdf", InvalidToken, 18},
		{"доллар ?", InvalidToken, 8},
		{"100k 000 ,h", ExpectedEndOfInput, 6},
		{"  1/0", IllegalOperationResult, 3},
		{"5 +XYZ", InvalidToken, 3},
		{"(2^4096)^4096", IllegalOperationResult, 1},
		{strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300), ExpectedEndOfInput, MaxDepth + 1},
	}
	qp, _ := testQueryParser(t)
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			r, err := qp.Parse(context.Background(), c.query)
			require.Error(t, err, "got result %+v", r)
			ie, ok := AsInputError(err)
			require.True(t, ok, "%v is not an *InputError", err)
			assert.Equal(t, c.kind, ie.Kind)
			assert.Equal(t, c.pos, ie.Position)
			assert.Equal(t, c.query, ie.Query)
			assert.NotEmpty(t, ie.Message)
		})
	}
}

func TestQueryParseArithCause(t *testing.T) {
	cases := []struct {
		query string
		err   error
	}{
		{"1+1/(2-2)", ErrDivisionByZero},
		{"(2^4096)^4096 USD", ErrExponentRange},
		{"((2^4096)^4096)^4096", ErrExponentRange},
	}
	qp, _ := testQueryParser(t)
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			_, err := qp.Parse(context.Background(), c.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, c.err)
			ie, ok := AsInputError(err)
			require.True(t, ok)
			assert.Equal(t, IllegalOperationResult, ie.Kind)
		})
	}
}

func TestQueryConversions(t *testing.T) {
	cases := []struct {
		query string
		calls int32
	}{
		{"5 USD", 0},
		{"5 USD + 2 USD", 0},
		{"5", 0},
		{"(2 + 7 )USD + 2EUR", 2},
		{"5 USD + 3 EUR + 2", 2},
		// Converting into a base other than the rate base also converts one
		// unit of the base.
		{"10 USD +CZK EUR", 2},
	}
	for _, c := range cases {
		t.Run(c.query, func(t *testing.T) {
			qp, conv := testQueryParser(t)
			_, err := qp.Parse(context.Background(), c.query)
			require.NoError(t, err)
			assert.Equal(t, c.calls, conv.calls.Load())
		})
	}
}

func TestQueryRateUnavailable(t *testing.T) {
	qp, _ := testQueryParser(t)
	_, err := qp.Parse(context.Background(), "10 USD + 5 PLN")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateUnavailable)
	ie, ok := AsInputError(err)
	require.True(t, ok)
	assert.Equal(t, IllegalOperationResult, ie.Kind)
	assert.Equal(t, 1, ie.Position)
}

func TestQueryCanceled(t *testing.T) {
	qp, _ := testQueryParser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qp.Parse(ctx, "10 USD + 5 EUR")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := AsInputError(err)
	assert.False(t, ok, "cancellation reported as an input error")
	// Queries that need no conversion do not notice.
	r, err := qp.Parse(ctx, "10 + 5")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(r.ExpressionResult))
}

func TestQueryWithContext(t *testing.T) {
	conv := &countingConverter{t: testRates()}
	qp, err := NewQueryParser(DefaultConfig(), conv, WithContext(NewContext(MaxExponent(8))))
	require.NoError(t, err)
	_, err = qp.Parse(context.Background(), "2^9")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExponentRange)
	r, err := qp.Parse(context.Background(), "2^8")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(256).Equal(r.ExpressionResult))
}

func TestQueryTargetsWithoutInvolved(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncludeInvolvedTargets = false
	qp, err := NewQueryParser(cfg, testRates())
	require.NoError(t, err)
	r, err := qp.Parse(context.Background(), "1kkc + 10k$ +GBP")
	require.NoError(t, err)
	assert.Equal(t, []string{"BYN", "USD", "EUR", "RUB", "GBP"}, r.Targets)
}

func TestNewQueryParserInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Currencies.Base = "XYZ"
	_, err := NewQueryParser(cfg, testRates())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestQueryConcurrent(t *testing.T) {
	qp, _ := testQueryParser(t)
	queries := []string{"1kkc + 10k$", "(2 + 7 )USD * 2 + 2EUR/2 &CZK", "2^0.5", "123/0"}
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := queries[i%len(queries)]
			want, wantErr := qp.Parse(context.Background(), q)
			for range 50 {
				got, err := qp.Parse(context.Background(), q)
				if (err == nil) != (wantErr == nil) {
					t.Errorf("%q: inconsistent errors %v and %v", q, wantErr, err)
					return
				}
				if err == nil && !got.ExpressionResult.Equal(want.ExpressionResult) {
					t.Errorf("%q: inconsistent results %s and %s", q, want.ExpressionResult, got.ExpressionResult)
					return
				}
			}
		}()
	}
	wg.Wait()
}
