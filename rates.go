package moneyexpr

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable indicates that there is no exchange rate for a currency.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateTable is a Converter using fixed exchange rates. It is immutable and
// safe for concurrent use.
type RateTable struct {
	base  string
	rates map[string]decimal.Decimal
	prec  int32
}

var _ Converter = (*RateTable)(nil)

// NewRateTable creates a rate table. rates maps each currency to the units of
// base that one unit is worth. The base currency always has rate 1.
func NewRateTable(base string, rates map[string]decimal.Decimal) *RateTable {
	t := RateTable{base: base, rates: maps.Clone(rates), prec: DefaultPrec}
	if t.rates == nil {
		t.rates = make(map[string]decimal.Decimal)
	}
	t.rates[base] = decimal.NewFromInt(1)
	return &t
}

// RatesFromConfig creates a rate table from the rates of a configuration.
func RatesFromConfig(cfg *Config) (*RateTable, error) {
	rates := make(map[string]decimal.Decimal, len(cfg.Rates))
	for k, v := range cfg.Rates {
		r, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", k, err)
		}
		rates[k] = r
	}
	t := NewRateTable(cfg.rateBase(), rates)
	t.prec = cfg.Context().Prec()
	return t, nil
}

// Base returns the currency the table converts into.
func (t *RateTable) Base() string {
	return t.base
}

// Rate returns the units of the base currency one unit of code is worth.
func (t *RateTable) Rate(code string) (decimal.Decimal, error) {
	r, ok := t.rates[code]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateUnavailable, code)
	}
	return r, nil
}

// ConvertToBase expresses an amount of currency from in the base currency.
func (t *RateTable) ConvertToBase(ctx context.Context, amount decimal.Decimal, from string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	r, err := t.Rate(from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(r), nil
}

// Convert expresses an amount of currency from in currency to.
func (t *RateTable) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	v, err := t.ConvertToBase(ctx, amount, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	r, err := t.Rate(to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.DivRound(r, t.prec), nil
}
