package moneyexpr

import (
	"golang.org/x/text/cases"
)

// Currency is a supported currency and the words that name it.
type Currency struct {
	// Code is the canonical code, e.g. USD.
	Code string `yaml:"code"`
	// MatchPatterns are the aliases of the currency: symbols, codes, and
	// names in any language. Matching ignores case.
	MatchPatterns []string `yaml:"match_patterns"`
}

// Resolver maps aliases to canonical currency codes. It is immutable after
// creation and safe for concurrent use.
type Resolver struct {
	aliases map[string]string
	codes   []string
}

// NewResolver builds a resolver from currencies in order. Each currency's
// code is also an alias of itself. When two currencies share an alias, the
// earlier one keeps it.
func NewResolver(currencies []Currency) *Resolver {
	r := Resolver{
		aliases: make(map[string]string),
		codes:   make([]string, 0, len(currencies)),
	}
	for _, c := range currencies {
		r.codes = append(r.codes, c.Code)
		r.add(c.Code, c.Code)
		for _, p := range c.MatchPatterns {
			r.add(p, c.Code)
		}
	}
	return &r
}

func (r *Resolver) add(alias, code string) {
	k := fold(alias)
	if k == "" {
		return
	}
	if _, ok := r.aliases[k]; !ok {
		r.aliases[k] = code
	}
}

// Resolve returns the code of the currency named by alias.
func (r *Resolver) Resolve(alias string) (string, bool) {
	code, ok := r.aliases[fold(alias)]
	return code, ok
}

// Supported reports whether code is the canonical code of a currency.
func (r *Resolver) Supported(code string) bool {
	for _, c := range r.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Codes returns the canonical codes in configuration order.
func (r *Resolver) Codes() []string {
	return append([]string(nil), r.codes...)
}

// fold case-folds a string for caseless matching. A Caser holds state, so
// each call makes its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
