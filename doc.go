// Package moneyexpr parses free-form currency calculator queries.
//
// A query is a value region followed by an optional directive region. The
// value region is arithmetic with currencies written next to the amounts
// they tag, e.g. "1kkc + 10k$" or "(2+7)USD*2 + 2/2EUR". Commas and periods
// both separate decimals, whitespace between digit groups is ignored, and
// magnitude suffixes like k multiply the amount before them. The directive
// region is a list of words: a word with no sigil names the base currency,
// "+" or "!" or "&" adds a target currency, and "-" removes one.
//
// QueryParser turns a query into an InputQuery holding the normalized
// expression, its value in the base currency, and the currencies to show the
// value in. Every failure is an *InputError that points at the offending
// character of the query.
//
// The arithmetic layer is usable alone: Tokenize, Parse, and Context.Eval
// work on normalized expressions with "+ - * / ^" and parentheses, where "^"
// is right-associative and binds looser than unary minus.
package moneyexpr
