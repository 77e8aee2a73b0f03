package moneyexpr

import "log/slog"

// QueryOption is an option for creating a QueryParser.
type QueryOption interface {
	queryOption(queryopts) queryopts
}

type (
	loggeropt  struct{ l *slog.Logger }
	contextopt struct{ ctx *Context }
)

// queryopts holds the optional parts of a QueryParser.
type queryopts struct {
	log  *slog.Logger
	eval *Context
}

// WithLogger sets the logger a QueryParser records classification and
// conversion failures to. By default, nothing is logged.
func WithLogger(l *slog.Logger) QueryOption {
	return loggeropt{l}
}

func (o loggeropt) queryOption(q queryopts) queryopts {
	if o.l != nil {
		q.log = o.l
	}
	return q
}

// WithContext sets the evaluation context, overriding the precision and
// exponent limit of the configuration.
func WithContext(ctx *Context) QueryOption {
	return contextopt{ctx}
}

func (o contextopt) queryOption(q queryopts) queryopts {
	if o.ctx != nil {
		q.eval = o.ctx
	}
	return q
}
