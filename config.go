package moneyexpr

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is the cause of configuration validation errors.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration of a QueryParser and its rate table.
type Config struct {
	Currencies CurrencyConfig `yaml:"currencies"`
	// Magnitudes maps suffixes like k to powers of ten.
	Magnitudes map[string]int32 `yaml:"magnitudes"`
	// Precision is the number of decimal places kept by inexact operations.
	Precision int32 `yaml:"precision"`
	// MaxExponent is the largest allowed integer part of an exponent.
	MaxExponent int64 `yaml:"max_exponent"`
	// MaxDigits is the largest estimated number of digits in the exact part
	// of a power.
	MaxDigits int64 `yaml:"max_digits"`
	// IncludeInvolvedTargets adds the currencies named in a query to its
	// targets.
	IncludeInvolvedTargets bool `yaml:"include_involved_targets"`
	// Rates maps currency codes to the units of the rate base currency that
	// one unit is worth, as decimal strings.
	Rates map[string]string `yaml:"rates"`
	// Messages are the templates of user-facing error messages keyed by
	// ErrorKind strings.
	Messages Messages `yaml:"messages"`
}

// CurrencyConfig is the currencies section of a Config.
type CurrencyConfig struct {
	// Base is the default base currency.
	Base string `yaml:"base"`
	// RateBase is the currency the rate collaborator converts into. It
	// defaults to Base.
	RateBase string `yaml:"rate_base"`
	// Default are the target currencies of every query.
	Default []string `yaml:"default"`
	// Supported are all recognized currencies. Order matters: an alias
	// belongs to the first currency that lists it.
	Supported []Currency `yaml:"supported"`
}

//go:embed default.yaml
var defaultYAML []byte

// DefaultConfig returns a new copy of the built-in configuration.
func DefaultConfig() *Config {
	cfg, err := LoadConfig(bytes.NewReader(defaultYAML))
	if err != nil {
		panic("moneyexpr: invalid built-in configuration: " + err.Error())
	}
	return cfg
}

// LoadConfig decodes and validates a YAML configuration. Unknown keys are
// errors.
func LoadConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile loads a YAML configuration from a file.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := LoadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Context creates an evaluation context with the configured precision and
// exponent limit. Zero values select the defaults.
func (cfg *Config) Context() *Context {
	var opts []ContextOption
	if cfg.Precision != 0 {
		opts = append(opts, Prec(cfg.Precision))
	}
	if cfg.MaxExponent != 0 {
		opts = append(opts, MaxExponent(cfg.MaxExponent))
	}
	if cfg.MaxDigits != 0 {
		opts = append(opts, MaxDigits(cfg.MaxDigits))
	}
	return NewContext(opts...)
}

// rateBase returns the currency rates are expressed in.
func (cfg *Config) rateBase() string {
	if cfg.Currencies.RateBase == "" {
		return cfg.Currencies.Base
	}
	return cfg.Currencies.RateBase
}

// Validate checks the configuration for consistency. Errors wrap
// ErrInvalidConfig and name the offending key.
func (cfg *Config) Validate() error {
	c := &cfg.Currencies
	if len(c.Supported) == 0 {
		return invalid("currencies.supported", "no currencies")
	}
	seen := make(map[string]bool, len(c.Supported))
	for i, cur := range c.Supported {
		if !validCode(cur.Code) {
			return invalid(fmt.Sprintf("currencies.supported[%d].code", i), "%q is not a 3-4 letter code", cur.Code)
		}
		if seen[cur.Code] {
			return invalid(fmt.Sprintf("currencies.supported[%d].code", i), "duplicate code %q", cur.Code)
		}
		seen[cur.Code] = true
	}
	if !seen[c.Base] {
		return invalid("currencies.base", "unsupported currency %q", c.Base)
	}
	if !seen[cfg.rateBase()] {
		return invalid("currencies.rate_base", "unsupported currency %q", c.RateBase)
	}
	for i, d := range c.Default {
		if !seen[d] {
			return invalid(fmt.Sprintf("currencies.default[%d]", i), "unsupported currency %q", d)
		}
	}
	for k, v := range cfg.Magnitudes {
		if k == "" || v <= 0 {
			return invalid("magnitudes."+k, "magnitude must be a non-empty suffix with a positive power")
		}
	}
	if cfg.Precision < 0 {
		return invalid("precision", "negative precision %d", cfg.Precision)
	}
	if cfg.MaxExponent < 0 {
		return invalid("max_exponent", "negative maximum %d", cfg.MaxExponent)
	}
	if cfg.MaxDigits < 0 {
		return invalid("max_digits", "negative maximum %d", cfg.MaxDigits)
	}
	for k, v := range cfg.Rates {
		if !seen[k] {
			return invalid("rates."+k, "unsupported currency %q", k)
		}
		r, err := decimal.NewFromString(v)
		if err != nil || r.Sign() <= 0 {
			return invalid("rates."+k, "rate %q is not a positive decimal", v)
		}
	}
	for k := range cfg.Messages {
		if !knownKind(k) {
			return invalid("messages."+k, "unknown message")
		}
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
}

func validCode(code string) bool {
	n := 0
	for _, r := range code {
		if !unicode.IsLetter(r) {
			return false
		}
		n++
	}
	return 3 <= n && n <= 4
}

func knownKind(key string) bool {
	for _, k := range errorKindKeys[1:] {
		if k == key {
			return true
		}
	}
	return false
}
