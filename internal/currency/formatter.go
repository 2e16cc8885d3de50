// Package currency renders monetary amounts for display.
package currency

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Defaults give western digit grouping with the rupee sign.
const (
	DefaultLocale = "en"
	DefaultSymbol = "₹"

	decimalPlaces = 2
)

// Config selects the locale used for digit grouping and the symbol prefixed
// to every amount.
type Config struct {
	Locale string
	Symbol string
}

// Formatter formats amounts with grouping separators and two decimals.
// A Formatter is immutable and safe for concurrent use.
type Formatter struct {
	tag    language.Tag
	symbol string
}

// New builds a Formatter. It fails if the locale is not a valid BCP 47 tag.
func New(cfg Config) (*Formatter, error) {
	locale := cfg.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid currency locale %q: %w", locale, err)
	}

	return &Formatter{
		tag:    tag,
		symbol: cfg.Symbol,
	}, nil
}

// Format renders amount as symbol + grouped value, e.g. ₹4,550,000.00.
func (f *Formatter) Format(amount float64) string {
	// message.Printer is not safe for concurrent use.
	p := message.NewPrinter(f.tag)

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = math.Abs(amount)
	}

	return sign + f.symbol + p.Sprint(number.Decimal(amount, number.Scale(decimalPlaces)))
}

// Locale returns the configured language tag.
func (f *Formatter) Locale() string {
	return f.tag.String()
}
