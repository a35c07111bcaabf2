// Package money converts between decimal currency amounts and the int64
// cents the ledger stores.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more than two decimal places")
	ErrOutOfRange    = errors.New("amount out of range")
)

// MaxCents is the largest magnitude a single amount may carry,
// 999,999,999,999.99. The database enforces the same bound.
const MaxCents int64 = 99_999_999_999_999

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(MaxCents)
)

// FromDecimal converts d to cents. Amounts with sub-cent precision are rejected
// rather than rounded.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if !d.Round(2).Equal(d) {
		return 0, ErrTooPrecise
	}

	cents := d.Mul(hundred)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, ErrOutOfRange
	}

	return cents.IntPart(), nil
}

// Add returns a+b, or ErrOutOfRange when the sum does not fit in int64.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOutOfRange
	}

	return sum, nil
}

// Sub returns a-b, or ErrOutOfRange when the difference does not fit in int64.
func Sub(a, b int64) (int64, error) {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) {
		return 0, ErrOutOfRange
	}

	return diff, nil
}

// Parse reads a dot-separated decimal string such as "1234.56" into cents.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	return FromDecimal(d)
}

// ParseEuropean reads European-formatted amounts into cents with the same
// precision and range rules as Parse.
// Format examples: "1.234,56" -> 123456, "-588,74" -> -58874, "10,00" -> 1000.
func ParseEuropean(s string) (int64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	if clean == "" {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	return FromDecimal(d)
}

// Decimal returns cents as a decimal amount with two places.
func Decimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents as a plain decimal string, e.g. -1050 -> "-10.50".
func Format(cents int64) string {
	return Decimal(cents).StringFixed(2)
}
