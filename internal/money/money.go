// Package money models currency amounts as exact decimals tagged with an ISO
// 4217 currency code.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when two amounts in different currencies are combined.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Money is an exact amount in a single currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount" bson:"amount"`
	CurrencyCode string          `json:"currencyCode" bson:"currencyCode"`
}

// New builds a Money value, normalising the currency code to upper case.
func New(amount decimal.Decimal, currencyCode string) Money {
	return Money{Amount: amount, CurrencyCode: normalizeCode(currencyCode)}
}

// Zero returns a zero amount in the given currency.
func Zero(currencyCode string) Money {
	return New(decimal.Zero, currencyCode)
}

// FromMinor converts an amount expressed in minor units (cents) into Money.
func FromMinor(minor int64, currencyCode string) Money {
	code := normalizeCode(currencyCode)
	return Money{Amount: decimal.New(minor, -Precision(code)), CurrencyCode: code}
}

// MustParse parses a decimal string and panics on failure. Intended for tests and constants.
func MustParse(amount, currencyCode string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(fmt.Sprintf("money: parse %q: %v", amount, err))
	}
	return New(d, currencyCode)
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	code, err := m.sharedCode(o)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(o.Amount), CurrencyCode: code}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	code, err := m.sharedCode(o)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(o.Amount), CurrencyCode: code}, nil
}

// Mul multiplies the amount by an integer quantity.
func (m Money) Mul(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)), CurrencyCode: m.CurrencyCode}
}

// Round rounds half-up to the minor unit precision of the currency.
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(Precision(m.CurrencyCode)), CurrencyCode: m.CurrencyCode}
}

// FloorZero clamps negative amounts to zero.
func (m Money) FloorZero() Money {
	if m.Amount.IsNegative() {
		return Money{Amount: decimal.Zero, CurrencyCode: m.CurrencyCode}
	}
	return m
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Equal compares amount and currency. Amounts are compared numerically so 10 equals 10.00.
func (m Money) Equal(o Money) bool {
	return m.CurrencyCode == o.CurrencyCode && m.Amount.Equal(o.Amount)
}

// MinorUnits returns the amount in minor units, rounding half-up first.
func (m Money) MinorUnits() int64 {
	return m.Amount.Shift(Precision(m.CurrencyCode)).Round(0).IntPart()
}

// String renders "12.50 EUR".
func (m Money) String() string {
	return m.Amount.StringFixed(Precision(m.CurrencyCode)) + " " + m.CurrencyCode
}

func (m Money) sharedCode(o Money) (string, error) {
	switch {
	case m.CurrencyCode == o.CurrencyCode:
		return m.CurrencyCode, nil
	case m.CurrencyCode == "" && m.Amount.IsZero():
		return o.CurrencyCode, nil
	case o.CurrencyCode == "" && o.Amount.IsZero():
		return m.CurrencyCode, nil
	}
	return "", fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.CurrencyCode, o.CurrencyCode)
}

// Sum adds all values, starting from zero in currencyCode.
func Sum(currencyCode string, values ...Money) (Money, error) {
	total := Zero(currencyCode)
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

// Precision returns the number of minor-unit digits for a currency.
func Precision(currencyCode string) int32 {
	switch normalizeCode(currencyCode) {
	case "JPY", "KRW", "VND", "CLP", "ISK", "HUF", "XAF", "XOF":
		return 0
	case "BHD", "KWD", "OMR", "TND", "JOD":
		return 3
	default:
		return 2
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
