// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals with two fraction digits. They are stored as
// integer cents and converted to decimal.Decimal for arithmetic and display.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxIntegerDigits bounds the integer part of an amount (12 digits total,
// 2 of them fractional).
const MaxIntegerDigits = 10

var ErrInvalidAmount = errors.New("invalid amount")

// Money is a non-negative exact amount with two fraction digits. The zero
// value is 0.00.
type Money struct {
	decimal.Decimal
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{Decimal: decimal.New(cents, -2)}
}

// ParseMoney parses a user-entered amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// more than two fraction digits and more than MaxIntegerDigits integer
// digits are rejected. Zero is a valid amount.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34, nil
//	ParseMoney("12,3")   -> 12.30, nil
//	ParseMoney("12.345") -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := strings.TrimLeft(parts[0], "0")
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
		if fracPart == "" && parts[0] == "" {
			return Money{}, ErrInvalidAmount
		}
	}
	if !allDigits(parts[0]) || !allDigits(fracPart) {
		return Money{}, ErrInvalidAmount
	}
	if len(intPart) > MaxIntegerDigits || len(fracPart) > 2 {
		return Money{}, ErrInvalidAmount
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{Decimal: d}, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Validate checks the amount is non-negative, has at most two fraction
// digits and fits the integer digit limit.
func (m Money) Validate() error {
	if m.IsNegative() {
		return ErrInvalidAmount
	}
	if !m.Equal(m.Truncate(2)) {
		return ErrInvalidAmount
	}
	if len(m.Truncate(0).String()) > MaxIntegerDigits {
		return ErrInvalidAmount
	}
	return nil
}

// Cents returns the amount as integer cents.
func (m Money) Cents() int64 {
	return m.Shift(2).IntPart()
}

func (m Money) Add(o Money) Money { return Money{Decimal: m.Decimal.Add(o.Decimal)} }

// Sub may produce a negative result; only derived balances use it.
func (m Money) Sub(o Money) Money { return Money{Decimal: m.Decimal.Sub(o.Decimal)} }

func (m Money) String() string { return m.StringFixed(2) }

// Format renders the amount with the currency symbol and thousands
// separators, e.g. "S/ 1,234.50".
func (m Money) Format(c Currency) string {
	s := m.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if m.IsNegative() {
		sign = "-"
	}
	return sign + c.Symbol() + " " + b.String() + "." + frac
}
