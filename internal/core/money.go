// Package core provides money parsing and handling utilities.
//
// Amounts are held as int64 minor units (cents). Parsing, rounding and
// formatting go through decimal arithmetic so that no float ever touches a
// balance.
package core

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in minor units.
type Money struct {
	Cents int64
}

func Cents(c int64) Money { return Money{Cents: c} }

// ParseDecimalToCents converts a positive decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Zero, negative and malformed input is
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// ParseMoney parses a signed decimal string. Only digits, one separator
// and a leading minus sign are accepted.
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	digits := strings.TrimPrefix(s, "-")
	if digits == "" || strings.Count(digits, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && r != '.' {
			return Money{}, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(digits, ".") {
		s = strings.Replace(s, ".", "0.", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// FromDecimal rounds d to the nearest cent (half away from zero).
func FromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

const maxCents = 1<<62 - 1

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add saturates at the int64 range instead of wrapping. Balances use
// AddChecked so they never reach the bounds.
func (m Money) Add(o Money) Money {
	sum := m.Cents + o.Cents
	switch {
	case o.Cents > 0 && sum < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && sum > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: sum}
}

func (m Money) Sub(o Money) Money {
	diff := m.Cents - o.Cents
	switch {
	case o.Cents < 0 && diff < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents > 0 && diff > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: diff}
}

// AddChecked adds o and fails with ErrBalanceOverflow when the result leaves
// the range an amount may hold.
func (m Money) AddChecked(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) || sum > maxCents || sum < -maxCents {
		return Money{}, ErrBalanceOverflow
	}
	return Money{Cents: sum}, nil
}

// DivRound divides by n rounding to the nearest cent. n <= 0 yields zero.
func (m Money) DivRound(n int64) Money {
	if n <= 0 {
		return Money{}
	}
	q := m.Decimal().Div(decimal.NewFromInt(n))
	out, _ := FromDecimal(q)
	return out
}

// Validate reports whether m is usable as a transaction amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return errors.Join(ErrInvalidAmount, err)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
