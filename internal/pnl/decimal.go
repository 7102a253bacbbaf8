// Package pnl holds the stateless profit, risk and sizing formulas used by the
// engine. Every function is parameterised explicitly by direction, prices,
// size and multipliers.
package pnl

import (
	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of decimal places kept by every division.
// Rounding is half away from zero.
const DivisionPrecision = 16

var hundred = decimal.NewFromInt(100)

// Div divides a by b at DivisionPrecision. The second return value is false
// when b is zero, in which case no division is attempted.
func Div(a, b decimal.Decimal) (decimal.Decimal, bool) {
	if b.IsZero() {
		return decimal.Zero, false
	}
	return a.DivRound(b, DivisionPrecision), true
}

// Pct returns part/whole*100, or false when whole is zero.
func Pct(part, whole decimal.Decimal) (decimal.Decimal, bool) {
	ratio, ok := Div(part, whole)
	if !ok {
		return decimal.Zero, false
	}
	return ratio.Mul(hundred), true
}

// Null wraps a value that may be undefined.
func Null(d decimal.Decimal, ok bool) decimal.NullDecimal {
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
