package pnl

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// Profit is the unleveraged per-unit profit of a trade.
func Profit(dir types.Direction, entry, exit decimal.Decimal) decimal.Decimal {
	if dir.IsLong() {
		return exit.Sub(entry)
	}
	return entry.Sub(exit)
}

// RealisedPnl is the cash profit of size contracts:
//
//	long:  (exit - entry) * size * contractMultiplier
//	short: (entry - exit) * size * contractMultiplier
func RealisedPnl(dir types.Direction, entry, exit, size, contractMultiplier decimal.Decimal) decimal.Decimal {
	return Profit(dir, entry, exit).Mul(size).Mul(contractMultiplier)
}

// Roe is the leveraged return on equity in percent.
func Roe(dir types.Direction, entry, exit, leverage decimal.Decimal) decimal.Decimal {
	roe, _ := Pct(Profit(dir, entry, exit).Mul(leverage), entry)
	return roe
}

// UnitRisk is the per-unit distance between price and stop, signed so that a
// stop on the losing side of price gives a positive risk.
func UnitRisk(dir types.Direction, price, stop decimal.Decimal) decimal.Decimal {
	if dir.IsLong() {
		return price.Sub(stop)
	}
	return stop.Sub(price)
}

// RiskPct expresses unit risk as a percentage of price.
func RiskPct(unitRisk, price decimal.Decimal) (decimal.Decimal, bool) {
	return Pct(unitRisk, price)
}

// RMultiple is profit expressed in units of risk. Undefined for zero risk.
func RMultiple(profit, unitRisk decimal.Decimal) decimal.NullDecimal {
	return Null(Div(profit, unitRisk))
}

// RoundTripFee charges feeRate percent of size on both entry and exit.
func RoundTripFee(size, feeRate decimal.Decimal) decimal.Decimal {
	return size.Mul(feeRate).DivRound(hundred, DivisionPrecision).Mul(decimal.NewFromInt(2))
}

// PositionSize is the whole number of contracts bought with percentage of
// capital at price:
//
//	floor(capital * percentage * leverage / (100 * price * contractMultiplier))
//
// The division is done once, last, and is exact.
func PositionSize(capital, percentage, price, contractMultiplier, leverage decimal.Decimal) decimal.Decimal {
	num := capital.Mul(percentage).Mul(leverage)
	den := hundred.Mul(price).Mul(contractMultiplier)
	if den.IsZero() {
		return decimal.Zero
	}
	return floorDiv(num, den)
}

// floorDiv is floor(num / den) computed without rounding.
func floorDiv(num, den decimal.Decimal) decimal.Decimal {
	q, r := num.QuoRem(den, 0)
	if !r.IsZero() && r.Sign() != den.Sign() {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q
}

// StopPrice places a stop distance away from ref on the losing side.
func StopPrice(dir types.Direction, ref, distance decimal.Decimal) decimal.Decimal {
	if dir.IsLong() {
		return ref.Sub(distance)
	}
	return ref.Add(distance)
}

// TargetPrice places a target distance away from ref on the winning side.
func TargetPrice(dir types.Direction, ref, distance decimal.Decimal) decimal.Decimal {
	if dir.IsLong() {
		return ref.Add(distance)
	}
	return ref.Sub(distance)
}

// Tighten returns whichever of current and candidate carries less risk: the
// higher stop for a long, the lower for a short.
func Tighten(dir types.Direction, current, candidate decimal.Decimal) decimal.Decimal {
	if dir.IsLong() {
		return decimal.Max(current, candidate)
	}
	return decimal.Min(current, candidate)
}

// StopHit reports whether the bar's range breached the stop.
func StopHit(dir types.Direction, bar types.Candle, stop decimal.Decimal) bool {
	if dir.IsLong() {
		return bar.Low.LessThanOrEqual(stop)
	}
	return bar.High.GreaterThanOrEqual(stop)
}

// TargetHit reports whether the bar's range reached the profit target.
func TargetHit(dir types.Direction, bar types.Candle, target decimal.Decimal) bool {
	if dir.IsLong() {
		return bar.High.GreaterThanOrEqual(target)
	}
	return bar.Low.LessThanOrEqual(target)
}

// EntryTriggered reports whether a conditional entry price was reached.
func EntryTriggered(dir types.Direction, bar types.Candle, price decimal.Decimal) bool {
	if dir.IsLong() {
		return bar.High.GreaterThanOrEqual(price)
	}
	return bar.Low.LessThanOrEqual(price)
}
