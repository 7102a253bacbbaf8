package analysis

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// ComputeEquityCurve returns the account value before the first trade and
// after each trade.
func ComputeEquityCurve(startingCapital decimal.Decimal, trades []types.Trade) []decimal.Decimal {
	curve := make([]decimal.Decimal, 0, len(trades)+1)
	curve = append(curve, startingCapital)

	capital := startingCapital
	for _, trade := range trades {
		capital = capital.Add(trade.Profit)
		curve = append(curve, capital)
	}
	return curve
}

// ComputeDrawdown returns the distance below the running peak, as a zero or
// negative amount, before the first trade and after each trade.
func ComputeDrawdown(startingCapital decimal.Decimal, trades []types.Trade) ([]decimal.Decimal, error) {
	if !startingCapital.IsPositive() {
		return nil, ErrInvalidCapital
	}

	drawdown := make([]decimal.Decimal, 0, len(trades)+1)
	drawdown = append(drawdown, decimal.Zero)

	capital := startingCapital
	peak := startingCapital
	for _, trade := range trades {
		capital = capital.Add(trade.Profit)
		if capital.LessThan(peak) {
			drawdown = append(drawdown, capital.Sub(peak))
			continue
		}
		peak = capital
		drawdown = append(drawdown, decimal.Zero)
	}
	return drawdown, nil
}
