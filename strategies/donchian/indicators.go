package donchian

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// Indicator names written by PrepIndicators.
const (
	IndicatorUpper     = "donchianUpper"
	IndicatorLower     = "donchianLower"
	IndicatorExitUpper = "exitUpper"
	IndicatorExitLower = "exitLower"
	IndicatorATR       = "atr"
)

// Utility: Donchian Channel High/Low
func donchianHighLow(candles []types.Candle) (decimal.Decimal, decimal.Decimal) {
	if len(candles) == 0 {
		return decimal.Zero, decimal.Zero
	}

	highest := candles[0].High
	lowest := candles[0].Low

	for _, c := range candles {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
	}
	return highest, lowest
}

// atrSeries returns Wilder's average true range for every candle. The first
// period candles have no value.
func atrSeries(candles []types.Candle, period int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(candles))
	if period < 1 || len(candles) < period+1 {
		return out // need enough data (prev candle + period)
	}

	trueRanges := make([]decimal.Decimal, len(candles))
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		range1 := high.Sub(low)
		range2 := high.Sub(prevClose).Abs()
		range3 := low.Sub(prevClose).Abs()

		trueRanges[i] = decimal.Max(range1, range2, range3)
	}

	n := decimal.NewFromInt(int64(period))
	atr := decimal.Zero
	for _, tr := range trueRanges[1 : period+1] {
		atr = atr.Add(tr)
	}
	atr = atr.Div(n)
	out[period] = decimal.NewNullDecimal(atr)

	for i := period + 1; i < len(candles); i++ {
		atr = (atr.Mul(decimal.NewFromInt(int64(period - 1))).Add(trueRanges[i])).Div(n)
		out[i] = decimal.NewNullDecimal(atr)
	}
	return out
}

// withIndicators copies bars and annotates each with the entry and exit
// channels of the preceding bars and the ATR up to and including the bar.
func withIndicators(bars []types.Candle, entryPeriod, exitPeriod, atrPeriod int) []types.Candle {
	out := make([]types.Candle, len(bars))
	atr := atrSeries(bars, atrPeriod)
	for i, bar := range bars {
		if i >= entryPeriod {
			upper, lower := donchianHighLow(bars[i-entryPeriod : i])
			bar = bar.WithIndicator(IndicatorUpper, upper).WithIndicator(IndicatorLower, lower)
		}
		if i >= exitPeriod {
			upper, lower := donchianHighLow(bars[i-exitPeriod : i])
			bar = bar.WithIndicator(IndicatorExitUpper, upper).WithIndicator(IndicatorExitLower, lower)
		}
		if atr[i].Valid {
			bar = bar.WithIndicator(IndicatorATR, atr[i].Decimal)
		}
		out[i] = bar
	}
	return out
}
