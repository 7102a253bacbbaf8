package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Indicators holds values precomputed by the caller
// or by a strategy's indicator preparation step.
type Candle struct {
	AssetId    int                        `json:"id"`
	Ticker     string                     `json:"ticker"`
	Open       decimal.Decimal            `json:"open"`
	Close      decimal.Decimal            `json:"close"`
	High       decimal.Decimal            `json:"high"`
	Low        decimal.Decimal            `json:"low"`
	Volume     decimal.Decimal            `json:"volume"`
	Interval   Interval                   `json:"interval"`
	Timestamp  time.Time                  `json:"timestamp"`
	Indicators map[string]decimal.Decimal `json:"indicators,omitempty"`
}

// Indicator returns a named indicator value and whether it was present.
func (c Candle) Indicator(name string) (decimal.Decimal, bool) {
	v, ok := c.Indicators[name]
	return v, ok
}

// WithIndicator returns a copy of the candle with the indicator set. The
// receiver's map is never written to.
func (c Candle) WithIndicator(name string, value decimal.Decimal) Candle {
	indicators := make(map[string]decimal.Decimal, len(c.Indicators)+1)
	for k, v := range c.Indicators {
		indicators[k] = v
	}
	indicators[name] = value
	c.Indicators = indicators
	return c
}
