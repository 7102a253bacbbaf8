package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimestampedValue is one point of a recorded series.
type TimestampedValue struct {
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// StopState exists on a position only when a stop-loss or trailing stop was
// configured for it.
type StopState struct {
	InitialPrice    decimal.Decimal
	CurrentPrice    decimal.Decimal
	InitialUnitRisk decimal.Decimal
	InitialRiskPct  decimal.Decimal
	CurRiskPct      decimal.Decimal
	CurRMultiple    decimal.NullDecimal
}

// Position is the working state of the currently open trade.
type Position struct {
	Direction     Direction
	EntryTime     time.Time
	EntryPrice    decimal.Decimal
	EntryReason   string
	Profit        decimal.Decimal
	ProfitPct     decimal.Decimal
	HoldingPeriod int
	Size          decimal.Decimal

	Stop         *StopState
	ProfitTarget decimal.NullDecimal

	StopPriceSeries []TimestampedValue
	RiskSeries      []TimestampedValue

	Options *StrategyOptions
}

// CurrentStop returns the live stop price, if any.
func (p *Position) CurrentStop() (decimal.Decimal, bool) {
	if p == nil || p.Stop == nil {
		return decimal.Zero, false
	}
	return p.Stop.CurrentPrice, true
}
