package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a closed position. Trades are never mutated once produced.
type Trade struct {
	Direction   Direction       `json:"direction"`
	EntryTime   time.Time       `json:"entryTime"`
	EntryPrice  decimal.Decimal `json:"entryPrice"`
	EntryReason string          `json:"entryReason,omitempty"`
	ExitTime    time.Time       `json:"exitTime"`
	ExitPrice   decimal.Decimal `json:"exitPrice"`
	ExitReason  string          `json:"exitReason"`

	Profit    decimal.Decimal     `json:"profit"`
	ProfitPct decimal.Decimal     `json:"profitPct"`
	RiskPct   decimal.NullDecimal `json:"riskPct"`
	RMultiple decimal.NullDecimal `json:"rmultiple"`

	HoldingPeriod int                 `json:"holdingPeriod"`
	StopPrice     decimal.NullDecimal `json:"stopPrice"`
	ProfitTarget  decimal.NullDecimal `json:"profitTarget"`
	Size          decimal.Decimal     `json:"size"`
	Leverage      decimal.Decimal     `json:"leverage"`

	StopPriceSeries []TimestampedValue `json:"stopPriceSeries,omitempty"`
	RiskSeries      []TimestampedValue `json:"riskSeries,omitempty"`

	Strategy string `json:"strategy,omitempty"`
}

func (t Trade) IsWinner() bool {
	return t.Profit.GreaterThan(decimal.Zero)
}

// Duration is the wall-clock time between entry and exit.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
