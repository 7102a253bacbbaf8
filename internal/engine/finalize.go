package engine

import (
	"time"

	"tradesim/internal/pnl"
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// finalizePosition freezes a closing position into a trade. feeRate is a
// percentage of size charged on entry and again on exit; an absent or zero
// rate charges nothing.
func finalizePosition(pos *types.Position, exitTime time.Time, exitPrice decimal.Decimal, reason string, feeRate decimal.NullDecimal) types.Trade {
	profit := pnl.Profit(pos.Direction, pos.EntryPrice, exitPrice)
	profitPct, _ := pnl.Pct(profit, pos.EntryPrice)

	trade := types.Trade{
		Direction:     pos.Direction,
		EntryTime:     pos.EntryTime,
		EntryPrice:    pos.EntryPrice,
		EntryReason:   pos.EntryReason,
		ExitTime:      exitTime,
		ExitPrice:     exitPrice,
		ExitReason:    reason,
		HoldingPeriod: pos.HoldingPeriod,
		ProfitTarget:  pos.ProfitTarget,
		Size:          pos.Size,
		Leverage:      pos.Options.LeverageOrOne(),
		Strategy:      pos.Options.Snapshot(),
	}

	if pos.Stop != nil {
		trade.RMultiple = pnl.RMultiple(profit, pos.Stop.InitialUnitRisk)
		trade.RiskPct = decimal.NewNullDecimal(pos.Stop.InitialRiskPct)
		trade.StopPrice = decimal.NewNullDecimal(pos.Stop.InitialPrice)
	}

	if pos.Options != nil && pos.Options.Leverage.Valid {
		profit = pnl.RealisedPnl(pos.Direction, pos.EntryPrice, exitPrice, pos.Size, pos.Options.ContractMultiplierOrOne())
		profitPct = pnl.Roe(pos.Direction, pos.EntryPrice, exitPrice, pos.Options.Leverage.Decimal)
	}

	if feeRate.Valid && !feeRate.Decimal.IsZero() {
		profit = profit.Sub(pnl.RoundTripFee(pos.Size, feeRate.Decimal))
	}

	trade.Profit = profit
	trade.ProfitPct = profitPct
	if len(pos.StopPriceSeries) > 0 {
		trade.StopPriceSeries = append([]types.TimestampedValue(nil), pos.StopPriceSeries...)
	}
	if len(pos.RiskSeries) > 0 {
		trade.RiskSeries = append([]types.TimestampedValue(nil), pos.RiskSeries...)
	}
	return trade
}
