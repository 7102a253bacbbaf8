package engine

import (
	"fmt"

	"tradesim/internal/pnl"
	"tradesim/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// backtester holds the state of one run. It is not safe for concurrent use.
type backtester struct {
	logger     *zap.Logger
	caps       capabilities
	options    *types.StrategyOptions
	orderSize  types.OrderSize
	parameters types.Parameters
	recordStop bool
	recordRisk bool

	lookback       *Window[types.Candle]
	state          state
	workingCapital decimal.Decimal
	trades         []types.Trade

	// violation is set by the enter and exit capabilities when they are used
	// in the wrong state. It aborts the run even if the callback ignores it.
	violation error
}

func newBacktester(logger *zap.Logger, caps capabilities, opts *BacktestOptions, orderSize types.OrderSize, params types.Parameters, lookback int) *backtester {
	return &backtester{
		logger:         logger,
		caps:           caps,
		options:        opts.strategyOptions,
		orderSize:      orderSize,
		parameters:     params,
		recordStop:     opts.recordStopPrice,
		recordRisk:     opts.recordRisk,
		lookback:       NewWindow[types.Candle](lookback),
		state:          flatState{},
		workingCapital: opts.strategyOptions.InitialCapital,
		trades:         make([]types.Trade, 0),
	}
}

func (b *backtester) run(bars []types.Candle) (*Result, error) {
	for _, bar := range bars {
		b.lookback.Push(bar)
		if !b.lookback.Full() {
			continue
		}
		if err := b.step(bar); err != nil {
			return nil, err
		}
	}

	if pos := livePosition(b.state); pos != nil {
		last := bars[len(bars)-1]
		b.closePosition(pos, last, last.Close, types.ExitReasonFinalize)
	}

	return &Result{
		Trades:       b.trades,
		FinalCapital: b.workingCapital,
	}, nil
}

func (b *backtester) step(bar types.Candle) error {
	switch st := b.state.(type) {
	case flatState:
		return b.stepFlat(bar)
	case pendingEntryState:
		return b.stepPendingEntry(st, bar)
	case openState:
		return b.stepOpen(st.position, bar)
	case pendingExitState:
		b.closePosition(st.position, bar, bar.Open, types.ExitReasonExitRule)
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnreachableState, b.state)
	}
}

func (b *backtester) stepFlat(bar types.Candle) error {
	args := EntryArgs{
		Bar:        bar,
		Lookback:   b.lookback.Items(),
		Parameters: b.parameters,
	}
	if err := b.caps.entry(b.enterPosition, args); err != nil {
		return err
	}
	return b.violation
}

// enterPosition is the capability handed to the entry rule.
func (b *backtester) enterPosition(opts types.EnterOptions) error {
	if _, ok := b.state.(flatState); !ok {
		b.violation = fmt.Errorf("%w: enter called in state %s", ErrStateViolation, b.state.stateName())
		return b.violation
	}
	dir := opts.Direction
	if dir == "" {
		dir = types.DirectionLong
	}
	b.state = pendingEntryState{
		direction:        dir,
		conditionalPrice: opts.EntryPrice,
		reason:           opts.Reason,
	}
	return nil
}

// exitPosition is the capability handed to the exit rule.
func (b *backtester) exitPosition() error {
	st, ok := b.state.(openState)
	if !ok {
		b.violation = fmt.Errorf("%w: exit called in state %s", ErrStateViolation, b.state.stateName())
		return b.violation
	}
	b.state = pendingExitState(st)
	return nil
}

func (b *backtester) stepPendingEntry(st pendingEntryState, bar types.Candle) error {
	if st.conditionalPrice.Valid && !pnl.EntryTriggered(st.direction, bar, st.conditionalPrice.Decimal) {
		return nil
	}
	pos, err := b.fillEntry(st, bar)
	if err != nil {
		return err
	}
	b.state = openState{position: pos}
	b.logger.Debug("position opened",
		zap.String("direction", string(pos.Direction)),
		zap.Time("time", pos.EntryTime),
		zap.Stringer("price", pos.EntryPrice),
		zap.Stringer("size", pos.Size),
		zap.String("reason", pos.EntryReason))
	return nil
}

// fillEntry opens a position at the bar's open and derives its initial stop,
// risk and profit target.
func (b *backtester) fillEntry(st pendingEntryState, bar types.Candle) (*types.Position, error) {
	entryPrice := bar.Open
	pos := &types.Position{
		Direction:   st.direction,
		EntryTime:   bar.Timestamp,
		EntryPrice:  entryPrice,
		EntryReason: st.reason,
		Profit:      decimal.Zero,
		ProfitPct:   decimal.Zero,
		Size:        decimal.Zero,
		Options:     b.options,
	}

	size, err := b.positionSize(pos)
	if err != nil {
		return nil, err
	}
	pos.Size = size

	var stop decimal.NullDecimal
	if b.caps.stopLoss != nil {
		distance, err := b.caps.stopLoss(b.stopArgs(pos, bar))
		if err != nil {
			return nil, err
		}
		stop = decimal.NewNullDecimal(pnl.StopPrice(pos.Direction, entryPrice, distance))
	}
	if b.caps.trailingStopLoss != nil {
		distance, err := b.caps.trailingStopLoss(b.stopArgs(pos, bar))
		if err != nil {
			return nil, err
		}
		trailing := pnl.StopPrice(pos.Direction, entryPrice, distance)
		if stop.Valid {
			trailing = pnl.Tighten(pos.Direction, stop.Decimal, trailing)
		}
		stop = decimal.NewNullDecimal(trailing)
	}

	if stop.Valid {
		unitRisk := pnl.UnitRisk(pos.Direction, entryPrice, stop.Decimal)
		riskPct, _ := pnl.RiskPct(unitRisk, entryPrice)
		pos.Stop = &types.StopState{
			InitialPrice:    stop.Decimal,
			CurrentPrice:    stop.Decimal,
			InitialUnitRisk: unitRisk,
			InitialRiskPct:  riskPct,
			CurRiskPct:      riskPct,
			CurRMultiple:    decimal.NewNullDecimal(decimal.Zero),
		}
		if b.recordStop {
			pos.StopPriceSeries = []types.TimestampedValue{{Time: bar.Timestamp, Value: stop.Decimal}}
		}
		if b.recordRisk {
			pos.RiskSeries = []types.TimestampedValue{{Time: bar.Timestamp, Value: riskPct}}
		}
	}

	if b.caps.profitTarget != nil {
		distance, err := b.caps.profitTarget(b.stopArgs(pos, bar))
		if err != nil {
			return nil, err
		}
		pos.ProfitTarget = decimal.NewNullDecimal(pnl.TargetPrice(pos.Direction, entryPrice, distance))
	}
	return pos, nil
}

func (b *backtester) positionSize(pos *types.Position) (decimal.Decimal, error) {
	if b.orderSize.Kind == types.OrderSizeCustom {
		return b.orderSize.Units(types.SizingArgs{
			WorkingCapital: b.workingCapital,
			EntryPrice:     pos.EntryPrice,
			Direction:      pos.Direction,
			Options:        b.options,
		})
	}
	return pnl.PositionSize(
		b.workingCapital,
		b.orderSize.Percentage,
		pos.EntryPrice,
		b.options.ContractMultiplierOrOne(),
		b.options.LeverageOrOne(),
	), nil
}

func (b *backtester) stepOpen(pos *types.Position, bar types.Candle) error {
	if stop, ok := pos.CurrentStop(); ok && pnl.StopHit(pos.Direction, bar, stop) {
		b.closePosition(pos, bar, stop, types.ExitReasonStopLoss)
		return nil
	}

	if b.caps.trailingStopLoss != nil && pos.Stop != nil {
		distance, err := b.caps.trailingStopLoss(b.stopArgs(pos, bar))
		if err != nil {
			return err
		}
		candidate := pnl.StopPrice(pos.Direction, bar.Close, distance)
		pos.Stop.CurrentPrice = pnl.Tighten(pos.Direction, pos.Stop.CurrentPrice, candidate)
	}
	if pos.Stop != nil && b.recordStop {
		pos.StopPriceSeries = append(pos.StopPriceSeries, types.TimestampedValue{Time: bar.Timestamp, Value: pos.Stop.CurrentPrice})
	}

	if pos.ProfitTarget.Valid && pnl.TargetHit(pos.Direction, bar, pos.ProfitTarget.Decimal) {
		b.closePosition(pos, bar, pos.ProfitTarget.Decimal, types.ExitReasonProfitTarget)
		return nil
	}

	updatePosition(pos, bar)
	if pos.Stop != nil && b.recordRisk {
		pos.RiskSeries = append(pos.RiskSeries, types.TimestampedValue{Time: bar.Timestamp, Value: pos.Stop.CurRiskPct})
	}

	if b.caps.exit == nil {
		return nil
	}
	args := ExitArgs{
		EntryPrice: pos.EntryPrice,
		Position:   snapshot(pos),
		Bar:        bar,
		Lookback:   b.lookback.Items(),
		Parameters: b.parameters,
	}
	if err := b.caps.exit(b.exitPosition, args); err != nil {
		return err
	}
	return b.violation
}

// updatePosition marks an open position to the bar's close.
func updatePosition(pos *types.Position, bar types.Candle) {
	price := bar.Close
	pos.Profit = pnl.Profit(pos.Direction, pos.EntryPrice, price)
	pos.ProfitPct, _ = pnl.Pct(pos.Profit, pos.EntryPrice)

	if pos.Options != nil && pos.Options.Leverage.Valid {
		pos.Profit = pnl.RealisedPnl(pos.Direction, pos.EntryPrice, price, pos.Size, pos.Options.ContractMultiplierOrOne())
		pos.ProfitPct = pnl.Roe(pos.Direction, pos.EntryPrice, price, pos.Options.Leverage.Decimal)
	}

	if pos.Stop != nil {
		unitRisk := pnl.UnitRisk(pos.Direction, price, pos.Stop.CurrentPrice)
		pos.Stop.CurRiskPct, _ = pnl.RiskPct(unitRisk, price)
		pos.Stop.CurRMultiple = pnl.RMultiple(pos.Profit, unitRisk)
	}

	pos.HoldingPeriod++
}

func (b *backtester) stopArgs(pos *types.Position, bar types.Candle) StopArgs {
	return StopArgs{
		EntryPrice: pos.EntryPrice,
		Position:   snapshot(pos),
		Bar:        bar,
		Lookback:   b.lookback.Items(),
		Parameters: b.parameters,
	}
}

func (b *backtester) closePosition(pos *types.Position, bar types.Candle, exitPrice decimal.Decimal, reason string) {
	trade := finalizePosition(pos, bar.Timestamp, exitPrice, reason, b.caps.fees)
	b.trades = append(b.trades, trade)
	b.workingCapital = b.workingCapital.Add(trade.Profit)
	b.state = flatState{}

	b.logger.Debug("position closed",
		zap.String("reason", reason),
		zap.Time("time", trade.ExitTime),
		zap.Stringer("price", exitPrice),
		zap.Stringer("profit", trade.Profit),
		zap.Stringer("workingCapital", b.workingCapital))
}
