package engine

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultOrderPercentage is the share of equity committed to a position when
// the strategy does not size its own orders.
var defaultOrderPercentage = decimal.NewFromInt(90)

// Result is the output of a single backtest run.
type Result struct {
	Trades       []types.Trade
	FinalCapital decimal.Decimal
}

// Engine runs backtests. It carries no per-run state and may be shared by
// concurrent runs.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Backtest is a convenience for running with a silent logger.
func Backtest(strat Strategy, bars []types.Candle, opts *BacktestOptions) (*Result, error) {
	return NewEngine(nil).Backtest(strat, bars, opts)
}

// Backtest simulates strat over bars, one bar at a time, and returns the
// closed trades. Any error aborts the run and no trades are returned.
func (e *Engine) Backtest(strat Strategy, bars []types.Candle, opts *BacktestOptions) (*Result, error) {
	if strat == nil {
		return nil, ErrNilStrategy
	}
	caps := resolveCapabilities(strat)
	if caps.entry == nil {
		return nil, ErrNilStrategy
	}
	if opts == nil || opts.strategyOptions == nil {
		return nil, ErrNilOptions
	}
	so := opts.strategyOptions
	if !so.InitialCapital.IsPositive() {
		return nil, ErrInvalidCapital
	}
	if !so.LeverageOrOne().IsPositive() || !so.ContractMultiplierOrOne().IsPositive() {
		return nil, ErrInvalidLeverage
	}

	orderSize := types.PercentageOfEquity(defaultOrderPercentage)
	if caps.orderSize != nil {
		orderSize = *caps.orderSize
		if err := validateOrderSize(orderSize); err != nil {
			return nil, err
		}
	} else {
		e.logger.Warn("strategy has no order size, using default",
			zap.Stringer("percentageOfEquity", defaultOrderPercentage))
	}
	if !caps.fees.Valid {
		e.logger.Warn("strategy has no fee model, fees will not be simulated")
	}

	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	lookback := caps.lookbackPeriod
	if lookback == 0 {
		lookback = 1
	}
	if lookback < 1 {
		return nil, ErrInvalidLookback
	}
	if len(bars) < lookback {
		return nil, ErrInsufficientBars
	}

	params := mergeParameters(caps.parameters, opts.parameters)

	series := bars
	if caps.prep != nil {
		prepared, err := caps.prep(params.Clone(), append([]types.Candle(nil), bars...))
		if err != nil {
			return nil, err
		}
		if len(prepared) < lookback {
			return nil, ErrInsufficientBars
		}
		series = prepared
	}

	bt := newBacktester(e.logger, caps, opts, orderSize, params, lookback)
	return bt.run(series)
}

func validateOrderSize(size types.OrderSize) error {
	switch size.Kind {
	case types.OrderSizePercentageOfEquity:
		if size.Percentage.IsNegative() {
			return ErrInvalidOrderSize
		}
	case types.OrderSizeCustom:
		if size.Units == nil {
			return ErrInvalidOrderSize
		}
	default:
		return ErrInvalidOrderSize
	}
	return nil
}
