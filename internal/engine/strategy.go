package engine

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// EnterFunc asks the engine to open a position on the next bar.
type EnterFunc func(opts types.EnterOptions) error

// ExitFunc asks the engine to close the open position at the next bar's open.
type ExitFunc func() error

type EntryArgs struct {
	Bar        types.Candle
	Lookback   []types.Candle
	Parameters types.Parameters
}

type ExitArgs struct {
	EntryPrice decimal.Decimal
	Position   types.Position
	Bar        types.Candle
	Lookback   []types.Candle
	Parameters types.Parameters
}

// StopArgs is passed to stop-loss, trailing-stop and profit-target rules.
// The rules return a distance from the reference price, not a price.
type StopArgs struct {
	EntryPrice decimal.Decimal
	Position   types.Position
	Bar        types.Candle
	Lookback   []types.Candle
	Parameters types.Parameters
}

// Strategy is the only required capability: an entry rule.
type Strategy interface {
	EntryRule(enter EnterFunc, args EntryArgs) error
}

type ExitRuler interface {
	ExitRule(exit ExitFunc, args ExitArgs) error
}

type StopLosser interface {
	StopLoss(args StopArgs) (decimal.Decimal, error)
}

type TrailingStopLosser interface {
	TrailingStopLoss(args StopArgs) (decimal.Decimal, error)
}

type ProfitTargeter interface {
	ProfitTarget(args StopArgs) (decimal.Decimal, error)
}

type OrderSizer interface {
	OrderSize() types.OrderSize
}

// FeeModel returns a fee rate in percent charged on both entry and exit.
type FeeModel interface {
	Fees() decimal.Decimal
}

type IndicatorPreparer interface {
	PrepIndicators(params types.Parameters, bars []types.Candle) ([]types.Candle, error)
}

type Parameterized interface {
	Parameters() types.Parameters
}

type LookbackPeriodProvider interface {
	LookbackPeriod() int
}

type stopRule func(args StopArgs) (decimal.Decimal, error)

// capabilities is the resolved set of optional behaviours of one strategy.
// A nil func or an invalid value means the strategy does not provide it.
type capabilities struct {
	entry            func(enter EnterFunc, args EntryArgs) error
	exit             func(exit ExitFunc, args ExitArgs) error
	stopLoss         stopRule
	trailingStopLoss stopRule
	profitTarget     stopRule
	orderSize        *types.OrderSize
	fees             decimal.NullDecimal
	prep             func(params types.Parameters, bars []types.Candle) ([]types.Candle, error)
	parameters       types.Parameters
	lookbackPeriod   int
}

type capabilitySet interface {
	capabilities() capabilities
}

func resolveCapabilities(s Strategy) capabilities {
	if set, ok := s.(capabilitySet); ok {
		return set.capabilities()
	}

	caps := capabilities{entry: s.EntryRule}
	if r, ok := s.(ExitRuler); ok {
		caps.exit = r.ExitRule
	}
	if r, ok := s.(StopLosser); ok {
		caps.stopLoss = r.StopLoss
	}
	if r, ok := s.(TrailingStopLosser); ok {
		caps.trailingStopLoss = r.TrailingStopLoss
	}
	if r, ok := s.(ProfitTargeter); ok {
		caps.profitTarget = r.ProfitTarget
	}
	if r, ok := s.(OrderSizer); ok {
		size := r.OrderSize()
		caps.orderSize = &size
	}
	if r, ok := s.(FeeModel); ok {
		caps.fees = decimal.NewNullDecimal(r.Fees())
	}
	if r, ok := s.(IndicatorPreparer); ok {
		caps.prep = r.PrepIndicators
	}
	if r, ok := s.(Parameterized); ok {
		caps.parameters = r.Parameters()
	}
	if r, ok := s.(LookbackPeriodProvider); ok {
		caps.lookbackPeriod = r.LookbackPeriod()
	}
	return caps
}

// Rules is a strategy assembled from plain functions. Any nil field is
// treated as a capability the strategy does not have.
type Rules struct {
	Entry            func(enter EnterFunc, args EntryArgs) error
	Exit             func(exit ExitFunc, args ExitArgs) error
	StopLoss         func(args StopArgs) (decimal.Decimal, error)
	TrailingStopLoss func(args StopArgs) (decimal.Decimal, error)
	ProfitTarget     func(args StopArgs) (decimal.Decimal, error)
	Size             *types.OrderSize
	FeeRate          decimal.NullDecimal
	Prep             func(params types.Parameters, bars []types.Candle) ([]types.Candle, error)
	Params           types.Parameters
	Lookback         int
}

func (r Rules) EntryRule(enter EnterFunc, args EntryArgs) error {
	if r.Entry == nil {
		return nil
	}
	return r.Entry(enter, args)
}

func (r Rules) capabilities() capabilities {
	return capabilities{
		entry:            r.Entry,
		exit:             r.Exit,
		stopLoss:         r.StopLoss,
		trailingStopLoss: r.TrailingStopLoss,
		profitTarget:     r.ProfitTarget,
		orderSize:        r.Size,
		fees:             r.FeeRate,
		prep:             r.Prep,
		parameters:       r.Params,
		lookbackPeriod:   r.Lookback,
	}
}
