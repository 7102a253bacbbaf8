package donchian

import (
	"errors"
	"fmt"

	"tradesim/internal/engine"
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// Parameter names.
const (
	ParamEntryPeriod     = "entryPeriod"
	ParamExitPeriod      = "exitPeriod"
	ParamATRPeriod       = "atrPeriod"
	ParamATRMultiplier   = "atrMultiplier"
	ParamPositionPercent = "positionPercent"
	ParamLongOnly        = "longOnly"
)

var (
	ErrInvalidPeriod    = errors.New("period must be a positive whole number")
	ErrMissingIndicator = errors.New("indicator missing on bar")
)

// DefaultParameters trade a 20 bar breakout with a 10 bar exit channel and a
// 2 ATR(20) trailing stop, long only, with 95% of capital per trade.
func DefaultParameters() types.Parameters {
	return types.Parameters{
		ParamEntryPeriod:     decimal.NewFromInt(20),
		ParamExitPeriod:      decimal.NewFromInt(10),
		ParamATRPeriod:       decimal.NewFromInt(20),
		ParamATRMultiplier:   decimal.NewFromInt(2),
		ParamPositionPercent: decimal.RequireFromString("0.95"),
		ParamLongOnly:        decimal.NewFromInt(1),
	}
}

// Strategy is a Donchian channel breakout. It enters on a break of the
// highest high (or, when shorts are allowed, the lowest low) of the
// preceding entryPeriod bars and leaves on a break of the opposite exitPeriod
// channel or an ATR trailing stop.
type Strategy struct {
	params types.Parameters
}

var (
	_ engine.Strategy           = (*Strategy)(nil)
	_ engine.ExitRuler          = (*Strategy)(nil)
	_ engine.TrailingStopLosser = (*Strategy)(nil)
	_ engine.OrderSizer         = (*Strategy)(nil)
	_ engine.FeeModel           = (*Strategy)(nil)
	_ engine.IndicatorPreparer  = (*Strategy)(nil)
	_ engine.Parameterized      = (*Strategy)(nil)
)

// New returns a strategy whose defaults are replaced by overrides.
func New(overrides types.Parameters) *Strategy {
	params := DefaultParameters()
	for k, v := range overrides {
		params[k] = v
	}
	return &Strategy{params: params}
}

func (s *Strategy) Parameters() types.Parameters {
	return s.params.Clone()
}

func (s *Strategy) Fees() decimal.Decimal {
	return FeeRatePct
}

// OrderSize is fixed at construction; run-time parameter overrides of
// positionPercent do not reach it.
func (s *Strategy) OrderSize() types.OrderSize {
	return types.CustomOrderSize(cashSizer(s.params[ParamPositionPercent]))
}

func (s *Strategy) PrepIndicators(params types.Parameters, bars []types.Candle) ([]types.Candle, error) {
	entryPeriod, err := period(params, ParamEntryPeriod)
	if err != nil {
		return nil, err
	}
	exitPeriod, err := period(params, ParamExitPeriod)
	if err != nil {
		return nil, err
	}
	atrPeriod, err := period(params, ParamATRPeriod)
	if err != nil {
		return nil, err
	}
	return withIndicators(bars, entryPeriod, exitPeriod, atrPeriod), nil
}

func (s *Strategy) EntryRule(enter engine.EnterFunc, args engine.EntryArgs) error {
	bar := args.Bar
	upper, okUpper := bar.Indicator(IndicatorUpper)
	lower, okLower := bar.Indicator(IndicatorLower)
	_, okATR := bar.Indicator(IndicatorATR)
	if !okUpper || !okLower || !okATR {
		return nil
	}

	// Buy a break of the highest high of the preceding bars.
	if bar.High.GreaterThan(upper) {
		return enter(types.NewEnterOptions(types.DirectionLong, "Break of highest high of preceding bars"))
	}
	if longOnly(args.Parameters) {
		return nil
	}
	if bar.Low.LessThan(lower) {
		return enter(types.NewEnterOptions(types.DirectionShort, "Break of lowest low of preceding bars"))
	}
	return nil
}

func (s *Strategy) ExitRule(exit engine.ExitFunc, args engine.ExitArgs) error {
	bar := args.Bar
	if args.Position.Direction.IsLong() {
		if lower, ok := bar.Indicator(IndicatorExitLower); ok && bar.Low.LessThan(lower) {
			return exit()
		}
		return nil
	}
	if upper, ok := bar.Indicator(IndicatorExitUpper); ok && bar.High.GreaterThan(upper) {
		return exit()
	}
	return nil
}

// TrailingStopLoss keeps the stop atrMultiplier ATRs away from the close.
func (s *Strategy) TrailingStopLoss(args engine.StopArgs) (decimal.Decimal, error) {
	atr, ok := args.Bar.Indicator(IndicatorATR)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s at %s", ErrMissingIndicator, IndicatorATR, args.Bar.Timestamp)
	}
	multiplier := args.Parameters.Get(ParamATRMultiplier, decimal.NewFromInt(2))
	return atr.Mul(multiplier), nil
}

func period(params types.Parameters, name string) (int, error) {
	v, ok := params[name]
	if !ok || !v.IsInteger() || !v.IsPositive() {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidPeriod, name, v)
	}
	return int(v.IntPart()), nil
}

func longOnly(params types.Parameters) bool {
	return !params.Get(ParamLongOnly, decimal.NewFromInt(1)).IsZero()
}
