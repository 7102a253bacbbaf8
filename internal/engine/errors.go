package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is the category of every error raised before the first bar
// is simulated.
var ErrInvalidConfig = errors.New("invalid backtest configuration")

var (
	ErrNilStrategy      = fmt.Errorf("%w: strategy with an entry rule is required", ErrInvalidConfig)
	ErrNilOptions       = fmt.Errorf("%w: backtest options with strategy options are required", ErrInvalidConfig)
	ErrInvalidCapital   = fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	ErrInvalidLeverage  = fmt.Errorf("%w: leverage and contract multiplier must be positive", ErrInvalidConfig)
	ErrInvalidOrderSize = fmt.Errorf("%w: order size is not usable", ErrInvalidConfig)
	ErrNoBars           = fmt.Errorf("%w: input series must contain at least 1 bar", ErrInvalidConfig)
	ErrInvalidLookback  = fmt.Errorf("%w: lookback period must be at least 1", ErrInvalidConfig)
	ErrInsufficientBars = fmt.Errorf("%w: fewer bars than the lookback period", ErrInvalidConfig)
)

// ErrStateViolation is returned when a strategy asks to enter while a
// position is pending or open, or to exit while no position is open.
var ErrStateViolation = errors.New("position state violation")

// ErrUnreachableState means the engine itself reached a state it never sets.
var ErrUnreachableState = errors.New("unreachable position state")
