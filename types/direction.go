package types

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func (d Direction) IsLong() bool {
	return d != DirectionShort
}

// ExitReason values recorded on closed trades.
const (
	ExitReasonStopLoss     = "stop-loss"
	ExitReasonProfitTarget = "profit-target"
	ExitReasonExitRule     = "exit-rule"
	ExitReasonFinalize     = "finalize"
)
