package engine

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// state is the position lifecycle: flat -> pendingEntry -> open ->
// pendingExit -> flat. Only the states below implement it.
type state interface {
	stateName() string
}

type flatState struct{}

type pendingEntryState struct {
	direction        types.Direction
	conditionalPrice decimal.NullDecimal
	reason           string
}

type openState struct {
	position *types.Position
}

type pendingExitState struct {
	position *types.Position
}

func (flatState) stateName() string         { return "flat" }
func (pendingEntryState) stateName() string { return "pending-entry" }
func (openState) stateName() string         { return "open" }
func (pendingExitState) stateName() string  { return "pending-exit" }

// livePosition returns the position owned by the state, if any.
func livePosition(s state) *types.Position {
	switch st := s.(type) {
	case openState:
		return st.position
	case pendingExitState:
		return st.position
	}
	return nil
}

// snapshot copies a position for a strategy callback so the callback cannot
// change engine state through it.
func snapshot(pos *types.Position) types.Position {
	cp := *pos
	if pos.Stop != nil {
		stop := *pos.Stop
		cp.Stop = &stop
	}
	cp.StopPriceSeries = pos.StopPriceSeries[:len(pos.StopPriceSeries):len(pos.StopPriceSeries)]
	cp.RiskSeries = pos.RiskSeries[:len(pos.RiskSeries):len(pos.RiskSeries)]
	return cp
}
