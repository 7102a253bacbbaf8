package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// StrategyOptions configures a single run. It is attached to every position
// and trade produced by that run.
type StrategyOptions struct {
	InitialCapital     decimal.Decimal     `json:"initialCapital"`
	Leverage           decimal.NullDecimal `json:"leverage"`
	ContractMultiplier decimal.NullDecimal `json:"contractMultiplier"`
	Symbol             string              `json:"symbol"`
}

// LeverageOrOne returns the configured leverage, or 1 when unset.
func (o *StrategyOptions) LeverageOrOne() decimal.Decimal {
	if o == nil || !o.Leverage.Valid {
		return decimal.NewFromInt(1)
	}
	return o.Leverage.Decimal
}

// ContractMultiplierOrOne returns the configured contract multiplier, or 1
// when unset.
func (o *StrategyOptions) ContractMultiplierOrOne() decimal.Decimal {
	if o == nil || !o.ContractMultiplier.Valid {
		return decimal.NewFromInt(1)
	}
	return o.ContractMultiplier.Decimal
}

// Snapshot serialises the options for the audit trail on a trade.
func (o *StrategyOptions) Snapshot() string {
	if o == nil {
		return ""
	}
	b, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(b)
}

// Parameters are the named numeric inputs of a strategy.
type Parameters map[string]decimal.Decimal

// Get returns the named parameter or fallback when it is missing.
func (p Parameters) Get(name string, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// Clone copies the parameter set so the caller can change it freely.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type OrderSizeKind string

const (
	OrderSizePercentageOfEquity OrderSizeKind = "percentageOfEquity"
	OrderSizeCustom             OrderSizeKind = "custom"
)

// SizingArgs is passed to a custom sizing function when a position is
// entered.
type SizingArgs struct {
	WorkingCapital decimal.Decimal
	EntryPrice     decimal.Decimal
	Direction      Direction
	Options        *StrategyOptions
}

// OrderSize describes how the size of a new position is computed. Percentage
// is used by OrderSizePercentageOfEquity, Units by OrderSizeCustom.
type OrderSize struct {
	Kind       OrderSizeKind
	Percentage decimal.Decimal
	Units      func(args SizingArgs) (decimal.Decimal, error)
}

func PercentageOfEquity(percentage decimal.Decimal) OrderSize {
	return OrderSize{Kind: OrderSizePercentageOfEquity, Percentage: percentage}
}

func CustomOrderSize(units func(args SizingArgs) (decimal.Decimal, error)) OrderSize {
	return OrderSize{Kind: OrderSizeCustom, Units: units}
}
