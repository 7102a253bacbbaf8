package engine

import (
	"tradesim/types"
)

// BacktestOptions configures one run of the engine.
type BacktestOptions struct {
	strategyOptions *types.StrategyOptions
	recordStopPrice bool
	recordRisk      bool
	parameters      types.Parameters
}

// NewBacktestOptions builds run options. recordStopPrice and recordRisk enable
// the per-bar stop price and risk series on every trade.
func NewBacktestOptions(strategyOptions *types.StrategyOptions, recordStopPrice, recordRisk bool) *BacktestOptions {
	return &BacktestOptions{
		strategyOptions: strategyOptions,
		recordStopPrice: recordStopPrice,
		recordRisk:      recordRisk,
	}
}

// WithParameters returns a copy of the options whose parameters override the
// strategy's own values key by key.
func (o *BacktestOptions) WithParameters(params types.Parameters) *BacktestOptions {
	cp := *o
	cp.parameters = params.Clone()
	return &cp
}

func (o *BacktestOptions) StrategyOptions() *types.StrategyOptions {
	return o.strategyOptions
}

func mergeParameters(base, overrides types.Parameters) types.Parameters {
	out := make(types.Parameters, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
