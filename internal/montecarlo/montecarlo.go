// Package montecarlo resamples a trade list to estimate the spread of
// outcomes a strategy could have produced.
package montecarlo

import (
	"math/rand/v2"

	"tradesim/types"
)

// Resample draws iterations sequences of samples trades each, with
// replacement, from trades. The same seed always produces the same
// sequences. An empty population produces no sequences.
func Resample(trades []types.Trade, iterations, samples int, seed uint64) [][]types.Trade {
	if len(trades) == 0 || iterations <= 0 || samples <= 0 {
		return [][]types.Trade{}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([][]types.Trade, iterations)
	for i := range out {
		seq := make([]types.Trade, samples)
		for j := range seq {
			seq[j] = trades[rng.IntN(len(trades))]
		}
		out[i] = seq
	}
	return out
}
