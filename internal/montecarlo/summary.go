package montecarlo

import (
	"sort"

	"tradesim/internal/analysis"
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// Summary is the distribution of final capital over resampled sequences.
type Summary struct {
	Sequences int
	Worst     decimal.Decimal
	P5        decimal.Decimal
	Median    decimal.Decimal
	P95       decimal.Decimal
	Best      decimal.Decimal
	// LossRatio is the fraction of sequences that ended below the
	// starting capital.
	LossRatio decimal.Decimal
}

// Summarize replays every sequence from startingCapital. Percentiles use the
// nearest rank.
func Summarize(startingCapital decimal.Decimal, sequences [][]types.Trade) Summary {
	if len(sequences) == 0 {
		return Summary{}
	}

	finals := make([]decimal.Decimal, 0, len(sequences))
	losses := 0
	for _, seq := range sequences {
		curve := analysis.ComputeEquityCurve(startingCapital, seq)
		final := curve[len(curve)-1]
		if final.LessThan(startingCapital) {
			losses++
		}
		finals = append(finals, final)
	}
	sort.Slice(finals, func(i, j int) bool { return finals[i].LessThan(finals[j]) })

	return Summary{
		Sequences: len(finals),
		Worst:     finals[0],
		P5:        nearestRank(finals, 5),
		Median:    nearestRank(finals, 50),
		P95:       nearestRank(finals, 95),
		Best:      finals[len(finals)-1],
		LossRatio: decimal.NewFromInt(int64(losses)).DivRound(decimal.NewFromInt(int64(len(finals))), 16),
	}
}

func nearestRank(sorted []decimal.Decimal, pct int) decimal.Decimal {
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
