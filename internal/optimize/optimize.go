package optimize

import (
	"context"
	"errors"
	"fmt"
	"io"

	"tradesim/internal/engine"
	"tradesim/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoParameters     = errors.New("at least one parameter is required")
	ErrInvalidParameter = errors.New("invalid parameter range")
	ErrNilObjective     = errors.New("objective function is required")
)

type SearchDirection string

const (
	Maximize SearchDirection = "max"
	Minimize SearchDirection = "min"
)

// ParameterDef is a named parameter swept from Start to End inclusive in
// steps of Step.
type ParameterDef struct {
	Name  string
	Start decimal.Decimal
	End   decimal.Decimal
	Step  decimal.Decimal
}

// Objective scores the trades of one run. It may be called from several
// goroutines at once.
type Objective func(trades []types.Trade) float64

type Options struct {
	Direction SearchDirection
	Workers   int
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
	Logger   *zap.Logger
}

type IterationResult struct {
	Parameters types.Parameters
	Result     float64
	NumTrades  int
}

type Result struct {
	BestParameterValues types.Parameters
	BestResult          float64
	Iterations          []IterationResult
}

// Grid runs a backtest for every combination of parameter values and
// returns the best one by objective. Ties go to the combination visited
// first, with the first parameter varying slowest.
func Grid(
	ctx context.Context,
	strat engine.Strategy,
	params []ParameterDef,
	objective Objective,
	bars []types.Candle,
	backtestOpts *engine.BacktestOptions,
	opts Options,
) (*Result, error) {
	if objective == nil {
		return nil, ErrNilObjective
	}
	combos, err := combinations(params)
	if err != nil {
		return nil, err
	}
	if opts.Direction == "" {
		opts.Direction = Maximize
	}
	if opts.Direction != Maximize && opts.Direction != Minimize {
		return nil, fmt.Errorf("unknown search direction %q", opts.Direction)
	}
	if backtestOpts == nil {
		return nil, engine.ErrNilOptions
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	eng := engine.NewEngine(logger)
	progress := initProgressBar(len(combos), opts.Progress)
	iterations := make([]IterationResult, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, combo := range combos {
		i, combo := i, combo
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := eng.Backtest(strat, bars, backtestOpts.WithParameters(combo))
			if err != nil {
				return fmt.Errorf("backtest with %v: %w", combo, err)
			}
			iterations[i] = IterationResult{
				Parameters: combo,
				Result:     objective(res.Trades),
				NumTrades:  len(res.Trades),
			}
			_ = progress.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	_ = progress.Finish()

	best := 0
	for i := 1; i < len(iterations); i++ {
		if better(opts.Direction, iterations[i].Result, iterations[best].Result) {
			best = i
		}
	}
	logger.Info("optimization finished",
		zap.Int("iterations", len(iterations)),
		zap.Float64("best", iterations[best].Result))

	return &Result{
		BestParameterValues: iterations[best].Parameters,
		BestResult:          iterations[best].Result,
		Iterations:          iterations,
	}, nil
}

func better(dir SearchDirection, candidate, current float64) bool {
	if dir == Minimize {
		return candidate < current
	}
	return candidate > current
}

// combinations expands the parameter ranges into every combination of values.
func combinations(params []ParameterDef) ([]types.Parameters, error) {
	if len(params) == 0 {
		return nil, ErrNoParameters
	}

	out := []types.Parameters{{}}
	for _, p := range params {
		if p.Name == "" || !p.Step.IsPositive() || p.End.LessThan(p.Start) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParameter, p.Name)
		}
		var values []decimal.Decimal
		for v := p.Start; v.LessThanOrEqual(p.End); v = v.Add(p.Step) {
			values = append(values, v)
		}

		next := make([]types.Parameters, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				combo := base.Clone()
				combo[p.Name] = v
				next = append(next, combo)
			}
		}
		out = next
	}
	return out, nil
}
