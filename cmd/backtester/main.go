package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"tradesim/internal/analysis"
	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/feed"
	"tradesim/internal/logging"
	"tradesim/internal/montecarlo"
	"tradesim/internal/optimize"
	"tradesim/internal/report"
	"tradesim/internal/repository"
	"tradesim/internal/store"
	"tradesim/strategies/donchian"
	"tradesim/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("backtest failed", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	bars, err := loadBars(ctx, cfg, logger)
	if err != nil {
		return err
	}

	strategyOpts, err := cfg.StrategyOptions()
	if err != nil {
		return err
	}
	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	strat := donchian.New(params)
	opts := engine.NewBacktestOptions(strategyOpts, cfg.Record.StopPrice, cfg.Record.Risk)

	if len(cfg.Optimize.Parameters) > 0 {
		best, err := sweep(ctx, cfg, logger, strat, bars, opts)
		if err != nil {
			return err
		}
		opts = opts.WithParameters(best)
	}

	res, err := engine.NewEngine(logger).Backtest(strat, bars, opts)
	if err != nil {
		return err
	}
	logger.Info("backtest finished",
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(res.Trades)),
		zap.Stringer("finalCapital", res.FinalCapital))

	a, err := analysis.Analyze(strategyOpts.InitialCapital, res.Trades, &analysis.SharpeOptions{
		RiskFreeRate: cfg.Report.SharpeRiskFreeRate,
		Coefficient:  cfg.Report.SharpeCoefficient,
	})
	if err != nil {
		return err
	}
	report.Print(os.Stdout, a)

	if cfg.Report.TradesCSV != "" {
		if err := report.WriteTradesCSVFile(cfg.Report.TradesCSV, res.Trades); err != nil {
			return err
		}
		logger.Info("trades written", zap.String("path", cfg.Report.TradesCSV))
	}

	if cfg.Report.SQLitePath != "" {
		if err := saveRun(ctx, cfg.Report.SQLitePath, strategyOpts.Symbol, res.Trades, logger); err != nil {
			return err
		}
	}

	if cfg.MonteCarlo.Iterations > 0 {
		sequences := montecarlo.Resample(res.Trades, cfg.MonteCarlo.Iterations, cfg.MonteCarlo.Samples, cfg.MonteCarlo.Seed)
		printMonteCarlo(montecarlo.Summarize(strategyOpts.InitialCapital, sequences))
	}
	return nil
}

func loadBars(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]types.Candle, error) {
	interval, err := types.ParseInterval(cfg.Feed.Interval)
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	df := &feed.DataFeed{
		Ticker:    cfg.Feed.Ticker,
		Interval:  interval,
		Start:     start,
		End:       end,
		CSVPath:   cfg.Feed.CSVPath,
		CachePath: cfg.Feed.CachePath,
		Logger:    logger,
	}

	var source feed.CandleSource
	if cfg.Feed.CSVPath == "" && cfg.Database.URL != "" {
		db, err := repository.NewDatabase(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		source = db
	}
	return df.GetData(ctx, source)
}

func sweep(ctx context.Context, cfg *config.Config, logger *zap.Logger, strat engine.Strategy, bars []types.Candle, opts *engine.BacktestOptions) (types.Parameters, error) {
	defs := make([]optimize.ParameterDef, 0, len(cfg.Optimize.Parameters))
	for _, p := range cfg.Optimize.Parameters {
		defs = append(defs, optimize.ParameterDef{
			Name:  p.Name,
			Start: decimal.RequireFromString(p.Start),
			End:   decimal.RequireFromString(p.End),
			Step:  decimal.RequireFromString(p.Step),
		})
	}
	res, err := optimize.Grid(ctx, strat, defs, totalProfit, bars, opts, optimize.Options{
		Direction: optimize.SearchDirection(cfg.Optimize.Direction),
		Workers:   cfg.Optimize.Workers,
		Progress:  os.Stderr,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("best parameters",
		zap.Any("parameters", res.BestParameterValues),
		zap.Float64("totalProfit", res.BestResult))
	return res.BestParameterValues, nil
}

func totalProfit(trades []types.Trade) float64 {
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.Profit)
	}
	return sum.InexactFloat64()
}

func saveRun(ctx context.Context, path, symbol string, trades []types.Trade, logger *zap.Logger) error {
	s, err := store.NewSQLiteStore(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()

	runID := uuid.New()
	if err := s.SaveRun(ctx, runID, symbol, trades); err != nil {
		return err
	}
	logger.Info("run saved", zap.String("runID", runID.String()), zap.String("path", path))
	return nil
}

func printMonteCarlo(s montecarlo.Summary) {
	fmt.Println("\n-- Monte Carlo --")
	if s.Sequences == 0 {
		fmt.Println("No trades to resample")
		return
	}
	fmt.Printf("Sequences:             %d\n", s.Sequences)
	fmt.Printf("Worst Final Capital:   %s\n", s.Worst.StringFixed(2))
	fmt.Printf("5th Percentile:        %s\n", s.P5.StringFixed(2))
	fmt.Printf("Median:                %s\n", s.Median.StringFixed(2))
	fmt.Printf("95th Percentile:       %s\n", s.P95.StringFixed(2))
	fmt.Printf("Best Final Capital:    %s\n", s.Best.StringFixed(2))
	fmt.Printf("Chance Of Loss %%:      %s\n", s.LossRatio.Mul(decimal.NewFromInt(100)).StringFixed(2))
}
