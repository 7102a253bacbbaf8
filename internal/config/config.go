package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"tradesim/types"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration of a backtest run.
type Config struct {
	Database   Database   `yaml:"database"`
	Feed       Feed       `yaml:"feed"`
	Strategy   Strategy   `yaml:"strategy"`
	Record     Record     `yaml:"record"`
	Report     Report     `yaml:"report"`
	MonteCarlo MonteCarlo `yaml:"montecarlo"`
	Optimize   Optimize   `yaml:"optimize"`
	Logging    Logging    `yaml:"logging"`
}

type Database struct {
	URL string `yaml:"url"`
}

// Feed selects the bars. CSVPath wins over the database when both are set.
type Feed struct {
	Ticker    string `yaml:"ticker"`
	Interval  string `yaml:"interval"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	CSVPath   string `yaml:"csv_path"`
	CachePath string `yaml:"cache_path"`
}

// Strategy holds decimal values as strings so they are parsed exactly.
type Strategy struct {
	InitialCapital     string            `yaml:"initial_capital"`
	Leverage           string            `yaml:"leverage"`
	ContractMultiplier string            `yaml:"contract_multiplier"`
	Symbol             string            `yaml:"symbol"`
	Params             map[string]string `yaml:"params"`
}

type Record struct {
	StopPrice bool `yaml:"stop_price"`
	Risk      bool `yaml:"risk"`
}

type Report struct {
	TradesCSV          string  `yaml:"trades_csv"`
	SQLitePath         string  `yaml:"sqlite_path"`
	SharpeRiskFreeRate float64 `yaml:"sharpe_risk_free_rate"`
	SharpeCoefficient  float64 `yaml:"sharpe_coefficient"`
}

// MonteCarlo is disabled while Iterations is zero.
type MonteCarlo struct {
	Iterations int    `yaml:"iterations"`
	Samples    int    `yaml:"samples"`
	Seed       uint64 `yaml:"seed"`
}

// Optimize is disabled while Parameters is empty.
type Optimize struct {
	Direction  string           `yaml:"direction"`
	Workers    int              `yaml:"workers"`
	Parameters []ParameterRange `yaml:"parameters"`
}

type ParameterRange struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Step  string `yaml:"step"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML file at path, fills defaults and applies environment
// overrides. Variables from envFiles (".env" when none are given) are loaded
// first; a missing env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Feed.Interval == "" {
		cfg.Feed.Interval = string(types.Day)
	}
	if cfg.Report.SharpeRiskFreeRate == 0 {
		cfg.Report.SharpeRiskFreeRate = 0.099
	}
	if cfg.Report.SharpeCoefficient == 0 {
		cfg.Report.SharpeCoefficient = 12
	}
	if cfg.MonteCarlo.Iterations > 0 && cfg.MonteCarlo.Samples == 0 {
		cfg.MonteCarlo.Samples = 100
	}
	if cfg.Optimize.Direction == "" {
		cfg.Optimize.Direction = "max"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("TICKER"); v != "" {
		cfg.Feed.Ticker = v
	}
	if v := os.Getenv("BARS_CSV"); v != "" {
		cfg.Feed.CSVPath = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		cfg.Strategy.InitialCapital = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Report.SQLitePath = v
	}
	if v := os.Getenv("MONTECARLO_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MonteCarlo.Seed = seed
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ---------------------------------------------------------------------------
// Validation and typed accessors
// ---------------------------------------------------------------------------

func (c *Config) Validate() error {
	if c.Feed.Ticker == "" {
		return fmt.Errorf("%w: feed.ticker is required", ErrInvalidConfig)
	}
	if c.Feed.CSVPath == "" && c.Database.URL == "" {
		return fmt.Errorf("%w: either feed.csv_path or database.url is required", ErrInvalidConfig)
	}
	if _, err := types.ParseInterval(c.Feed.Interval); err != nil {
		return fmt.Errorf("%w: feed.interval: %v", ErrInvalidConfig, err)
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	if _, err := c.StrategyOptions(); err != nil {
		return err
	}
	if _, err := c.Parameters(); err != nil {
		return err
	}
	if c.MonteCarlo.Iterations < 0 || c.MonteCarlo.Samples < 0 {
		return fmt.Errorf("%w: montecarlo counts must not be negative", ErrInvalidConfig)
	}
	if c.Optimize.Direction != "max" && c.Optimize.Direction != "min" {
		return fmt.Errorf("%w: optimize.direction must be max or min, got %q", ErrInvalidConfig, c.Optimize.Direction)
	}
	for _, p := range c.Optimize.Parameters {
		for _, v := range []string{p.Start, p.End, p.Step} {
			if _, err := decimal.NewFromString(v); err != nil {
				return fmt.Errorf("%w: optimize parameter %s: %q is not a number", ErrInvalidConfig, p.Name, v)
			}
		}
	}
	return nil
}

// Window returns the feed's start and end. Dates are YYYY-MM-DD or RFC3339;
// an empty value gives the zero time.
func (c *Config) Window() (time.Time, time.Time, error) {
	start, err := parseDate(c.Feed.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: feed.start: %v", ErrInvalidConfig, err)
	}
	end, err := parseDate(c.Feed.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: feed.end: %v", ErrInvalidConfig, err)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: feed.end must be after feed.start", ErrInvalidConfig)
	}
	return start, end, nil
}

// StrategyOptions converts the strategy section into engine options.
func (c *Config) StrategyOptions() (*types.StrategyOptions, error) {
	capital, err := decimal.NewFromString(c.Strategy.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("%w: strategy.initial_capital %q", ErrInvalidConfig, c.Strategy.InitialCapital)
	}
	leverage, err := optionalDecimal(c.Strategy.Leverage)
	if err != nil {
		return nil, fmt.Errorf("%w: strategy.leverage %q", ErrInvalidConfig, c.Strategy.Leverage)
	}
	multiplier, err := optionalDecimal(c.Strategy.ContractMultiplier)
	if err != nil {
		return nil, fmt.Errorf("%w: strategy.contract_multiplier %q", ErrInvalidConfig, c.Strategy.ContractMultiplier)
	}
	symbol := c.Strategy.Symbol
	if symbol == "" {
		symbol = c.Feed.Ticker
	}
	return &types.StrategyOptions{
		InitialCapital:     capital,
		Leverage:           leverage,
		ContractMultiplier: multiplier,
		Symbol:             symbol,
	}, nil
}

// Parameters returns the strategy parameter overrides.
func (c *Config) Parameters() (types.Parameters, error) {
	out := make(types.Parameters, len(c.Strategy.Params))
	for name, raw := range c.Strategy.Params {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: strategy.params.%s %q", ErrInvalidConfig, name, raw)
		}
		out[name] = v
	}
	return out, nil
}

func optionalDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
