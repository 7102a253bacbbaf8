package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradesim/types"

	"go.uber.org/zap"
)

var ErrNoSource = errors.New("no bar source configured")

// CandleSource is the database side of a feed. *repository.Database
// satisfies it.
type CandleSource interface {
	GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error)
	GetCandles(ctx context.Context, assetId int, ticker string, interval types.Interval, start, end time.Time) ([]types.Candle, error)
}

// DataFeed describes the bars of one instrument. Bars come from the parquet
// cache when it exists, then from CSVPath, then from the database. A zero
// Start or End leaves that side of a CSV file unbounded.
//
// The cache file is CachePath with the ticker, interval and window folded
// into its name, so changing any of them never reads another feed's bars.
type DataFeed struct {
	Ticker    string
	Interval  types.Interval
	Start     time.Time
	End       time.Time
	CSVPath   string
	CachePath string
	Logger    *zap.Logger
}

func (df *DataFeed) GetData(ctx context.Context, db CandleSource) ([]types.Candle, error) {
	logger := df.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheFile := df.CacheFile()
	if cacheFile != "" {
		if _, err := os.Stat(cacheFile); err == nil {
			bars, err := LoadParquet(cacheFile)
			if err != nil {
				return nil, err
			}
			if df.matches(bars) {
				logger.Debug("bars loaded from cache", zap.String("path", cacheFile), zap.Int("bars", len(bars)))
				return bars, nil
			}
			logger.Warn("stale bar cache ignored", zap.String("path", cacheFile))
		}
	}

	bars, err := df.load(ctx, db)
	if err != nil {
		return nil, err
	}
	logger.Info("bars loaded", zap.String("ticker", df.Ticker), zap.Int("bars", len(bars)))

	if cacheFile != "" {
		if err := WriteParquet(cacheFile, bars); err != nil {
			return nil, err
		}
	}
	return bars, nil
}

// CacheFile is the parquet file this feed reads and writes, or "" when
// caching is off. "cache/bars.parquet" for AAPL daily bars in 2024 becomes
// "cache/bars_AAPL_D_20240101T000000Z_20250101T000000Z.parquet".
func (df *DataFeed) CacheFile() string {
	if df.CachePath == "" {
		return ""
	}
	ext := filepath.Ext(df.CachePath)
	if ext == "" {
		ext = ".parquet"
	}
	base := strings.TrimSuffix(df.CachePath, filepath.Ext(df.CachePath))
	key := strings.Join([]string{df.Ticker, string(df.Interval), cacheBound(df.Start), cacheBound(df.End)}, "_")
	return base + "_" + sanitize(key) + ext
}

func cacheBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.UTC().Format("20060102T150405Z")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		}
		return r
	}, s)
}

// matches reports whether cached bars belong to this feed.
func (df *DataFeed) matches(bars []types.Candle) bool {
	for _, b := range bars {
		if b.Ticker != df.Ticker || b.Interval != df.Interval {
			return false
		}
		if !df.Start.IsZero() && b.Timestamp.Before(df.Start) {
			return false
		}
		if !df.End.IsZero() && !b.Timestamp.Before(df.End) {
			return false
		}
	}
	return true
}

func (df *DataFeed) load(ctx context.Context, db CandleSource) ([]types.Candle, error) {
	if df.CSVPath != "" {
		bars, err := LoadCSVFile(df.CSVPath, df.Ticker, df.Interval)
		if err != nil {
			return nil, err
		}
		return df.window(bars), nil
	}
	if db == nil {
		return nil, ErrNoSource
	}
	asset, err := db.GetAssetByTicker(ctx, df.Ticker)
	if err != nil {
		return nil, err
	}
	candles, err := db.GetCandles(ctx, asset.Id, asset.Ticker, df.Interval, df.Start, df.End)
	if err != nil {
		return nil, fmt.Errorf("candles for %s: %w", df.Ticker, err)
	}
	return candles, nil
}

// window keeps bars in [Start, End).
func (df *DataFeed) window(bars []types.Candle) []types.Candle {
	out := bars[:0:0]
	for _, b := range bars {
		if !df.Start.IsZero() && b.Timestamp.Before(df.Start) {
			continue
		}
		if !df.End.IsZero() && !b.Timestamp.Before(df.End) {
			continue
		}
		out = append(out, b)
	}
	return out
}
