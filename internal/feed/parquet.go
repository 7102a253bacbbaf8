package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradesim/types"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
)

// BarRecord is the on-disk schema of the bar cache. Prices are decimal
// strings so a cached run replays exactly. Indicators are not cached.
type BarRecord struct {
	AssetId   int64  `parquet:"asset_id"`
	Ticker    string `parquet:"ticker"`
	Interval  string `parquet:"interval"`
	Timestamp int64  `parquet:"timestamp"` // Unix ms
	Open      string `parquet:"open"`
	High      string `parquet:"high"`
	Low       string `parquet:"low"`
	Close     string `parquet:"close"`
	Volume    string `parquet:"volume"`
}

// WriteParquet writes bars to path, creating parent directories.
func WriteParquet(path string, bars []types.Candle) error {
	records := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		records = append(records, BarRecord{
			AssetId:   int64(b.AssetId),
			Ticker:    b.Ticker,
			Interval:  string(b.Interval),
			Timestamp: b.Timestamp.UnixMilli(),
			Open:      b.Open.String(),
			High:      b.High.String(),
			Low:       b.Low.String(),
			Close:     b.Close.String(),
			Volume:    b.Volume.String(),
		})
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write bar cache: %w", err)
	}
	return nil
}

// LoadParquet reads a bar cache written by WriteParquet.
func LoadParquet(path string) ([]types.Candle, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read bar cache: %w", err)
	}
	bars := make([]types.Candle, 0, len(records))
	for i, r := range records {
		c := types.Candle{
			AssetId:   int(r.AssetId),
			Ticker:    r.Ticker,
			Interval:  types.Interval(r.Interval),
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		}
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{{&c.Open, r.Open}, {&c.High, r.High}, {&c.Low, r.Low}, {&c.Close, r.Close}, {&c.Volume, r.Volume}} {
			v, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, fmt.Errorf("bar cache row %d: %w", i, err)
			}
			*f.dst = v
		}
		bars = append(bars, c)
	}
	return bars, nil
}
