package feed

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradesim/types"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrMalformedRow = errors.New("malformed csv row")

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path, ticker string, interval types.Interval) ([]types.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, ticker, interval)
}

// LoadCSV parses timestamp,open,high,low,close[,volume] rows. The header row
// is optional. Timestamps are unix milliseconds or RFC3339. Prices keep the
// exact decimal text of the file. Bars are returned sorted by timestamp.
func LoadCSV(r io.Reader, ticker string, interval types.Interval) ([]types.Candle, error) {
	br := bufio.NewReader(r)
	// UTF-16 exports from spreadsheet tools carry a BOM
	if b, _ := br.Peek(2); len(b) == 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		tr := transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
		br = bufio.NewReader(tr)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var candles []types.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if line == 1 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if isHeader(rec) {
				continue
			}
		}
		c, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c.Ticker = ticker
		c.Interval = interval
		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func isHeader(rec []string) bool {
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	return first == "timestamp" || first == "timestamp_ms" || first == "time" || first == "date"
}

func parseRow(rec []string) (types.Candle, error) {
	if len(rec) < 5 {
		return types.Candle{}, fmt.Errorf("%w: want at least 5 fields, got %d", ErrMalformedRow, len(rec))
	}
	ts, err := parseTimestamp(rec[0])
	if err != nil {
		return types.Candle{}, err
	}
	fields := make([]decimal.Decimal, 5)
	for i := 1; i < len(rec) && i <= 5; i++ {
		v, err := decimal.NewFromString(strings.TrimSpace(rec[i]))
		if err != nil {
			return types.Candle{}, fmt.Errorf("%w: field %d %q", ErrMalformedRow, i, rec[i])
		}
		fields[i-1] = v
	}
	return types.Candle{
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		Timestamp: ts,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrMalformedRow, s)
	}
	return t.UTC(), nil
}
