package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"tradesim/types"

	"github.com/shopspring/decimal"
)

var tradeHeader = []string{
	"trade_id",
	"direction",
	"entry_time", // RFC3339
	"entry_price",
	"entry_reason",
	"exit_time",
	"exit_price",
	"exit_reason",
	"size",
	"leverage",
	"profit",
	"profit_pct",
	"risk_pct",
	"r_multiple",
	"holding_period",
	"stop_price",
	"profit_target",
}

// WriteTradesCSVFile writes trades to a CSV file at the given path.
func WriteTradesCSVFile(path string, trades []types.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	if err := WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTradesCSV writes one row per trade. Undefined values are left empty.
func WriteTradesCSV(w io.Writer, trades []types.Trade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range trades {
		if err := cw.Write(tradeRecord(i, t)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func tradeRecord(i int, t types.Trade) []string {
	return []string{
		strconv.Itoa(i),
		string(t.Direction),
		t.EntryTime.Format(time.RFC3339),
		t.EntryPrice.String(),
		t.EntryReason,
		t.ExitTime.Format(time.RFC3339),
		t.ExitPrice.String(),
		t.ExitReason,
		t.Size.String(),
		t.Leverage.String(),
		t.Profit.String(),
		t.ProfitPct.String(),
		nullString(t.RiskPct),
		nullString(t.RMultiple),
		strconv.Itoa(t.HoldingPeriod),
		nullString(t.StopPrice),
		nullString(t.ProfitTarget),
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
