package report

import (
	"fmt"
	"io"

	"tradesim/internal/analysis"

	"github.com/shopspring/decimal"
)

const notAvailable = "n/a"

// Print writes a human readable summary of an analysis.
func Print(w io.Writer, a *analysis.Analysis) {
	fmt.Fprintln(w, "===== Trading Report =====")
	if a.TotalTrades > 0 {
		fmt.Fprintf(w, "First Trade:           %s\n", a.FirstTradeDate.Format("2006-01-02"))
		fmt.Fprintf(w, "Last Trade:            %s\n", a.LastTradeDate.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Trade Span:            %d days\n", a.TradeSpanDays)
	fmt.Fprintf(w, "Total Trades:          %d\n", a.TotalTrades)
	fmt.Fprintf(w, "Bars In Market:        %d\n", a.BarCount)

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Starting Capital:      %s\n", a.StartingCapital.StringFixed(2))
	fmt.Fprintf(w, "Final Capital:         %s\n", a.FinalCapital.StringFixed(2))
	fmt.Fprintf(w, "Net Profit:            %s\n", a.Profit.StringFixed(2))
	fmt.Fprintf(w, "Net Profit %%:          %s\n", a.ProfitPct.StringFixed(2))
	fmt.Fprintf(w, "Avg Profit/Trade:      %s\n", a.AverageProfitPerTrade.StringFixed(2))
	fmt.Fprintf(w, "CAGR:                  %s\n", nullFixed(a.CAGR, 4))
	fmt.Fprintf(w, "Avg Daily Return %%:    %s\n", nullFixed(a.ADRPct, 4))

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Winning Trades:        %d\n", a.NumWinningTrades)
	fmt.Fprintf(w, "Losing Trades:         %d\n", a.NumLosingTrades)
	fmt.Fprintf(w, "Percent Profitable:    %s\n", a.PercentProfitable.StringFixed(2))
	fmt.Fprintf(w, "Avg Win:               %s\n", a.AverageWinningTrade.StringFixed(2))
	fmt.Fprintf(w, "Avg Loss:              %s\n", a.AverageLosingTrade.StringFixed(2))
	fmt.Fprintf(w, "Expected Value:        %s\n", a.ExpectedValue.StringFixed(2))
	fmt.Fprintf(w, "Expectancy (R):        %s\n", nullFixed(a.Expectancy, 2))
	fmt.Fprintf(w, "R Std Dev:             %s\n", nullFixed(a.RMultipleStdDev, 2))
	fmt.Fprintf(w, "System Quality:        %s\n", nullFixed(a.SystemQuality, 2))

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Drawdown:          %s\n", a.MaxDrawdown.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown %%:        %s\n", a.MaxDrawdownPct.StringFixed(2))
	fmt.Fprintf(w, "Max Risk %%:            %s\n", nullFixed(a.MaxRiskPct, 2))
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", a.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", nullFixed(a.SharpeRatio, 4))
	fmt.Fprintf(w, "Calmar Ratio:          %s\n", nullFixed(a.CalmarRatio, 4))
	fmt.Fprintf(w, "Profit Factor:         %s\n", nullFixed(a.ProfitFactor, 2))
	fmt.Fprintf(w, "Return On Account:     %s\n", nullFixed(a.ReturnOnAccount, 2))

	fmt.Fprintln(w, "==========================")
}

func nullFixed(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return notAvailable
	}
	return d.Decimal.StringFixed(places)
}
