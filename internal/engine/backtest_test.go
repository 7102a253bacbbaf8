package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"tradesim/types"

	"github.com/shopspring/decimal"
)

var testStart = time.Date(2018, 10, 20, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(i int) time.Time {
	return testStart.AddDate(0, 0, i)
}

// ohlc builds a bar on day i.
func ohlc(i int, open, high, low, close string) types.Candle {
	return types.Candle{
		Ticker:    "TEST",
		Timestamp: day(i),
		Open:      d(open),
		High:      d(high),
		Low:       d(low),
		Close:     d(close),
		Volume:    decimal.NewFromInt(1),
		Interval:  types.Day,
	}
}

// closes builds bars whose open, high and low all equal the close.
func closes(prices ...string) []types.Candle {
	out := make([]types.Candle, len(prices))
	for i, p := range prices {
		out[i] = ohlc(i, p, p, p, p)
	}
	return out
}

func plainOptions() *BacktestOptions {
	return NewBacktestOptions(&types.StrategyOptions{InitialCapital: d("1000"), Symbol: "TEST"}, false, false)
}

func leveragedOptions() *BacktestOptions {
	return NewBacktestOptions(&types.StrategyOptions{
		InitialCapital:     d("1000"),
		Leverage:           decimal.NewNullDecimal(d("7")),
		ContractMultiplier: decimal.NewNullDecimal(d("0.001")),
		Symbol:             "XBTUSDTM",
	}, false, false)
}

func alwaysEnter(dir types.Direction) func(EnterFunc, EntryArgs) error {
	return func(enter EnterFunc, _ EntryArgs) error {
		return enter(types.NewEnterOptions(dir, "test"))
	}
}

func alwaysExit(exit ExitFunc, _ ExitArgs) error {
	return exit()
}

func pctOfEntry(pct string) func(StopArgs) (decimal.Decimal, error) {
	return func(args StopArgs) (decimal.Decimal, error) {
		return args.EntryPrice.Mul(d(pct)).Div(decimal.NewFromInt(100)), nil
	}
}

func mustBacktest(t *testing.T, strat Strategy, bars []types.Candle, opts *BacktestOptions) *Result {
	t.Helper()
	res, err := Backtest(strat, bars, opts)
	if err != nil {
		t.Fatalf("Backtest() error = %v", err)
	}
	return res
}

func singleTrade(t *testing.T, res *Result) types.Trade {
	t.Helper()
	if len(res.Trades) != 1 {
		t.Fatalf("Backtest() got %d trades, want 1", len(res.Trades))
	}
	return res.Trades[0]
}

func TestBacktest_NoEntryNoTrades(t *testing.T) {
	strat := Rules{Entry: func(EnterFunc, EntryArgs) error { return nil }}
	res := mustBacktest(t, strat, closes("1", "2", "3"), plainOptions())

	if len(res.Trades) != 0 {
		t.Errorf("Backtest() got %d trades, want 0", len(res.Trades))
	}
	if !res.FinalCapital.Equal(d("1000")) {
		t.Errorf("FinalCapital got = %v, want 1000", res.FinalCapital)
	}
}

func TestBacktest_EntersAtNextOpenAndFinalizes(t *testing.T) {
	bars := []types.Candle{
		ohlc(0, "1", "1", "1", "1"),
		ohlc(1, "3", "3", "2", "2"),
		ohlc(2, "4", "7", "4", "6"),
	}
	strat := Rules{Entry: alwaysEnter(types.DirectionLong)}
	trade := singleTrade(t, mustBacktest(t, strat, bars, plainOptions()))

	if !trade.EntryTime.Equal(day(1)) {
		t.Errorf("EntryTime got = %v, want %v", trade.EntryTime, day(1))
	}
	if !trade.EntryPrice.Equal(d("3")) {
		t.Errorf("EntryPrice got = %v, want 3", trade.EntryPrice)
	}
	if !trade.ExitTime.Equal(day(2)) {
		t.Errorf("ExitTime got = %v, want %v", trade.ExitTime, day(2))
	}
	if !trade.ExitPrice.Equal(d("6")) {
		t.Errorf("ExitPrice got = %v, want 6", trade.ExitPrice)
	}
	if trade.ExitReason != types.ExitReasonFinalize {
		t.Errorf("ExitReason got = %v, want %v", trade.ExitReason, types.ExitReasonFinalize)
	}
	if trade.EntryReason != "test" {
		t.Errorf("EntryReason got = %v, want test", trade.EntryReason)
	}
	if trade.RiskPct.Valid || trade.RMultiple.Valid {
		t.Errorf("RiskPct/RMultiple got = %v/%v, want undefined", trade.RiskPct, trade.RMultiple)
	}
}

func TestBacktest_ConditionalEntry(t *testing.T) {
	bars := []types.Candle{
		ohlc(0, "1", "1", "1", "1"),
		ohlc(1, "2", "2", "2", "2"),
		ohlc(2, "3", "4", "3", "4"),
		ohlc(3, "5", "6", "5", "6"),
		ohlc(4, "7", "7", "7", "7"),
	}

	tests := []struct {
		name      string
		price     string
		wantCount int
		wantTime  time.Time
		wantPrice string
	}{
		{name: "triggered when high reaches price", price: "6", wantCount: 1, wantTime: day(3), wantPrice: "5"},
		{name: "triggered on the first bar reaching price", price: "3.5", wantCount: 1, wantTime: day(2), wantPrice: "3"},
		{name: "never triggered", price: "10", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := Rules{Entry: func(enter EnterFunc, _ EntryArgs) error {
				return enter(types.NewEnterOptions(types.DirectionLong, "").AtPrice(d(tt.price)))
			}}
			res := mustBacktest(t, strat, bars, plainOptions())
			if len(res.Trades) != tt.wantCount {
				t.Fatalf("Backtest() got %d trades, want %d", len(res.Trades), tt.wantCount)
			}
			if tt.wantCount == 0 {
				if !res.FinalCapital.Equal(d("1000")) {
					t.Errorf("FinalCapital got = %v, want 1000", res.FinalCapital)
				}
				return
			}
			trade := res.Trades[0]
			if !trade.EntryTime.Equal(tt.wantTime) {
				t.Errorf("EntryTime got = %v, want %v", trade.EntryTime, tt.wantTime)
			}
			if !trade.EntryPrice.Equal(d(tt.wantPrice)) {
				t.Errorf("EntryPrice got = %v, want %v", trade.EntryPrice, tt.wantPrice)
			}
		})
	}
}

func TestBacktest_ConditionalShortEntryUsesLow(t *testing.T) {
	bars := []types.Candle{
		ohlc(0, "10", "10", "10", "10"),
		ohlc(1, "10", "11", "9", "10"),
		ohlc(2, "9", "9", "7", "8"),
		ohlc(3, "8", "8", "8", "8"),
	}
	strat := Rules{Entry: func(enter EnterFunc, _ EntryArgs) error {
		return enter(types.NewEnterOptions(types.DirectionShort, "").AtPrice(d("8")))
	}}
	trade := singleTrade(t, mustBacktest(t, strat, bars, plainOptions()))
	if !trade.EntryTime.Equal(day(2)) {
		t.Errorf("EntryTime got = %v, want %v", trade.EntryTime, day(2))
	}
	if trade.Direction != types.DirectionShort {
		t.Errorf("Direction got = %v, want SHORT", trade.Direction)
	}
}

func TestBacktest_ExitRuleExitsAtNextOpen(t *testing.T) {
	bars := []types.Candle{
		ohlc(0, "1", "1", "1", "1"),
		ohlc(1, "2", "2", "2", "2"),
		ohlc(2, "4", "4", "4", "4"),
		ohlc(3, "7", "8", "6", "8"),
		ohlc(4, "9", "9", "9", "9"),
	}
	strat := Rules{Entry: alwaysEnter(types.DirectionLong), Exit: alwaysExit}
	trade := singleTrade(t, mustBacktest(t, strat, bars, plainOptions()))

	if !trade.ExitTime.Equal(day(3)) {
		t.Errorf("ExitTime got = %v, want %v", trade.ExitTime, day(3))
	}
	if !trade.ExitPrice.Equal(d("7")) {
		t.Errorf("ExitPrice got = %v, want 7", trade.ExitPrice)
	}
	if trade.ExitReason != types.ExitReasonExitRule {
		t.Errorf("ExitReason got = %v, want %v", trade.ExitReason, types.ExitReasonExitRule)
	}
	if !trade.Profit.Equal(d("5")) {
		t.Errorf("Profit got = %v, want 5", trade.Profit)
	}
	if !trade.ProfitPct.Equal(d("250")) {
		t.Errorf("ProfitPct got = %v, want 250", trade.ProfitPct)
	}
	if trade.HoldingPeriod != 1 {
		t.Errorf("HoldingPeriod got = %v, want 1", trade.HoldingPeriod)
	}
}

func TestBacktest_ExitAfterHoldingPeriod(t *testing.T) {
	strat := Rules{
		Entry: alwaysEnter(types.DirectionLong),
		Exit: func(exit ExitFunc, args ExitArgs) error {
			if args.Position.HoldingPeriod >= 3 {
				return exit()
			}
			return nil
		},
	}
	trade := singleTrade(t, mustBacktest(t, strat, closes("1", "2", "3", "4", "5", "6", "7"), plainOptions()))

	if !trade.ExitTime.Equal(day(5)) {
		t.Errorf("ExitTime got = %v, want %v", trade.ExitTime, day(5))
	}
	if !trade.ExitPrice.Equal(d("6")) {
		t.Errorf("ExitPrice got = %v, want 6", trade.ExitPrice)
	}
	if trade.HoldingPeriod != 3 {
		t.Errorf("HoldingPeriod got = %v, want 3", trade.HoldingPeriod)
	}
}

func TestBacktest_IntrabarExits(t *testing.T) {
	tests := []struct {
		name       string
		dir        types.Direction
		stopPct    string
		targetPct  string
		bars       []types.Candle
		wantReason string
		wantExit   string
		wantProfit string
		wantR      string
	}{
		{
			name:    "long stop loss exits at the stop",
			dir:     types.DirectionLong,
			stopPct: "20",
			bars: []types.Candle{
				ohlc(0, "100", "100", "100", "100"),
				ohlc(1, "100", "100", "100", "100"),
				ohlc(2, "90", "90", "90", "90"),
				ohlc(3, "80", "80", "80", "80"),
				ohlc(4, "120", "120", "120", "120"),
			},
			wantReason: types.ExitReasonStopLoss,
			wantExit:   "80",
			wantProfit: "-20",
			wantR:      "-1",
		},
		{
			name:      "long profit target exits at the target",
			dir:       types.DirectionLong,
			stopPct:   "20",
			targetPct: "20",
			bars: []types.Candle{
				ohlc(0, "100", "100", "100", "100"),
				ohlc(1, "100", "100", "100", "100"),
				ohlc(2, "110", "130", "105", "125"),
				ohlc(3, "125", "125", "125", "125"),
			},
			wantReason: types.ExitReasonProfitTarget,
			wantExit:   "120",
			wantProfit: "20",
			wantR:      "1",
		},
		{
			name:      "stop loss wins when both are hit on one bar",
			dir:       types.DirectionLong,
			stopPct:   "20",
			targetPct: "10",
			bars: []types.Candle{
				ohlc(0, "100", "100", "100", "100"),
				ohlc(1, "100", "100", "100", "100"),
				ohlc(2, "100", "115", "75", "100"),
			},
			wantReason: types.ExitReasonStopLoss,
			wantExit:   "80",
			wantProfit: "-20",
			wantR:      "-1",
		},
		{
			name:    "short stop loss exits at the stop",
			dir:     types.DirectionShort,
			stopPct: "20",
			bars: []types.Candle{
				ohlc(0, "100", "100", "100", "100"),
				ohlc(1, "100", "100", "100", "100"),
				ohlc(2, "110", "110", "110", "110"),
				ohlc(3, "115", "125", "115", "120"),
			},
			wantReason: types.ExitReasonStopLoss,
			wantExit:   "120",
			wantProfit: "-20",
			wantR:      "-1",
		},
		{
			name:      "short profit target exits at the target",
			dir:       types.DirectionShort,
			stopPct:   "20",
			targetPct: "10",
			bars: []types.Candle{
				ohlc(0, "100", "100", "100", "100"),
				ohlc(1, "100", "100", "100", "100"),
				ohlc(2, "95", "96", "85", "88"),
			},
			wantReason: types.ExitReasonProfitTarget,
			wantExit:   "90",
			wantProfit: "10",
			wantR:      "0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := Rules{
				Entry:    alwaysEnter(tt.dir),
				StopLoss: pctOfEntry(tt.stopPct),
			}
			if tt.targetPct != "" {
				strat.ProfitTarget = pctOfEntry(tt.targetPct)
			}
			trade := singleTrade(t, mustBacktest(t, strat, tt.bars, plainOptions()))

			if trade.ExitReason != tt.wantReason {
				t.Errorf("ExitReason got = %v, want %v", trade.ExitReason, tt.wantReason)
			}
			if !trade.ExitPrice.Equal(d(tt.wantExit)) {
				t.Errorf("ExitPrice got = %v, want %v", trade.ExitPrice, tt.wantExit)
			}
			if !trade.Profit.Equal(d(tt.wantProfit)) {
				t.Errorf("Profit got = %v, want %v", trade.Profit, tt.wantProfit)
			}
			if !trade.RMultiple.Valid || !trade.RMultiple.Decimal.Equal(d(tt.wantR)) {
				t.Errorf("RMultiple got = %v, want %v", trade.RMultiple, tt.wantR)
			}
			if !trade.RiskPct.Valid || !trade.RiskPct.Decimal.Equal(d("20")) {
				t.Errorf("RiskPct got = %v, want 20", trade.RiskPct)
			}
		})
	}
}

func TestBacktest_TrailingStopSeries(t *testing.T) {
	strat := Rules{
		Entry: alwaysEnter(types.DirectionLong),
		TrailingStopLoss: func(args StopArgs) (decimal.Decimal, error) {
			return args.Bar.Close.Mul(d("0.5")), nil
		},
	}
	opts := NewBacktestOptions(&types.StrategyOptions{InitialCapital: d("1000")}, true, true)
	bars := closes("100", "200", "300", "200", "500", "400", "800")
	trade := singleTrade(t, mustBacktest(t, strat, bars, opts))

	want := []types.TimestampedValue{
		{Time: day(1), Value: d("100")},
		{Time: day(2), Value: d("150")},
		{Time: day(3), Value: d("150")},
		{Time: day(4), Value: d("250")},
		{Time: day(5), Value: d("250")},
		{Time: day(6), Value: d("400")},
	}
	if len(trade.StopPriceSeries) != len(want) {
		t.Fatalf("StopPriceSeries got %d points, want %d", len(trade.StopPriceSeries), len(want))
	}
	for i, w := range want {
		got := trade.StopPriceSeries[i]
		if !got.Time.Equal(w.Time) || !got.Value.Equal(w.Value) {
			t.Errorf("StopPriceSeries[%d] got = %v@%v, want %v@%v", i, got.Value, got.Time, w.Value, w.Time)
		}
		if i > 0 && got.Value.LessThan(trade.StopPriceSeries[i-1].Value) {
			t.Errorf("StopPriceSeries[%d] loosened from %v to %v", i, trade.StopPriceSeries[i-1].Value, got.Value)
		}
	}

	if len(trade.RiskSeries) != 6 {
		t.Fatalf("RiskSeries got %d points, want 6", len(trade.RiskSeries))
	}
	// entry: (200-100)/200, day 2: (300-150)/300, day 3: (200-150)/200
	for i, w := range []string{"50", "50", "25"} {
		if !trade.RiskSeries[i].Value.Equal(d(w)) {
			t.Errorf("RiskSeries[%d] got = %v, want %v", i, trade.RiskSeries[i].Value, w)
		}
	}
	if !trade.StopPrice.Valid || !trade.StopPrice.Decimal.Equal(d("100")) {
		t.Errorf("StopPrice got = %v, want initial stop 100", trade.StopPrice)
	}
}

func TestBacktest_ShortTrailingStopOnlyMovesDown(t *testing.T) {
	strat := Rules{
		Entry: alwaysEnter(types.DirectionShort),
		TrailingStopLoss: func(args StopArgs) (decimal.Decimal, error) {
			return d("10"), nil
		},
	}
	opts := NewBacktestOptions(&types.StrategyOptions{InitialCapital: d("1000")}, true, false)
	trade := singleTrade(t, mustBacktest(t, strat, closes("100", "100", "90", "95", "80", "85"), opts))

	want := []string{"110", "100", "100", "90", "90"}
	if len(trade.StopPriceSeries) != len(want) {
		t.Fatalf("StopPriceSeries got %d points, want %d", len(trade.StopPriceSeries), len(want))
	}
	for i, w := range want {
		if !trade.StopPriceSeries[i].Value.Equal(d(w)) {
			t.Errorf("StopPriceSeries[%d] got = %v, want %v", i, trade.StopPriceSeries[i].Value, w)
		}
	}
	if trade.ExitReason != types.ExitReasonFinalize {
		t.Errorf("ExitReason got = %v, want %v", trade.ExitReason, types.ExitReasonFinalize)
	}
}

func TestBacktest_InitialStopIsTighterOfStopAndTrailing(t *testing.T) {
	strat := Rules{
		Entry:            alwaysEnter(types.DirectionLong),
		StopLoss:         pctOfEntry("20"),
		TrailingStopLoss: pctOfEntry("10"),
	}
	trade := singleTrade(t, mustBacktest(t, strat, closes("100", "100", "100"), plainOptions()))
	if !trade.StopPrice.Decimal.Equal(d("90")) {
		t.Errorf("StopPrice got = %v, want 90", trade.StopPrice.Decimal)
	}
	if !trade.RiskPct.Decimal.Equal(d("10")) {
		t.Errorf("RiskPct got = %v, want 10", trade.RiskPct.Decimal)
	}
}

func TestBacktest_LeveragedProfit(t *testing.T) {
	strat := Rules{Entry: alwaysEnter(types.DirectionLong)}
	res := mustBacktest(t, strat, closes("1", "2", "3"), leveragedOptions())
	trade := singleTrade(t, res)

	// floor(1000 * 90% / (2 * 0.001) * 7)
	if !trade.Size.Equal(d("3150000")) {
		t.Errorf("Size got = %v, want 3150000", trade.Size)
	}
	if !trade.Profit.Equal(d("3150")) {
		t.Errorf("Profit got = %v, want 3150", trade.Profit)
	}
	if !trade.ProfitPct.Equal(d("350")) {
		t.Errorf("ProfitPct got = %v, want 350", trade.ProfitPct)
	}
	if !trade.Leverage.Equal(d("7")) {
		t.Errorf("Leverage got = %v, want 7", trade.Leverage)
	}
	if !res.FinalCapital.Equal(d("4150")) {
		t.Errorf("FinalCapital got = %v, want 4150", res.FinalCapital)
	}
	want := `{"initialCapital":"1000","leverage":"7","contractMultiplier":"0.001","symbol":"XBTUSDTM"}`
	if trade.Strategy != want {
		t.Errorf("Strategy got = %v, want %v", trade.Strategy, want)
	}
}

func TestBacktest_ShortLeveragedProfit(t *testing.T) {
	strat := Rules{Entry: alwaysEnter(types.DirectionShort)}
	trade := singleTrade(t, mustBacktest(t, strat, closes("3", "2", "1"), leveragedOptions()))

	if !trade.Profit.Equal(d("3150")) {
		t.Errorf("Profit got = %v, want 3150", trade.Profit)
	}
	if !trade.ProfitPct.Equal(d("350")) {
		t.Errorf("ProfitPct got = %v, want 350", trade.ProfitPct)
	}
}

func TestBacktest_Fees(t *testing.T) {
	tests := []struct {
		name       string
		fee        decimal.NullDecimal
		wantProfit string
	}{
		{name: "no fee model", wantProfit: "10"},
		{name: "zero fee", fee: decimal.NewNullDecimal(decimal.Zero), wantProfit: "10"},
		// size 9, 9 * 0.1% * 2
		{name: "round trip fee", fee: decimal.NewNullDecimal(d("0.1")), wantProfit: "9.982"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := Rules{Entry: alwaysEnter(types.DirectionLong), FeeRate: tt.fee}
			trade := singleTrade(t, mustBacktest(t, strat, closes("100", "100", "110"), plainOptions()))
			if !trade.Size.Equal(d("9")) {
				t.Errorf("Size got = %v, want 9", trade.Size)
			}
			if !trade.Profit.Equal(d(tt.wantProfit)) {
				t.Errorf("Profit got = %v, want %v", trade.Profit, tt.wantProfit)
			}
		})
	}
}

func TestBacktest_OrderSize(t *testing.T) {
	tests := []struct {
		name     string
		size     types.OrderSize
		wantSize string
	}{
		{name: "percentage of equity", size: types.PercentageOfEquity(d("50")), wantSize: "16"},
		{name: "custom units", size: types.CustomOrderSize(func(args types.SizingArgs) (decimal.Decimal, error) {
			return args.WorkingCapital.Div(args.EntryPrice).Floor(), nil
		}), wantSize: "33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.size
			strat := Rules{Entry: alwaysEnter(types.DirectionLong), Size: &size}
			trade := singleTrade(t, mustBacktest(t, strat, closes("30", "30", "30"), plainOptions()))
			if !trade.Size.Equal(d(tt.wantSize)) {
				t.Errorf("Size got = %v, want %v", trade.Size, tt.wantSize)
			}
		})
	}
}

func TestBacktest_WorkingCapitalIsInitialPlusProfits(t *testing.T) {
	strat := Rules{Entry: alwaysEnter(types.DirectionLong), Exit: alwaysExit}
	bars := []types.Candle{
		ohlc(0, "10", "10", "10", "10"),
		ohlc(1, "10", "10", "10", "10"),
		ohlc(2, "12", "12", "12", "12"),
		ohlc(3, "13", "13", "13", "13"),
		ohlc(4, "13", "13", "13", "13"),
		ohlc(5, "13", "13", "13", "13"),
		ohlc(6, "11", "11", "11", "11"),
		ohlc(7, "9", "9", "9", "9"),
		ohlc(8, "9", "9", "9", "9"),
		ohlc(9, "10", "10", "10", "10"),
	}
	res := mustBacktest(t, strat, bars, plainOptions())

	if len(res.Trades) != 3 {
		t.Fatalf("Backtest() got %d trades, want 3", len(res.Trades))
	}
	sum := d("1000")
	for _, trade := range res.Trades {
		sum = sum.Add(trade.Profit)
	}
	if !res.FinalCapital.Equal(sum) {
		t.Errorf("FinalCapital got = %v, want %v", res.FinalCapital, sum)
	}
	if !res.FinalCapital.Equal(d("999")) {
		t.Errorf("FinalCapital got = %v, want 999", res.FinalCapital)
	}
	// floor(1003 * 90% / 13)
	if !res.Trades[1].Size.Equal(d("69")) {
		t.Errorf("second trade size got = %v, want 69", res.Trades[1].Size)
	}
}

func TestBacktest_LookbackWindow(t *testing.T) {
	var entryCalls, exitCalls int
	strat := Rules{
		Lookback: 2,
		Entry: func(enter EnterFunc, args EntryArgs) error {
			entryCalls++
			if len(args.Lookback) != 2 {
				t.Errorf("entry lookback got %d bars, want 2", len(args.Lookback))
			}
			if !args.Lookback[1].Timestamp.Equal(args.Bar.Timestamp) {
				t.Errorf("newest lookback bar got = %v, want current bar %v", args.Lookback[1].Timestamp, args.Bar.Timestamp)
			}
			if entryCalls == 2 {
				return enter(types.NewEnterOptions(types.DirectionLong, ""))
			}
			return nil
		},
		Exit: func(exit ExitFunc, args ExitArgs) error {
			exitCalls++
			if len(args.Lookback) != 2 {
				t.Errorf("exit lookback got %d bars, want 2", len(args.Lookback))
			}
			return nil
		},
	}
	mustBacktest(t, strat, closes("1", "2", "3", "4", "5", "6"), plainOptions())

	// Bar 0 only fills the window; entries on bars 1 and 2; open on bar 3.
	if entryCalls != 2 {
		t.Errorf("entry rule called %d times, want 2", entryCalls)
	}
	if exitCalls != 2 {
		t.Errorf("exit rule called %d times, want 2", exitCalls)
	}
}

func TestBacktest_PrepIndicatorsAndParameters(t *testing.T) {
	var seen decimal.Decimal
	strat := Rules{
		Params: types.Parameters{"threshold": d("4"), "unused": d("1")},
		Prep: func(params types.Parameters, bars []types.Candle) ([]types.Candle, error) {
			out := make([]types.Candle, len(bars))
			for i, bar := range bars {
				signal := decimal.Zero
				if bar.Close.GreaterThanOrEqual(params["threshold"]) {
					signal = decimal.NewFromInt(1)
				}
				out[i] = bar.WithIndicator("goLong", signal)
			}
			return out, nil
		},
		Entry: func(enter EnterFunc, args EntryArgs) error {
			seen = args.Parameters["threshold"]
			if v, _ := args.Bar.Indicator("goLong"); v.IsPositive() {
				return enter(types.NewEnterOptions(types.DirectionLong, "goLong"))
			}
			return nil
		},
	}
	bars := closes("1", "2", "3", "5", "6", "7")
	opts := plainOptions().WithParameters(types.Parameters{"threshold": d("3")})
	trade := singleTrade(t, mustBacktest(t, strat, bars, opts))

	if !seen.Equal(d("3")) {
		t.Errorf("threshold parameter got = %v, want override 3", seen)
	}
	if !trade.EntryTime.Equal(day(3)) {
		t.Errorf("EntryTime got = %v, want %v", trade.EntryTime, day(3))
	}
	if bars[2].Indicators != nil {
		t.Errorf("input bars were modified by indicator preparation")
	}
}

func TestBacktest_CallbackErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("boom")
	fail := func(StopArgs) (decimal.Decimal, error) { return decimal.Zero, boom }

	tests := []struct {
		name  string
		strat Rules
	}{
		{name: "entry rule", strat: Rules{Entry: func(EnterFunc, EntryArgs) error { return boom }}},
		{name: "exit rule", strat: Rules{Entry: alwaysEnter(types.DirectionLong), Exit: func(ExitFunc, ExitArgs) error { return boom }}},
		{name: "stop loss", strat: Rules{Entry: alwaysEnter(types.DirectionLong), StopLoss: fail}},
		{name: "trailing stop", strat: Rules{Entry: alwaysEnter(types.DirectionLong), TrailingStopLoss: fail}},
		{name: "profit target", strat: Rules{Entry: alwaysEnter(types.DirectionLong), ProfitTarget: fail}},
		{name: "prep indicators", strat: Rules{
			Entry: alwaysEnter(types.DirectionLong),
			Prep:  func(types.Parameters, []types.Candle) ([]types.Candle, error) { return nil, boom },
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Backtest(tt.strat, closes("1", "2", "3", "4"), plainOptions())
			if err != boom {
				t.Errorf("Backtest() error = %v, want %v", err, boom)
			}
			if res != nil {
				t.Errorf("Backtest() returned a result alongside an error")
			}
		})
	}
}

func TestBacktest_StateViolations(t *testing.T) {
	tests := []struct {
		name  string
		strat Rules
	}{
		{
			name: "enter twice",
			strat: Rules{Entry: func(enter EnterFunc, _ EntryArgs) error {
				if err := enter(types.EnterOptions{}); err != nil {
					return err
				}
				return enter(types.EnterOptions{})
			}},
		},
		{
			name: "violation swallowed by the entry rule",
			strat: Rules{Entry: func(enter EnterFunc, _ EntryArgs) error {
				_ = enter(types.EnterOptions{})
				_ = enter(types.EnterOptions{})
				return nil
			}},
		},
		{
			name: "exit twice",
			strat: Rules{
				Entry: alwaysEnter(types.DirectionLong),
				Exit: func(exit ExitFunc, _ ExitArgs) error {
					_ = exit()
					return exit()
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Backtest(tt.strat, closes("1", "2", "3", "4"), plainOptions())
			if !errors.Is(err, ErrStateViolation) {
				t.Errorf("Backtest() error = %v, want %v", err, ErrStateViolation)
			}
		})
	}
}

func TestBacktest_ConfigErrors(t *testing.T) {
	entry := alwaysEnter(types.DirectionLong)
	badSize := types.CustomOrderSize(nil)

	tests := []struct {
		name    string
		strat   Strategy
		bars    []types.Candle
		opts    *BacktestOptions
		wantErr error
	}{
		{name: "nil strategy", strat: nil, bars: closes("1"), opts: plainOptions(), wantErr: ErrNilStrategy},
		{name: "no entry rule", strat: Rules{}, bars: closes("1"), opts: plainOptions(), wantErr: ErrNilStrategy},
		{name: "nil options", strat: Rules{Entry: entry}, bars: closes("1"), opts: nil, wantErr: ErrNilOptions},
		{name: "nil strategy options", strat: Rules{Entry: entry}, bars: closes("1"), opts: NewBacktestOptions(nil, false, false), wantErr: ErrNilOptions},
		{
			name:    "zero capital",
			strat:   Rules{Entry: entry},
			bars:    closes("1"),
			opts:    NewBacktestOptions(&types.StrategyOptions{InitialCapital: decimal.Zero}, false, false),
			wantErr: ErrInvalidCapital,
		},
		{
			name:  "negative leverage",
			strat: Rules{Entry: entry},
			bars:  closes("1"),
			opts: NewBacktestOptions(&types.StrategyOptions{
				InitialCapital: d("1000"),
				Leverage:       decimal.NewNullDecimal(d("-1")),
			}, false, false),
			wantErr: ErrInvalidLeverage,
		},
		{name: "custom size without function", strat: Rules{Entry: entry, Size: &badSize}, bars: closes("1"), opts: plainOptions(), wantErr: ErrInvalidOrderSize},
		{name: "no bars", strat: Rules{Entry: entry}, bars: nil, opts: plainOptions(), wantErr: ErrNoBars},
		{name: "negative lookback", strat: Rules{Entry: entry, Lookback: -1}, bars: closes("1"), opts: plainOptions(), wantErr: ErrInvalidLookback},
		{name: "fewer bars than lookback", strat: Rules{Entry: entry, Lookback: 3}, bars: closes("1", "2"), opts: plainOptions(), wantErr: ErrInsufficientBars},
		{
			name: "indicators shorten the series below the lookback",
			strat: Rules{Entry: entry, Lookback: 2, Prep: func(_ types.Parameters, bars []types.Candle) ([]types.Candle, error) {
				return bars[:1], nil
			}},
			bars:    closes("1", "2"),
			opts:    plainOptions(),
			wantErr: ErrInsufficientBars,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Backtest(tt.strat, tt.bars, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Backtest() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Backtest() error = %v, want it to be an %v", err, ErrInvalidConfig)
			}
		})
	}
}

func TestBacktest_Deterministic(t *testing.T) {
	strat := Rules{
		Entry:            alwaysEnter(types.DirectionLong),
		Exit:             alwaysExit,
		TrailingStopLoss: pctOfEntry("5"),
		ProfitTarget:     pctOfEntry("30"),
		FeeRate:          decimal.NewNullDecimal(d("0.06")),
	}
	bars := closes("10", "11", "12", "11", "13", "15", "14", "12", "13", "16", "18")
	opts := NewBacktestOptions(&types.StrategyOptions{InitialCapital: d("1000")}, true, true)

	first := mustBacktest(t, strat, bars, opts)
	second := mustBacktest(t, strat, bars, opts)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Backtest() is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestBacktest_CallbacksCannotMutatePosition(t *testing.T) {
	strat := Rules{
		Entry:    alwaysEnter(types.DirectionLong),
		StopLoss: pctOfEntry("20"),
		Exit: func(_ ExitFunc, args ExitArgs) error {
			args.Position.Stop.CurrentPrice = d("1000")
			args.Position.HoldingPeriod = 100
			return nil
		},
	}
	trade := singleTrade(t, mustBacktest(t, strat, closes("100", "100", "100", "100"), plainOptions()))
	if trade.ExitReason != types.ExitReasonFinalize {
		t.Errorf("ExitReason got = %v, want %v", trade.ExitReason, types.ExitReasonFinalize)
	}
	if trade.HoldingPeriod != 2 {
		t.Errorf("HoldingPeriod got = %v, want 2", trade.HoldingPeriod)
	}
}

type breakoutStrategy struct {
	exits int
}

func (s *breakoutStrategy) EntryRule(enter EnterFunc, args EntryArgs) error {
	prev := args.Lookback[0]
	if args.Bar.Close.GreaterThan(prev.High) {
		return enter(types.NewEnterOptions(types.DirectionLong, "breakout"))
	}
	return nil
}

func (s *breakoutStrategy) ExitRule(exit ExitFunc, args ExitArgs) error {
	if args.Position.ProfitPct.GreaterThan(d("10")) {
		s.exits++
		return exit()
	}
	return nil
}

func (s *breakoutStrategy) StopLoss(args StopArgs) (decimal.Decimal, error) {
	return args.EntryPrice.Mul(d("0.1")), nil
}

func (s *breakoutStrategy) OrderSize() types.OrderSize {
	return types.PercentageOfEquity(d("100"))
}

func (s *breakoutStrategy) Fees() decimal.Decimal { return d("0") }

func (s *breakoutStrategy) LookbackPeriod() int { return 2 }

func TestBacktest_InterfaceCapabilities(t *testing.T) {
	strat := &breakoutStrategy{}
	bars := []types.Candle{
		ohlc(0, "10", "10", "10", "10"),
		ohlc(1, "10", "11", "10", "12"),
		ohlc(2, "12", "12", "12", "12"),
		ohlc(3, "12", "14", "12", "14"),
		ohlc(4, "15", "15", "15", "15"),
		ohlc(5, "15", "15", "15", "15"),
	}
	trade := singleTrade(t, mustBacktest(t, strat, bars, plainOptions()))

	if trade.EntryReason != "breakout" {
		t.Errorf("EntryReason got = %v, want breakout", trade.EntryReason)
	}
	if !trade.Size.Equal(d("83")) {
		t.Errorf("Size got = %v, want 83", trade.Size)
	}
	if !trade.StopPrice.Decimal.Equal(d("10.8")) {
		t.Errorf("StopPrice got = %v, want 10.8", trade.StopPrice.Decimal)
	}
	if trade.ExitReason != types.ExitReasonExitRule || !trade.ExitPrice.Equal(d("15")) {
		t.Errorf("exit got = %v@%v, want exit-rule@15", trade.ExitReason, trade.ExitPrice)
	}
	if strat.exits != 1 {
		t.Errorf("exit rule fired %d times, want 1", strat.exits)
	}
}
