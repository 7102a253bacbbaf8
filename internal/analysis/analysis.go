package analysis

import (
	"errors"
	"math"
	"sync"
	"time"

	"tradesim/internal/pnl"
	"tradesim/types"

	"github.com/shopspring/decimal"
)

var ErrInvalidCapital = errors.New("starting capital must be positive")

const (
	DefaultSharpeCoefficient  = 12.0
	DefaultSharpeRiskFreeRate = 0.099
)

// SharpeOptions annualises the per-trade returns used by the Sharpe ratio.
// Both fields must be non-zero to take effect.
type SharpeOptions struct {
	RiskFreeRate float64
	Coefficient  float64
}

// Analysis summarises a list of trades. Undefined metrics are left invalid.
type Analysis struct {
	StartingCapital decimal.Decimal
	FinalCapital    decimal.Decimal
	Profit          decimal.Decimal
	ProfitPct       decimal.Decimal

	TotalTrades    int
	BarCount       int
	TradeSpanDays  int
	FirstTradeDate time.Time
	LastTradeDate  time.Time

	MaxDrawdown    decimal.Decimal
	MaxDrawdownPct decimal.Decimal
	MaxRiskPct     decimal.NullDecimal

	Expectancy      decimal.NullDecimal
	RMultipleStdDev decimal.NullDecimal
	SystemQuality   decimal.NullDecimal

	ProfitFactor         decimal.NullDecimal
	ProportionProfitable decimal.Decimal
	PercentProfitable    decimal.Decimal
	ReturnOnAccount      decimal.NullDecimal

	AverageProfitPerTrade decimal.Decimal
	NumWinningTrades      int
	NumLosingTrades       int
	AverageWinningTrade   decimal.Decimal
	AverageLosingTrade    decimal.Decimal
	ExpectedValue         decimal.Decimal

	ADR          decimal.NullDecimal
	ADRPct       decimal.NullDecimal
	CalmarRatio  decimal.NullDecimal
	SharpeRatio  decimal.NullDecimal
	CAGR         decimal.NullDecimal
	AccountValue []decimal.Decimal

	MaxConsecutiveLosses int
}

// Analyze computes performance statistics for trades taken in order from
// startingCapital.
func Analyze(startingCapital decimal.Decimal, trades []types.Trade, sharpeOpts *SharpeOptions) (*Analysis, error) {
	if !startingCapital.IsPositive() {
		return nil, ErrInvalidCapital
	}

	sharpe := SharpeOptions{RiskFreeRate: DefaultSharpeRiskFreeRate, Coefficient: DefaultSharpeCoefficient}
	if sharpeOpts != nil && sharpeOpts.Coefficient != 0 && sharpeOpts.RiskFreeRate != 0 {
		sharpe = *sharpeOpts
	}

	a := &Analysis{
		StartingCapital: startingCapital,
		TotalTrades:     len(trades),
		AccountValue:    make([]decimal.Decimal, 0, len(trades)),
	}

	workingCapital := startingCapital
	peakCapital := startingCapital
	workingDrawdown := decimal.Zero
	maxDrawdown := decimal.Zero
	maxDrawdownPct := decimal.Zero
	totalProfits := decimal.Zero
	totalLosses := decimal.Zero

	for _, trade := range trades {
		workingCapital = workingCapital.Add(trade.Profit)
		a.AccountValue = append(a.AccountValue, workingCapital)
		a.BarCount += trade.HoldingPeriod

		if workingCapital.LessThan(peakCapital) {
			workingDrawdown = workingCapital.Sub(peakCapital)
		} else {
			peakCapital = workingCapital
			workingDrawdown = decimal.Zero
		}

		if trade.Profit.IsPositive() {
			totalProfits = totalProfits.Add(trade.Profit)
			a.NumWinningTrades++
		} else {
			totalLosses = totalLosses.Add(trade.Profit)
			a.NumLosingTrades++
		}

		maxDrawdown = decimal.Min(workingDrawdown, maxDrawdown)
		if pct, ok := pnl.Pct(maxDrawdown, peakCapital); ok {
			maxDrawdownPct = decimal.Min(pct, maxDrawdownPct)
		}
	}

	a.FinalCapital = workingCapital
	a.Profit = workingCapital.Sub(startingCapital)
	a.ProfitPct, _ = pnl.Pct(a.Profit, startingCapital)
	a.MaxDrawdown = maxDrawdown
	a.MaxDrawdownPct = maxDrawdownPct
	a.ReturnOnAccount = pnl.Null(pnl.Div(a.ProfitPct, maxDrawdownPct.Abs()))

	if len(trades) > 0 {
		a.FirstTradeDate = trades[0].EntryTime
		a.LastTradeDate = trades[len(trades)-1].EntryTime
		span := a.LastTradeDate.Sub(a.FirstTradeDate)
		if span < 0 {
			span = -span
		}
		a.TradeSpanDays = int(span / (24 * time.Hour))
	}

	total := decimal.NewFromInt(int64(a.TotalTrades))
	wins := decimal.NewFromInt(int64(a.NumWinningTrades))
	losses := decimal.NewFromInt(int64(a.NumLosingTrades))

	a.AverageProfitPerTrade = divOrZero(a.Profit, total)
	a.ProportionProfitable = divOrZero(wins, total)
	proportionLosing := divOrZero(losses, total)
	a.PercentProfitable = a.ProportionProfitable.Mul(decimal.NewFromInt(100))
	a.AverageWinningTrade = divOrZero(totalProfits, wins)
	a.AverageLosingTrade = divOrZero(totalLosses, losses)
	a.ExpectedValue = a.ProportionProfitable.Mul(a.AverageWinningTrade).Add(proportionLosing.Mul(a.AverageLosingTrade))
	a.ProfitFactor = pnl.Null(pnl.Div(totalProfits, totalLosses.Abs()))

	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		a.MaxRiskPct = calcMaxRiskPct(trades, &wg)
	}()
	go func() {
		a.Expectancy, a.RMultipleStdDev, a.SystemQuality = calcRMultipleStats(trades, &wg)
	}()
	go func() {
		a.ADR, a.ADRPct, a.CalmarRatio = calcDailyReturnMetrics(trades, maxDrawdown, &wg)
	}()
	go func() {
		a.SharpeRatio = calcSharpeRatio(a.AccountValue, sharpe, &wg)
	}()
	go func() {
		a.CAGR = calcCAGR(startingCapital, workingCapital, trades, &wg)
	}()
	go func() {
		a.MaxConsecutiveLosses = calcMaxConsecutiveLosses(trades, &wg)
	}()
	wg.Wait()

	return a, nil
}

func divOrZero(a, b decimal.Decimal) decimal.Decimal {
	q, ok := pnl.Div(a, b)
	if !ok {
		return decimal.Zero
	}
	return q
}

func calcMaxRiskPct(trades []types.Trade, wg *sync.WaitGroup) decimal.NullDecimal {
	defer wg.Done()

	var out decimal.NullDecimal
	for _, trade := range trades {
		if !trade.RiskPct.Valid {
			continue
		}
		if !out.Valid || trade.RiskPct.Decimal.GreaterThan(out.Decimal) {
			out = trade.RiskPct
		}
	}
	return out
}

// calcRMultipleStats returns the expectancy (mean R), the sample standard
// deviation of R and their ratio, the system quality.
func calcRMultipleStats(trades []types.Trade, wg *sync.WaitGroup) (decimal.NullDecimal, decimal.NullDecimal, decimal.NullDecimal) {
	defer wg.Done()

	var rs []decimal.Decimal
	for _, trade := range trades {
		if trade.RMultiple.Valid {
			rs = append(rs, trade.RMultiple.Decimal)
		}
	}
	if len(rs) == 0 {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}
	}

	mean := divOrZero(decimal.Sum(decimal.Zero, rs...), decimal.NewFromInt(int64(len(rs))))
	expectancy := decimal.NewNullDecimal(mean)

	// A single sample has no spread.
	stdDev := decimal.NewNullDecimal(decimal.Zero)
	if len(rs) > 1 {
		variance := decimal.Zero
		for _, r := range rs {
			diff := r.Sub(mean)
			variance = variance.Add(diff.Mul(diff))
		}
		variance = divOrZero(variance, decimal.NewFromInt(int64(len(rs)-1)))
		stdDev = fromFloat(math.Sqrt(variance.InexactFloat64()))
	}

	var quality decimal.NullDecimal
	if stdDev.Valid {
		quality = pnl.Null(pnl.Div(mean, stdDev.Decimal))
	}
	return expectancy, stdDev, quality
}

// calcDailyReturnMetrics returns the average daily return (summed trade
// profit % over days held), the same in percent and the Calmar ratio
// annualised over 365 days against the absolute max drawdown.
func calcDailyReturnMetrics(trades []types.Trade, maxDrawdown decimal.Decimal, wg *sync.WaitGroup) (decimal.NullDecimal, decimal.NullDecimal, decimal.NullDecimal) {
	defer wg.Done()

	totalReturn := decimal.Zero
	totalDays := 0.0
	for _, trade := range trades {
		totalReturn = totalReturn.Add(trade.ProfitPct)
		totalDays += trade.Duration().Hours() / 24
	}
	if totalDays == 0 {
		return decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{}
	}

	adr := totalReturn.InexactFloat64() / totalDays
	var calmar decimal.NullDecimal
	if mdd := math.Abs(maxDrawdown.InexactFloat64()); mdd > 0 {
		calmar = fromFloat((math.Pow(1+adr, 365) - 1) / mdd)
	}
	return fromFloat(adr), fromFloat(adr * 100), calmar
}

// calcSharpeRatio treats the change between consecutive account values,
// relative to the later value, as the return of a period.
func calcSharpeRatio(accountValues []decimal.Decimal, opts SharpeOptions, wg *sync.WaitGroup) decimal.NullDecimal {
	defer wg.Done()

	if len(accountValues) < 2 {
		return decimal.NullDecimal{}
	}

	returns := make([]float64, 0, len(accountValues)-1)
	for i := 1; i < len(accountValues); i++ {
		cur := accountValues[i].InexactFloat64()
		if cur == 0 {
			return decimal.NullDecimal{}
		}
		prev := accountValues[i-1].InexactFloat64()
		returns = append(returns, (cur-prev)/cur)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var varianceSum float64
	for _, r := range returns {
		diff := r - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(returns)))
	if std == 0 {
		return decimal.NullDecimal{}
	}

	annualisedStd := std * math.Sqrt(opts.Coefficient)
	return fromFloat((mean*opts.Coefficient - opts.RiskFreeRate) / annualisedStd)
}

// calcCAGR compounds the whole-run return over the years between the first
// entry and the last exit, using 365.25 day years.
func calcCAGR(startingCapital, finalCapital decimal.Decimal, trades []types.Trade, wg *sync.WaitGroup) decimal.NullDecimal {
	defer wg.Done()
	if len(trades) == 0 {
		return decimal.NullDecimal{}
	}

	duration := trades[len(trades)-1].ExitTime.Sub(trades[0].EntryTime)
	years := duration.Hours() / (24.0 * 365.25)
	if years <= 0 {
		return decimal.NullDecimal{}
	}

	ratio, ok := pnl.Div(finalCapital, startingCapital)
	if !ok || !ratio.IsPositive() {
		return decimal.NullDecimal{}
	}
	return fromFloat(math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0)
}

// calcMaxConsecutiveLosses counts the longest run of trades that did not
// make money. Trades are taken in the order they were closed.
func calcMaxConsecutiveLosses(trades []types.Trade, wg *sync.WaitGroup) int {
	defer wg.Done()

	maxLossStreak := 0
	currentStreak := 0
	for _, trade := range trades {
		if trade.Profit.IsNegative() {
			currentStreak++
			if currentStreak > maxLossStreak {
				maxLossStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxLossStreak
}

func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}
