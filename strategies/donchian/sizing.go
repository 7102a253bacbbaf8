package donchian

import (
	"tradesim/types"

	"github.com/shopspring/decimal"
)

// cashSizer buys as many whole units as fraction of working capital affords
// at the entry price.
func cashSizer(fraction decimal.Decimal) func(args types.SizingArgs) (decimal.Decimal, error) {
	return func(args types.SizingArgs) (decimal.Decimal, error) {
		return getQuantityForPrice(args.EntryPrice, args.WorkingCapital.Mul(fraction)), nil
	}
}

func getQuantityForPrice(stockPrice, capitalToUse decimal.Decimal) decimal.Decimal {
	if !stockPrice.IsPositive() || !capitalToUse.IsPositive() {
		return decimal.Zero
	}
	quantity, _ := capitalToUse.QuoRem(stockPrice, 0)
	return quantity
}
