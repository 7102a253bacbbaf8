package types

import (
	"github.com/shopspring/decimal"
)

// EnterOptions is what an entry rule passes when it asks to open a position.
// A valid EntryPrice makes the entry conditional: it is only filled on the
// first bar whose range reaches that price.
type EnterOptions struct {
	Direction  Direction
	EntryPrice decimal.NullDecimal
	Reason     string
}

func NewEnterOptions(direction Direction, reason string) EnterOptions {
	return EnterOptions{
		Direction: direction,
		Reason:    reason,
	}
}

// AtPrice returns a copy of the options with a conditional entry price.
func (o EnterOptions) AtPrice(price decimal.Decimal) EnterOptions {
	o.EntryPrice = decimal.NewNullDecimal(price)
	return o
}
