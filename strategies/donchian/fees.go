package donchian

import "github.com/shopspring/decimal"

// FeeRatePct is the commission charged on each side of a trade, in percent
// of size. It is the variable part of the IBKR fixed-rate schedule for
// Netherlands stocks (0.05% of trade value); the per-order minimum and
// maximum of that schedule are not modelled.
var FeeRatePct = decimal.RequireFromString("0.05")
