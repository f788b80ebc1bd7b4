package normalizer

import (
	"github.com/shopspring/decimal"

	"portfolioexecutor/src/model"
)

// RoundPrice rounds toward the passive side of the book: down for BUY, up for SELL.
func RoundPrice(price decimal.Decimal, side string, precision int) decimal.Decimal {
	if side == model.SideSell {
		return price.RoundCeil(int32(precision))
	}
	return price.RoundFloor(int32(precision))
}

// TruncateQuantity drops every digit past precision. Quantities are never rounded up.
func TruncateQuantity(qty decimal.Decimal, precision int) decimal.Decimal {
	return qty.Truncate(int32(precision))
}

// Tick is the smallest representable increment at precision decimal places.
func Tick(precision int) decimal.Decimal {
	return decimal.New(1, int32(-precision))
}
