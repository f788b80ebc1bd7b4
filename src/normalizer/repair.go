package normalizer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Repair policy names accepted by RepairPolicyByName.
const (
	RepairTolerant = "tolerant"
	RepairExact    = "exact"
	RepairNever    = "never"
)

// RepairBuffer lifts a repaired quantity just above the exchange floor.
var RepairBuffer = decimal.RequireFromString("1.0001")

// RepairPolicy decides whether an order below min notional was pushed there by truncation
// and may be bumped up to the floor. requested is the unrounded intent quantity, theoretical
// the smallest quantity of the same token that satisfies min notional.
type RepairPolicy func(requested, theoretical decimal.Decimal) bool

// TruncationTolerantPolicy is the default repair rule. Both values must share the same
// decimal exponent, and the requested leading digit may equal the theoretical one or sit
// one unit below it. The one-below tolerance is deliberately looser than an exact match:
// a request of 0.0001 against a floor of 0.0002 is taken as a truncation casualty and repaired.
func TruncationTolerantPolicy(requested, theoretical decimal.Decimal) bool {
	rd, re, ok := leadingDigit(requested)
	if !ok {
		return false
	}
	td, te, ok := leadingDigit(theoretical)
	if !ok {
		return false
	}
	return re == te && (rd == td || rd == td-1)
}

// ExactDigitPolicy repairs only when the leading digit and decimal exponent of both values are equal.
func ExactDigitPolicy(requested, theoretical decimal.Decimal) bool {
	rd, re, ok := leadingDigit(requested)
	if !ok {
		return false
	}
	td, te, ok := leadingDigit(theoretical)
	if !ok {
		return false
	}
	return re == te && rd == td
}

// NeverRepair disables min-notional repair.
func NeverRepair(_, _ decimal.Decimal) bool { return false }

// RepairPolicyByName resolves a configured policy name. An empty name is the default policy.
func RepairPolicyByName(name string) (RepairPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RepairTolerant:
		return TruncationTolerantPolicy, nil
	case RepairExact:
		return ExactDigitPolicy, nil
	case RepairNever:
		return NeverRepair, nil
	default:
		return nil, fmt.Errorf("unknown repair policy %q", name)
	}
}

// leadingDigit returns the first significant digit of v and its power of ten.
func leadingDigit(v decimal.Decimal) (digit int, exponent int, ok bool) {
	if !v.IsPositive() {
		return 0, 0, false
	}
	coefficient := v.Coefficient().String()
	digits := len(coefficient)
	return int(coefficient[0] - '0'), int(v.Exponent()) + digits - 1, true
}

// repairedQuantity bumps qty to minNotional×buffer/price at precision, adding one tick
// when truncation still leaves it under the floor.
func repairedQuantity(minNotional, price decimal.Decimal, precision int) decimal.Decimal {
	qty := TruncateQuantity(minNotional.Mul(RepairBuffer).Div(price), precision)
	if qty.Mul(price).LessThan(minNotional) {
		qty = qty.Add(Tick(precision))
	}
	return qty
}
