package normalizer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"portfolioexecutor/src/model"
)

func validateFutures(intent model.TradeIntent) []string {
	failures := validateSpot(intent)
	if intent.PositionSide != model.PositionSideLong && intent.PositionSide != model.PositionSideShort {
		failures = append(failures, fmt.Sprintf("position side must be LONG or SHORT, got %q", intent.PositionSide))
	}
	if !finitePositive(intent.StopLoss) {
		failures = append(failures, "stop loss must be a positive finite number")
	}
	if !finitePositive(intent.TakeProfit) {
		failures = append(failures, "take profit must be a positive finite number")
	}
	switch orderType(intent) {
	case model.OrderTypeMarket:
	case model.OrderTypeLimit:
		if intent.LimitPrice == nil {
			failures = append(failures, "limit order requires a limit price")
		}
	default:
		failures = append(failures, fmt.Sprintf("order type must be MARKET or LIMIT, got %q", intent.OrderType))
	}
	if intent.Leverage != nil {
		l := *intent.Leverage
		if !finitePositive(l) || l != math.Trunc(l) || l > math.MaxInt32 {
			failures = append(failures, "leverage must be a positive integer")
		}
	}
	return failures
}

func orderType(intent model.TradeIntent) string {
	if intent.OrderType == "" {
		return model.OrderTypeMarket
	}
	return strings.ToUpper(intent.OrderType)
}

// Futures normalizes a futures intent. Price and quantity go through the same pipeline as spot;
// for MARKET entries the rounded price only sizes the order and checks min notional.
func (n *Normalizer) Futures(ctx context.Context, intent model.TradeIntent) *Result {
	res := &Result{}
	if failures := validateFutures(intent); len(failures) > 0 {
		res.Rejection = reject(KindValidation, strings.Join(failures, "; "), failures...)
		return res
	}

	n.resolve(ctx, intent, res)
	if res.Rejection != nil {
		return res
	}

	futures := &model.NormalizedFuturesOrder{
		NormalizedOrder: *res.Order,
		PositionSide:    intent.PositionSide,
		OrderType:       orderType(intent),
		StopLoss:        intent.StopLoss,
		TakeProfit:      intent.TakeProfit,
		ReduceOnly:      intent.ReduceOnly,
	}
	if intent.Leverage != nil {
		futures.Leverage = int(*intent.Leverage)
	}
	res.Futures = futures
	return res
}
