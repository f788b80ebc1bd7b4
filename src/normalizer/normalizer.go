package normalizer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/metadata"
	"portfolioexecutor/src/model"
)

// Anchor offsets applied to the live price: a BUY never bids above 0.999×live,
// a SELL never asks below 1.001×live.
var (
	buyAnchor  = decimal.RequireFromString("0.999")
	sellAnchor = decimal.RequireFromString("1.001")
)

// minNotionalTolerance is the relative slack of the final min notional check.
const minNotionalTolerance = 1e-9

// Adjustment kinds recorded in the execution plan.
const (
	AdjustPriceAnchorClamp  = "price_anchor_clamp"
	AdjustPriceRounded      = "price_rounded"
	AdjustPriceTickBump     = "price_tick_bump"
	AdjustQuantityFromQuote = "quantity_from_quote"
	AdjustQuantityTruncated = "quantity_truncated"
	AdjustMinNotionalRepair = "min_notional_repair"
)

type PairSource interface {
	Get(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error)
}

type PriceSource interface {
	FetchTicker(ctx context.Context, symbol string) (float64, error)
}

// Result carries everything the normalizer learned about one intent.
// Exactly one of Order and Rejection is set; Futures is set only by Futures.
type Result struct {
	PairInfo    *model.ExchangePairInfo
	LivePrice   float64
	Order       *model.NormalizedOrder
	Futures     *model.NormalizedFuturesOrder
	Adjustments []model.Adjustment
	Rejection   *Rejection
}

func (r *Result) adjust(kind string, before, after decimal.Decimal, note string) {
	b, _ := before.Float64()
	a, _ := after.Float64()
	r.Adjustments = append(r.Adjustments, model.Adjustment{Kind: kind, Before: b, After: a, Note: note})
}

// Normalizer turns trade intents into exchange-compliant orders.
type Normalizer struct {
	pairs  PairSource
	prices PriceSource
	repair RepairPolicy
	log    *logger.Entry
}

func New(pairs PairSource, prices PriceSource, log *logger.Entry) *Normalizer {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Normalizer{
		pairs:  pairs,
		prices: prices,
		repair: TruncationTolerantPolicy,
		log:    log.WithField("component", "normalizer"),
	}
}

// WithRepairPolicy swaps the min-notional repair heuristic.
func (n *Normalizer) WithRepairPolicy(policy RepairPolicy) *Normalizer {
	if policy == nil {
		policy = NeverRepair
	}
	n.repair = policy
	return n
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func validateSpot(intent model.TradeIntent) []string {
	var failures []string
	if intent.Side != model.SideBuy && intent.Side != model.SideSell {
		failures = append(failures, fmt.Sprintf("side must be BUY or SELL, got %q", intent.Side))
	}
	if strings.TrimSpace(intent.Pair) == "" {
		failures = append(failures, "pair is required")
	}
	if strings.TrimSpace(intent.Token) == "" {
		failures = append(failures, "token is required")
	}
	if !finitePositive(intent.Quantity) {
		failures = append(failures, "quantity must be a positive finite number")
	}
	if !finitePositive(intent.BasePrice) {
		failures = append(failures, "base price must be a positive finite number")
	}
	d := intent.MaxPriceDivergence
	if math.IsNaN(d) || math.IsInf(d, 0) || d < model.MinPriceDivergence {
		failures = append(failures, fmt.Sprintf("max price divergence must be at least %g", model.MinPriceDivergence))
	}
	if intent.LimitPrice != nil && !finitePositive(*intent.LimitPrice) {
		failures = append(failures, "limit price must be a positive finite number")
	}
	return failures
}

// Spot normalizes a spot intent.
func (n *Normalizer) Spot(ctx context.Context, intent model.TradeIntent) *Result {
	res := &Result{}
	if failures := validateSpot(intent); len(failures) > 0 {
		res.Rejection = reject(KindValidation, strings.Join(failures, "; "), failures...)
		return res
	}
	n.resolve(ctx, intent, res)
	return res
}

// resolve runs metadata lookup, the divergence guard, price selection and quantity resolution.
func (n *Normalizer) resolve(ctx context.Context, intent model.TradeIntent, res *Result) {
	log := n.log.WithFields(logger.Fields{"pair": intent.Pair, "side": intent.Side, "token": intent.Token})

	base, quote, err := metadata.SplitPair(intent.Pair)
	if err != nil {
		res.Rejection = reject(KindValidation, err.Error())
		return
	}

	info, err := n.pairs.Get(ctx, base, quote)
	if err != nil {
		log.WithError(err).Warn("pair metadata unavailable")
		res.Rejection = reject(KindMetadata, fmt.Sprintf("pair metadata unavailable: %v", err))
		return
	}
	res.PairInfo = info

	live, err := n.prices.FetchTicker(ctx, info.Symbol)
	if err != nil {
		log.WithError(err).Warn("live price unavailable")
		res.Rejection = reject(KindMetadata, fmt.Sprintf("live price unavailable: %v", err))
		return
	}
	if !finitePositive(live) {
		res.Rejection = reject(KindMetadata, fmt.Sprintf("invalid live price %v", live))
		return
	}
	res.LivePrice = live

	divergence := math.Abs(live-intent.BasePrice) / intent.BasePrice
	if divergence > intent.MaxPriceDivergence {
		log.WithFields(logger.Fields{
			"live":       live,
			"base":       intent.BasePrice,
			"divergence": divergence,
			"tolerance":  intent.MaxPriceDivergence,
		}).Info("intent rejected on price divergence")
		res.Rejection = reject(KindDivergence, ReasonDivergence,
			fmt.Sprintf("live %v vs base %v: divergence %.6f > %.6f", live, intent.BasePrice, divergence, intent.MaxPriceDivergence))
		return
	}

	price, rej := n.selectPrice(intent, info, decimal.NewFromFloat(live), res)
	if rej != nil {
		res.Rejection = rej
		return
	}

	qty, rej := n.resolveQuantity(intent, info, price, res)
	if rej != nil {
		res.Rejection = rej
		log.WithField("reason", rej.Reason).Info("intent rejected")
		return
	}

	p, _ := price.Float64()
	q, _ := qty.Float64()
	res.Order = &model.NormalizedOrder{
		Symbol:    info.Symbol,
		Base:      info.BaseAsset,
		Quote:     info.QuoteAsset,
		Side:      intent.Side,
		Quantity:  q,
		Price:     p,
		LivePrice: live,
	}
}

func (n *Normalizer) selectPrice(intent model.TradeIntent, info *model.ExchangePairInfo, live decimal.Decimal, res *Result) (decimal.Decimal, *Rejection) {
	var anchor decimal.Decimal
	if intent.Side == model.SideBuy {
		anchor = live.Mul(buyAnchor)
	} else {
		anchor = live.Mul(sellAnchor)
	}

	adjusted := anchor
	if intent.LimitPrice != nil {
		requested := decimal.NewFromFloat(*intent.LimitPrice)
		adjusted = requested
		if intent.Side == model.SideBuy && requested.GreaterThan(anchor) {
			adjusted = anchor
		}
		if intent.Side == model.SideSell && requested.LessThan(anchor) {
			adjusted = anchor
		}
		if !adjusted.Equal(requested) {
			res.adjust(AdjustPriceAnchorClamp, requested, adjusted, "requested limit more aggressive than live anchor")
		}
	}

	price := RoundPrice(adjusted, intent.Side, info.PricePrecision)
	if !price.Equal(adjusted) {
		res.adjust(AdjustPriceRounded, adjusted, price, fmt.Sprintf("price precision %d", info.PricePrecision))
	}
	if !price.IsPositive() {
		tick := Tick(info.PricePrecision)
		res.adjust(AdjustPriceTickBump, price, tick, "rounded price was not positive")
		price = tick
	}
	if f, _ := price.Float64(); !finitePositive(f) {
		return price, reject(KindPrecision, ReasonInvalidPrice, fmt.Sprintf("price precision %d", info.PricePrecision))
	}
	return price, nil
}

func (n *Normalizer) resolveQuantity(intent model.TradeIntent, info *model.ExchangePairInfo, price decimal.Decimal, res *Result) (decimal.Decimal, *Rejection) {
	requested := decimal.NewFromFloat(intent.Quantity)
	minNotional := decimal.NewFromFloat(info.MinNotional)

	var raw, theoretical decimal.Decimal
	switch {
	case strings.EqualFold(intent.Token, info.BaseAsset):
		raw = requested
		theoretical = minNotional.Div(price)
	case strings.EqualFold(intent.Token, info.QuoteAsset):
		raw = requested.Div(price)
		theoretical = minNotional
		res.adjust(AdjustQuantityFromQuote, requested, raw, "quote amount converted at limit price")
	default:
		return decimal.Zero, reject(KindUnsupported, ReasonUnsupportedToken,
			fmt.Sprintf("token %s is neither %s nor %s", intent.Token, info.BaseAsset, info.QuoteAsset))
	}

	qty := TruncateQuantity(raw, info.QuantityPrecision)
	if !qty.Equal(raw) {
		res.adjust(AdjustQuantityTruncated, raw, qty, fmt.Sprintf("quantity precision %d", info.QuantityPrecision))
	}

	if qty.Mul(price).LessThan(minNotional) && n.repair(requested, theoretical) {
		repaired := repairedQuantity(minNotional, price, info.QuantityPrecision)
		res.adjust(AdjustMinNotionalRepair, qty, repaired, "quantity truncated below min notional")
		qty = repaired
	}

	if !qty.IsPositive() {
		return qty, reject(KindPrecision, ReasonInvalidQuantity, fmt.Sprintf("quantity precision %d", info.QuantityPrecision))
	}

	floor := minNotional.Mul(decimal.NewFromFloat(1 - minNotionalTolerance))
	if notional := qty.Mul(price); notional.LessThan(floor) {
		return qty, reject(KindMinNotional, ReasonMinNotional,
			fmt.Sprintf("notional %s < %s", notional.String(), minNotional.String()))
	}
	return qty, nil
}
