package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/metadata"
	"portfolioexecutor/src/model"
)

const defaultBinanceSpotURL = "https://api.binance.com"

// Depth levels requested for top-of-book snapshots.
const depthLevels = 5

type binanceFilter struct {
	FilterType  string `json:"filterType"`
	TickSize    string `json:"tickSize"`
	StepSize    string `json:"stepSize"`
	MinNotional string `json:"minNotional"`
	Notional    string `json:"notional"`
}

type binanceSymbol struct {
	Symbol            string          `json:"symbol"`
	Status            string          `json:"status"`
	ContractType      string          `json:"contractType"`
	BaseAsset         string          `json:"baseAsset"`
	QuoteAsset        string          `json:"quoteAsset"`
	PricePrecision    int             `json:"pricePrecision"`
	QuantityPrecision int             `json:"quantityPrecision"`
	Filters           []binanceFilter `json:"filters"`
}

type binanceExchangeInfo struct {
	Symbols []binanceSymbol `json:"symbols"`
}

func (s binanceSymbol) pairInfo() *model.ExchangePairInfo {
	info := &model.ExchangePairInfo{
		Symbol:            s.Symbol,
		BaseAsset:         s.BaseAsset,
		QuoteAsset:        s.QuoteAsset,
		PricePrecision:    s.PricePrecision,
		QuantityPrecision: s.QuantityPrecision,
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			if f.TickSize != "" {
				info.PricePrecision = precisionFromStep(f.TickSize)
			}
		case "LOT_SIZE":
			if f.StepSize != "" {
				info.QuantityPrecision = precisionFromStep(f.StepSize)
			}
		case "NOTIONAL", "MIN_NOTIONAL":
			if f.MinNotional != "" {
				info.MinNotional = parseFloat(f.MinNotional)
			} else if f.Notional != "" {
				info.MinNotional = parseFloat(f.Notional)
			}
		}
	}
	return info
}

// BinanceSpot trades and reads market data on Binance spot through goex.
// Pair metadata comes from the public exchangeInfo endpoint, which goex does not expose.
type BinanceSpot struct {
	exchange goex.API
	rest     *resty.Client
	log      *logger.Entry
}

func NewBinanceSpot(cfg Config, log *logger.Entry) *BinanceSpot {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	baseURL := strings.TrimRight(cfg.BinanceSpotURL, "/")
	if baseURL == "" {
		baseURL = defaultBinanceSpotURL
	}

	api := binance.NewWithConfig(&goex.APIConfig{
		HttpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		Endpoint:     baseURL,
		ApiKey:       cfg.APIKey,
		ApiSecretKey: cfg.APISecret,
	})

	return &BinanceSpot{
		exchange: api,
		rest:     newRESTClient(baseURL, defaultBinanceSpotURL, cfg.HTTPTimeout),
		log:      log.WithField("exchange", "binance_spot"),
	}
}

func currencyPair(base, quote string) goex.CurrencyPair {
	return goex.NewCurrencyPair(goex.Currency{Symbol: strings.ToUpper(base)}, goex.Currency{Symbol: strings.ToUpper(quote)})
}

func symbolPair(symbol string) (goex.CurrencyPair, error) {
	base, quote, err := metadata.SplitPair(symbol)
	if err != nil {
		return goex.CurrencyPair{}, err
	}
	return currencyPair(base, quote), nil
}

func (b *BinanceSpot) FetchMarket(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error) {
	symbol := strings.ToUpper(base + quote)
	resp, err := b.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		Get("/api/v3/exchangeInfo")
	if err != nil {
		return nil, fmt.Errorf("binance exchangeInfo %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, binanceError("binance", resp.StatusCode(), resp.Body())
	}

	var parsed binanceExchangeInfo
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("decode binance exchangeInfo: %w", err)
	}
	for _, s := range parsed.Symbols {
		if s.Symbol == symbol {
			return s.pairInfo(), nil
		}
	}
	return nil, fmt.Errorf("binance: symbol %s not listed", symbol)
}

func (b *BinanceSpot) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pair, err := symbolPair(symbol)
	if err != nil {
		return 0, err
	}
	ticker, err := b.exchange.GetTicker(pair)
	if err != nil {
		return 0, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	return ticker.Last, nil
}

func (b *BinanceSpot) FetchOrderBookTop(ctx context.Context, symbol string) (*model.OrderBookTop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := symbolPair(symbol)
	if err != nil {
		return nil, err
	}
	depth, err := b.exchange.GetDepth(depthLevels, pair)
	if err != nil {
		return nil, fmt.Errorf("binance depth %s: %w", symbol, err)
	}
	return topOfBook(depth.BidList, depth.AskList), nil
}

// topOfBook picks the highest bid and lowest ask regardless of list ordering.
func topOfBook(bids, asks goex.DepthRecords) *model.OrderBookTop {
	top := &model.OrderBookTop{}
	for _, r := range bids {
		if r.Price > top.BidPrice {
			top.BidPrice, top.BidQty = r.Price, r.Amount
		}
	}
	for _, r := range asks {
		if r.Price > 0 && (top.AskPrice == 0 || r.Price < top.AskPrice) {
			top.AskPrice, top.AskQty = r.Price, r.Amount
		}
	}
	return top
}

func klinePeriod(interval string) (goex.KlinePeriod, error) {
	switch interval {
	case model.Interval1h:
		return goex.KLINE_PERIOD_1H, nil
	case model.Interval4h:
		return goex.KLINE_PERIOD_4H, nil
	case model.Interval1d:
		return goex.KLINE_PERIOD_1DAY, nil
	case model.Interval1w:
		return goex.KLINE_PERIOD_1WEEK, nil
	}
	return 0, fmt.Errorf("unsupported candle interval %q", interval)
}

func (b *BinanceSpot) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	period, err := klinePeriod(interval)
	if err != nil {
		return nil, err
	}
	pair, err := symbolPair(symbol)
	if err != nil {
		return nil, err
	}

	klines, err := b.exchange.GetKlineRecords(pair, period, limit, goex.OptionalParameter{})
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, model.Candle{
			OpenTime: time.Unix(k.Timestamp, 0).UTC(),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Vol,
		})
	}
	return candles, nil
}

func (b *BinanceSpot) PlaceLimitOrder(ctx context.Context, userID uint, req model.SpotOrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pair := currencyPair(req.Base, req.Quote)
	amount, price := formatFloat(req.Quantity), formatFloat(req.LimitPrice)

	log := b.log.WithFields(logger.Fields{
		"user_id":         userID,
		"symbol":          req.Symbol,
		"side":            req.Side,
		"quantity":        amount,
		"price":           price,
		"client_order_id": req.ClientOrderID,
	})

	var (
		order *goex.Order
		err   error
	)
	switch req.Side {
	case model.SideBuy:
		order, err = b.exchange.LimitBuy(amount, price, pair)
	case model.SideSell:
		order, err = b.exchange.LimitSell(amount, price, pair)
	default:
		return "", fmt.Errorf("unsupported side %q", req.Side)
	}
	if err != nil {
		log.WithError(err).Error("binance limit order failed")
		return "", err
	}

	log.WithField("order_id", order.OrderID2).Info("binance limit order placed")
	return order.OrderID2, nil
}

func (b *BinanceSpot) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pair, err := symbolPair(symbol)
	if err != nil {
		return err
	}
	ok, err := b.exchange.CancelOrder(orderID, pair)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("binance refused to cancel order %s", orderID)
	}
	return nil
}

func (b *BinanceSpot) FetchOpenOrders(ctx context.Context, symbol string) ([]model.ExchangeOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := symbolPair(symbol)
	if err != nil {
		return nil, err
	}
	orders, err := b.exchange.GetUnfinishOrders(pair)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExchangeOrder, 0, len(orders))
	for i := range orders {
		out = append(out, exchangeOrder(symbol, &orders[i]))
	}
	return out, nil
}

func (b *BinanceSpot) FetchOrder(ctx context.Context, symbol, orderID string) (*model.ExchangeOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pair, err := symbolPair(symbol)
	if err != nil {
		return nil, err
	}
	order, err := b.exchange.GetOneOrder(orderID, pair)
	if err != nil {
		return nil, err
	}
	out := exchangeOrder(symbol, order)
	return &out, nil
}

func exchangeOrder(symbol string, o *goex.Order) model.ExchangeOrder {
	side := model.SideBuy
	if o.Side == goex.SELL || o.Side == goex.SELL_MARKET {
		side = model.SideSell
	}
	return model.ExchangeOrder{
		OrderID:      o.OrderID2,
		Symbol:       symbol,
		Side:         side,
		Price:        o.Price,
		Quantity:     o.Amount,
		FilledQty:    o.DealAmount,
		Status:       orderStatus(o.Status),
		CreatedMilli: int64(o.OrderTime),
	}
}

func orderStatus(s goex.TradeStatus) string {
	switch s {
	case goex.ORDER_PART_FINISH:
		return model.ExchangeOrderStatusPartiallyFilled
	case goex.ORDER_FINISH:
		return model.ExchangeOrderStatusFilled
	case goex.ORDER_CANCEL, goex.ORDER_CANCEL_ING:
		return model.ExchangeOrderStatusCanceled
	case goex.ORDER_REJECT, goex.ORDER_FAIL:
		return model.ExchangeOrderStatusRejected
	}
	return model.ExchangeOrderStatusNew
}
