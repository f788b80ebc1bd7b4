package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

const (
	defaultBybitURL = "https://api.bybit.com"
	bybitCategory   = "linear"

	// bybitLeverageNotModified is returned when the requested leverage is already set.
	bybitLeverageNotModified = 110043
)

type bybitResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// BybitFutures is a v5 linear perpetual client covering market data and futures trading.
// Requests are signed with HMAC-SHA256 over timestamp+apiKey+recvWindow+payload.
type BybitFutures struct {
	apiKey     string
	apiSecret  string
	recvWindow time.Duration
	hedgeMode  bool
	http       *resty.Client
	trade      *resty.Client
	log        *logger.Entry
	now        func() time.Time
}

func NewBybitFutures(cfg Config, log *logger.Entry) *BybitFutures {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &BybitFutures{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		hedgeMode:  cfg.BybitHedgeMode,
		http:       newRESTClient(cfg.BybitURL, defaultBybitURL, cfg.HTTPTimeout),
		trade:      newTradeClient(cfg.BybitURL, defaultBybitURL, cfg.HTTPTimeout),
		log:        log.WithField("exchange", "bybit"),
		now:        time.Now,
	}
}

func (c *BybitFutures) sign(timestamp, payload string) string {
	return hmacSHA256Hex(c.apiSecret, timestamp+c.apiKey+strconv.FormatInt(c.recvWindow.Milliseconds(), 10)+payload)
}

func (c *BybitFutures) get(ctx context.Context, path string, params url.Values, signed bool, out any) error {
	query := params.Encode()
	req := c.http.R().SetContext(ctx)
	if signed {
		c.authenticate(req, query)
	}
	if query != "" {
		req = req.SetQueryString(query)
	}
	return c.execute(req, http.MethodGet, path, out)
}

func (c *BybitFutures) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req := c.trade.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	c.authenticate(req, string(payload))
	return c.execute(req, http.MethodPost, path, out)
}

func (c *BybitFutures) authenticate(req *resty.Request, payload string) {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	req.SetHeader("X-BAPI-API-KEY", c.apiKey).
		SetHeader("X-BAPI-TIMESTAMP", ts).
		SetHeader("X-BAPI-RECV-WINDOW", strconv.FormatInt(c.recvWindow.Milliseconds(), 10)).
		SetHeader("X-BAPI-SIGN", c.sign(ts, payload))
}

func (c *BybitFutures) execute(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("bybit %s %s: %w", method, path, err)
	}
	raw := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return &ExchangeError{Exchange: "bybit", Code: strconv.Itoa(resp.StatusCode()), Message: string(raw), HTTPStatus: resp.StatusCode()}
	}

	var base bybitResponse
	if err := json.Unmarshal(raw, &base); err != nil {
		return fmt.Errorf("json unmarshal failed: %w. raw=%s", err, string(raw))
	}
	if base.RetCode != 0 {
		return &ExchangeError{Exchange: "bybit", Code: strconv.Itoa(base.RetCode), Message: base.RetMsg, HTTPStatus: resp.StatusCode()}
	}
	if out != nil && len(base.Result) > 0 {
		if err := json.Unmarshal(base.Result, out); err != nil {
			return fmt.Errorf("json unmarshal result failed: %w. raw=%s", err, string(raw))
		}
	}
	return nil
}

func (c *BybitFutures) FetchMarket(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error) {
	symbol := strings.ToUpper(base + quote)
	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			BaseCoin    string `json:"baseCoin"`
			QuoteCoin   string `json:"quoteCoin"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep          string `json:"qtyStep"`
				MinNotionalValue string `json:"minNotionalValue"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	params := url.Values{"category": {bybitCategory}, "symbol": {symbol}}
	if err := c.get(ctx, "/v5/market/instruments-info", params, false, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("bybit: symbol %s not listed", symbol)
	}
	s := result.List[0]
	return &model.ExchangePairInfo{
		Symbol:            s.Symbol,
		BaseAsset:         s.BaseCoin,
		QuoteAsset:        s.QuoteCoin,
		PricePrecision:    precisionFromStep(s.PriceFilter.TickSize),
		QuantityPrecision: precisionFromStep(s.LotSizeFilter.QtyStep),
		MinNotional:       parseFloat(s.LotSizeFilter.MinNotionalValue),
	}, nil
}

func (c *BybitFutures) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	var result struct {
		List []struct {
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	params := url.Values{"category": {bybitCategory}, "symbol": {symbol}}
	if err := c.get(ctx, "/v5/market/tickers", params, false, &result); err != nil {
		return 0, err
	}
	if len(result.List) == 0 {
		return 0, fmt.Errorf("bybit: no ticker for %s", symbol)
	}
	return parseFloat(result.List[0].LastPrice), nil
}

func (c *BybitFutures) FetchOrderBookTop(ctx context.Context, symbol string) (*model.OrderBookTop, error) {
	var result struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	}
	params := url.Values{"category": {bybitCategory}, "symbol": {symbol}, "limit": {"1"}}
	if err := c.get(ctx, "/v5/market/orderbook", params, false, &result); err != nil {
		return nil, err
	}
	top := &model.OrderBookTop{}
	if len(result.Bids) > 0 && len(result.Bids[0]) >= 2 {
		top.BidPrice, top.BidQty = parseFloat(result.Bids[0][0]), parseFloat(result.Bids[0][1])
	}
	if len(result.Asks) > 0 && len(result.Asks[0]) >= 2 {
		top.AskPrice, top.AskQty = parseFloat(result.Asks[0][0]), parseFloat(result.Asks[0][1])
	}
	return top, nil
}

func bybitInterval(interval string) (string, error) {
	switch interval {
	case model.Interval1h:
		return "60", nil
	case model.Interval4h:
		return "240", nil
	case model.Interval1d:
		return "D", nil
	case model.Interval1w:
		return "W", nil
	}
	return "", fmt.Errorf("unsupported candle interval %q", interval)
}

// FetchCandles returns candles oldest first; Bybit lists them newest first.
func (c *BybitFutures) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	bi, err := bybitInterval(interval)
	if err != nil {
		return nil, err
	}
	var result struct {
		List [][]string `json:"list"`
	}
	params := url.Values{
		"category": {bybitCategory},
		"symbol":   {symbol},
		"interval": {bi},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, "/v5/market/kline", params, false, &result); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(result.List))
	for _, row := range result.List {
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		candles = append(candles, model.Candle{
			OpenTime: time.UnixMilli(ms).UTC(),
			Open:     parseFloat(row[1]),
			High:     parseFloat(row[2]),
			Low:      parseFloat(row[3]),
			Close:    parseFloat(row[4]),
			Volume:   parseFloat(row[5]),
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime.Before(candles[j].OpenTime) })
	return candles, nil
}

// positionIdx is 0 in one-way mode, 1 for long and 2 for short in hedge mode.
func (c *BybitFutures) positionIdx(positionSide string) int {
	if !c.hedgeMode {
		return 0
	}
	if positionSide == model.PositionSideShort {
		return 2
	}
	return 1
}

func bybitSide(side string) string {
	if side == model.SideSell {
		return "Sell"
	}
	return "Buy"
}

func (c *BybitFutures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	err := c.post(ctx, "/v5/position/set-leverage", map[string]any{
		"category":     bybitCategory,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}, nil)
	var exErr *ExchangeError
	if errors.As(err, &exErr) && exErr.Code == strconv.Itoa(bybitLeverageNotModified) {
		return nil
	}
	return err
}

func (c *BybitFutures) OpenPosition(ctx context.Context, req model.FuturesOrderRequest) (*model.FuturesOrderResponse, error) {
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = newClientOrderID("pe-")
	}
	orderType := "Market"
	body := map[string]any{
		"category":    bybitCategory,
		"symbol":      req.Symbol,
		"side":        bybitSide(req.Side),
		"qty":         formatFloat(req.Quantity),
		"positionIdx": c.positionIdx(req.PositionSide),
		"reduceOnly":  req.ReduceOnly,
		"orderLinkId": clientID,
	}
	if req.OrderType == model.OrderTypeLimit {
		orderType = "Limit"
		body["price"] = formatFloat(req.Price)
		body["timeInForce"] = "GTC"
	}
	body["orderType"] = orderType

	var result bybitOrder
	status := model.ExchangeOrderStatusNew
	if err := c.post(ctx, "/v5/order/create", body, &result); err != nil {
		if !outcomeUnknown(err) {
			return nil, err
		}
		// The order may be live; only the exchange can tell.
		found, lookupErr := c.orderByLinkID(ctx, req.Symbol, clientID)
		if lookupErr != nil {
			c.log.WithFields(logger.Fields{"symbol": req.Symbol, "order_link_id": clientID}).
				WithError(lookupErr).Error("bybit entry outcome unknown")
			return nil, fmt.Errorf("%w (lookup by client id failed: %v)", err, lookupErr)
		}
		c.log.WithFields(logger.Fields{"symbol": req.Symbol, "order_link_id": clientID}).
			WithError(err).Warn("bybit entry recovered by client id")
		result = *found
		status = bybitOrderStatus(found.OrderStatus)
	}

	c.log.WithFields(logger.Fields{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     orderType,
		"order_id": result.OrderID,
	}).Info("bybit entry placed")

	raw, _ := json.Marshal(result)
	return &model.FuturesOrderResponse{
		OrderID: result.OrderID,
		Status:  status,
		Filled:  status == model.ExchangeOrderStatusFilled,
		Raw:     string(raw),
	}, nil
}

type bybitOrder struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	OrderStatus string `json:"orderStatus,omitempty"`
}

// orderByLinkID looks an order up by the orderLinkId it was submitted with.
func (c *BybitFutures) orderByLinkID(ctx context.Context, symbol, linkID string) (*bybitOrder, error) {
	var result struct {
		List []bybitOrder `json:"list"`
	}
	params := url.Values{"category": {bybitCategory}, "symbol": {symbol}, "orderLinkId": {linkID}}
	if err := c.get(ctx, "/v5/order/realtime", params, true, &result); err != nil {
		return nil, err
	}
	for i := range result.List {
		if result.List[i].OrderLinkID == linkID {
			return &result.List[i], nil
		}
	}
	return nil, fmt.Errorf("bybit: no order for orderLinkId %s", linkID)
}

func bybitOrderStatus(status string) string {
	switch status {
	case "Filled":
		return model.ExchangeOrderStatusFilled
	case "PartiallyFilled":
		return model.ExchangeOrderStatusPartiallyFilled
	case "Cancelled", "Deactivated":
		return model.ExchangeOrderStatusCanceled
	case "Rejected":
		return model.ExchangeOrderStatusRejected
	default:
		return model.ExchangeOrderStatusNew
	}
}

func (c *BybitFutures) tradingStop(ctx context.Context, field string, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	body := map[string]any{
		"category":    bybitCategory,
		"symbol":      req.Symbol,
		"positionIdx": c.positionIdx(req.PositionSide),
		"tpslMode":    "Full",
		field:         formatFloat(req.TriggerPrice),
	}
	var result json.RawMessage
	if err := c.post(ctx, "/v5/position/trading-stop", body, &result); err != nil {
		return nil, err
	}
	return &model.ProtectiveOrderResponse{Raw: string(result)}, nil
}

func (c *BybitFutures) SetStopLoss(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	return c.tradingStop(ctx, "stopLoss", req)
}

func (c *BybitFutures) SetTakeProfit(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	return c.tradingStop(ctx, "takeProfit", req)
}

func (c *BybitFutures) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return c.post(ctx, "/v5/order/cancel", map[string]any{
		"category": bybitCategory,
		"symbol":   symbol,
		"orderId":  orderID,
	}, nil)
}
