package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

const defaultBinanceFuturesURL = "https://fapi.binance.com"

// BinanceFutures is a USDⓈ-M futures client. Signed endpoints carry timestamp,
// recvWindow and an HMAC-SHA256 signature of the query string.
type BinanceFutures struct {
	apiKey     string
	apiSecret  string
	recvWindow time.Duration
	hedgeMode  bool
	http       *resty.Client
	trade      *resty.Client
	log        *logger.Entry
	now        func() time.Time
}

func NewBinanceFutures(cfg Config, log *logger.Entry) *BinanceFutures {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &BinanceFutures{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		hedgeMode:  cfg.BinanceHedgeMode,
		http:       newRESTClient(cfg.BinanceFuturesURL, defaultBinanceFuturesURL, cfg.HTTPTimeout),
		trade:      newTradeClient(cfg.BinanceFuturesURL, defaultBinanceFuturesURL, cfg.HTTPTimeout),
		log:        log.WithField("exchange", "binance_futures"),
		now:        time.Now,
	}
}

func (c *BinanceFutures) doPublic(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, false, out)
}

func (c *BinanceFutures) doSigned(ctx context.Context, method, path string, params url.Values, out any) error {
	return c.do(ctx, method, path, params, true, out)
}

func (c *BinanceFutures) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	client := c.http
	if method != http.MethodGet {
		client = c.trade
	}
	req := client.R().SetContext(ctx).SetHeader("Accept", "application/json")

	query := params.Encode()
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		}
		query = params.Encode()
		query += "&signature=" + hmacSHA256Hex(c.apiSecret, query)
		req = req.SetHeader("X-MBX-APIKEY", c.apiKey)
	}
	if query != "" {
		req = req.SetQueryString(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("binance futures %s %s: %w", method, path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return binanceError("binance_futures", resp.StatusCode(), resp.Body())
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("json unmarshal failed: %w. raw=%s", err, string(resp.Body()))
		}
	}
	return nil
}

// FetchMarket looks the perpetual contract up in /fapi/v1/exchangeInfo.
func (c *BinanceFutures) FetchMarket(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error) {
	var parsed binanceExchangeInfo
	if err := c.doPublic(ctx, "/fapi/v1/exchangeInfo", nil, &parsed); err != nil {
		return nil, err
	}
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	for _, s := range parsed.Symbols {
		if s.BaseAsset == base && s.QuoteAsset == quote && (s.ContractType == "" || s.ContractType == "PERPETUAL") {
			return s.pairInfo(), nil
		}
	}
	return nil, fmt.Errorf("binance futures: no perpetual contract for %s/%s", base, quote)
}

func (c *BinanceFutures) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	var parsed struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.doPublic(ctx, "/fapi/v1/ticker/price", url.Values{"symbol": {symbol}}, &parsed); err != nil {
		return 0, err
	}
	return parseFloat(parsed.Price), nil
}

func (c *BinanceFutures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{
		"symbol":   {symbol},
		"leverage": {strconv.Itoa(leverage)},
	}
	return c.doSigned(ctx, http.MethodPost, "/fapi/v1/leverage", params, nil)
}

type binanceOrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
}

func (c *BinanceFutures) placeOrder(ctx context.Context, params url.Values) (*binanceOrderResponse, string, error) {
	var raw json.RawMessage
	if err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params, &raw); err != nil {
		return nil, "", err
	}
	var parsed binanceOrderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, "", fmt.Errorf("decode binance order: %w", err)
	}
	return &parsed, string(raw), nil
}

// orderByClientID looks an order up by the client id it was submitted with.
func (c *BinanceFutures) orderByClientID(ctx context.Context, symbol, clientID string) (*binanceOrderResponse, string, error) {
	var raw json.RawMessage
	params := url.Values{"symbol": {symbol}, "origClientOrderId": {clientID}}
	if err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/order", params, &raw); err != nil {
		return nil, "", err
	}
	var parsed binanceOrderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, "", fmt.Errorf("decode binance order: %w", err)
	}
	if parsed.OrderID == 0 {
		return nil, "", fmt.Errorf("binance futures: no order for client id %s", clientID)
	}
	return &parsed, string(raw), nil
}

// OpenPosition places the entry. In hedge mode positionSide carries the reduce intent and
// reduceOnly is not sent, since Binance rejects it there.
func (c *BinanceFutures) OpenPosition(ctx context.Context, req model.FuturesOrderRequest) (*model.FuturesOrderResponse, error) {
	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = newClientOrderID("pe-")
	}
	params := url.Values{
		"symbol":           {req.Symbol},
		"side":             {req.Side},
		"type":             {req.OrderType},
		"quantity":         {formatFloat(req.Quantity)},
		"newClientOrderId": {clientID},
		"newOrderRespType": {"RESULT"},
	}
	if c.hedgeMode {
		params.Set("positionSide", req.PositionSide)
	} else if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.OrderType == model.OrderTypeLimit {
		params.Set("price", formatFloat(req.Price))
		params.Set("timeInForce", "GTC")
	}

	parsed, raw, err := c.placeOrder(ctx, params)
	if err != nil {
		if !outcomeUnknown(err) {
			return nil, err
		}
		// The order may be live; only the exchange can tell.
		found, foundRaw, lookupErr := c.orderByClientID(ctx, req.Symbol, clientID)
		if lookupErr != nil {
			c.log.WithFields(logger.Fields{"symbol": req.Symbol, "client_order_id": clientID}).
				WithError(lookupErr).Error("binance futures entry outcome unknown")
			return nil, fmt.Errorf("%w (lookup by client id failed: %v)", err, lookupErr)
		}
		c.log.WithFields(logger.Fields{"symbol": req.Symbol, "client_order_id": clientID}).
			WithError(err).Warn("binance futures entry recovered by client id")
		parsed, raw = found, foundRaw
	}

	c.log.WithFields(logger.Fields{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.OrderType,
		"order_id": parsed.OrderID,
		"status":   parsed.Status,
	}).Info("binance futures entry placed")

	return &model.FuturesOrderResponse{
		OrderID: strconv.FormatInt(parsed.OrderID, 10),
		Status:  strings.ToLower(parsed.Status),
		Filled:  parsed.Status == "FILLED",
		Raw:     raw,
	}, nil
}

func (c *BinanceFutures) protective(ctx context.Context, orderType string, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	params := url.Values{
		"symbol":        {req.Symbol},
		"side":          {closingSide(req.PositionSide)},
		"type":          {orderType},
		"stopPrice":     {formatFloat(req.TriggerPrice)},
		"closePosition": {"true"},
		"workingType":   {"MARK_PRICE"},
	}
	if c.hedgeMode {
		params.Set("positionSide", req.PositionSide)
	}
	parsed, raw, err := c.placeOrder(ctx, params)
	if err != nil {
		return nil, err
	}
	return &model.ProtectiveOrderResponse{OrderID: strconv.FormatInt(parsed.OrderID, 10), Raw: raw}, nil
}

func (c *BinanceFutures) SetStopLoss(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	return c.protective(ctx, "STOP_MARKET", req)
}

func (c *BinanceFutures) SetTakeProfit(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	return c.protective(ctx, "TAKE_PROFIT_MARKET", req)
}

func (c *BinanceFutures) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	return c.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", params, nil)
}
