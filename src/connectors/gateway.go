package connectors

import (
	"context"

	"portfolioexecutor/src/model"
)

// MarketGateway resolves pair metadata and live prices.
type MarketGateway interface {
	FetchMarket(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error)
	FetchTicker(ctx context.Context, symbol string) (float64, error)
}

// MarketDataGateway serves the inputs of the market overview.
type MarketDataGateway interface {
	FetchOrderBookTop(ctx context.Context, symbol string) (*model.OrderBookTop, error)
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
}

type OrderCanceler interface {
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

type SpotGateway interface {
	OrderCanceler
	PlaceLimitOrder(ctx context.Context, userID uint, req model.SpotOrderRequest) (string, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]model.ExchangeOrder, error)
	FetchOrder(ctx context.Context, symbol, orderID string) (*model.ExchangeOrder, error)
}

type FuturesGateway interface {
	OrderCanceler
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	OpenPosition(ctx context.Context, req model.FuturesOrderRequest) (*model.FuturesOrderResponse, error)
	SetStopLoss(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error)
	SetTakeProfit(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error)
}

// Venue bundles the capability sets one exchange offers. A nil capability is unsupported.
type Venue struct {
	Exchange string

	SpotMarket MarketGateway
	MarketData MarketDataGateway
	Spot       SpotGateway

	FuturesMarket MarketGateway
	Futures       FuturesGateway
}

// Market returns the metadata gateway of a market, or nil.
func (v *Venue) Market(market string) MarketGateway {
	if market == model.MarketFutures {
		return v.FuturesMarket
	}
	return v.SpotMarket
}

// Canceler returns the gateway able to cancel orders of a market, or nil.
func (v *Venue) Canceler(market string) OrderCanceler {
	if market == model.MarketFutures {
		if v.Futures == nil {
			return nil
		}
		return v.Futures
	}
	if v.Spot == nil {
		return nil
	}
	return v.Spot
}
