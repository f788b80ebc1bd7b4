package overview

import (
	"context"
	"strings"

	"portfolioexecutor/src/model"
)

// MarketData is the market-data collaborator consumed by the engine.
type MarketData interface {
	FetchTicker(ctx context.Context, symbol string) (float64, error)
	FetchOrderBookTop(ctx context.Context, symbol string) (*model.OrderBookTop, error)
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
}

// PairResolver maps a token/quote pair onto the exchange symbol.
type PairResolver interface {
	Get(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error)
}

func resolveSymbol(ctx context.Context, pairs PairResolver, token, quote string) (string, error) {
	if pairs == nil {
		return strings.ToUpper(token + quote), nil
	}
	info, err := pairs.Get(ctx, token, quote)
	if err != nil {
		return "", err
	}
	return info.Symbol, nil
}
