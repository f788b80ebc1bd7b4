package connectors

import (
	"fmt"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// NewVenue builds the capability sets of the configured exchange.
func NewVenue(cfg Config, log *logger.Entry) (*Venue, error) {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	switch strings.ToLower(strings.TrimSpace(cfg.TargetExchange)) {
	case ExchangeBinance:
		spot := NewBinanceSpot(cfg, log)
		futures := NewBinanceFutures(cfg, log)
		return &Venue{
			Exchange:      ExchangeBinance,
			SpotMarket:    spot,
			MarketData:    spot,
			Spot:          spot,
			FuturesMarket: futures,
			Futures:       futures,
		}, nil
	case ExchangeBybit:
		bybit := NewBybitFutures(cfg, log)
		return &Venue{
			Exchange:      ExchangeBybit,
			MarketData:    bybit,
			FuturesMarket: bybit,
			Futures:       bybit,
		}, nil
	}
	return nil, fmt.Errorf("unsupported exchange %q", cfg.TargetExchange)
}
