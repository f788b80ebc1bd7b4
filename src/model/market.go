package model

import "time"

// Candle intervals requested from the market-data collaborator.
const (
	Interval1h = "1h"
	Interval4h = "4h"
	Interval1d = "1d"
	Interval1w = "1w"
)

// ExchangePairInfo is the per-pair trading metadata published by an exchange.
// Precisions are expressed as a number of decimal places.
type ExchangePairInfo struct {
	Symbol            string  `json:"symbol"`
	BaseAsset         string  `json:"base_asset"`
	QuoteAsset        string  `json:"quote_asset"`
	QuantityPrecision int     `json:"quantity_precision"`
	PricePrecision    int     `json:"price_precision"`
	MinNotional       float64 `json:"min_notional"`
}

type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// OrderBookTop is the best bid/ask level of an order book snapshot.
type OrderBookTop struct {
	BidPrice float64 `json:"bid_price"`
	BidQty   float64 `json:"bid_qty"`
	AskPrice float64 `json:"ask_price"`
	AskQty   float64 `json:"ask_qty"`
}

// Closes extracts the close prices of a candle series, oldest first.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Volumes extracts the traded volumes of a candle series, oldest first.
func Volumes(candles []Candle) []float64 {
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	return volumes
}
