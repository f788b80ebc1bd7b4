package model

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// MinPriceDivergence is the smallest tolerance an intent may request.
const MinPriceDivergence = 0.0001

// TradeIntent is an abstract trade proposed by the upstream decision maker.
// The futures-only fields are ignored for spot execution.
type TradeIntent struct {
	Pair               string   `json:"pair" yaml:"pair"`
	Token              string   `json:"token" yaml:"token"`
	Side               string   `json:"side" yaml:"side"`
	Quantity           float64  `json:"quantity" yaml:"quantity"`
	BasePrice          float64  `json:"base_price" yaml:"base_price"`
	LimitPrice         *float64 `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
	MaxPriceDivergence float64  `json:"max_price_divergence" yaml:"max_price_divergence"`

	PositionSide string   `json:"position_side,omitempty" yaml:"position_side,omitempty"`
	StopLoss     float64  `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	TakeProfit   float64  `json:"take_profit,omitempty" yaml:"take_profit,omitempty"`
	Leverage     *float64 `json:"leverage,omitempty" yaml:"leverage,omitempty"`
	OrderType    string   `json:"order_type,omitempty" yaml:"order_type,omitempty"`
	ReduceOnly   bool     `json:"reduce_only,omitempty" yaml:"reduce_only,omitempty"`
}

// NormalizedOrder is an exchange-compliant order derived from a TradeIntent.
type NormalizedOrder struct {
	Symbol    string  `json:"symbol"`
	Base      string  `json:"base"`
	Quote     string  `json:"quote"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	LivePrice float64 `json:"live_price"`
}

// Notional returns quantity×price in quote terms.
func (o NormalizedOrder) Notional() float64 {
	return o.Quantity * o.Price
}

// NormalizedFuturesOrder extends a NormalizedOrder with the bracket and leverage settings.
type NormalizedFuturesOrder struct {
	NormalizedOrder
	PositionSide string  `json:"position_side"`
	OrderType    string  `json:"order_type"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	Leverage     int     `json:"leverage,omitempty"`
	ReduceOnly   bool    `json:"reduce_only"`
}
