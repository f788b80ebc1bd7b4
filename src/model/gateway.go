package model

// Order states reported by a gateway for a single exchange order.
const (
	ExchangeOrderStatusNew             = "new"
	ExchangeOrderStatusPartiallyFilled = "partially_filled"
	ExchangeOrderStatusFilled          = "filled"
	ExchangeOrderStatusCanceled        = "canceled"
	ExchangeOrderStatusRejected        = "rejected"
)

type SpotOrderRequest struct {
	Symbol        string  `json:"symbol"`
	Base          string  `json:"base"`
	Quote         string  `json:"quote"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	LimitPrice    float64 `json:"limit_price"`
	ClientOrderID string  `json:"client_order_id"`
}

type FuturesOrderRequest struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	PositionSide  string  `json:"position_side"`
	OrderType     string  `json:"order_type"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price,omitempty"`
	ReduceOnly    bool    `json:"reduce_only"`
	ClientOrderID string  `json:"client_order_id"`
}

// FuturesOrderResponse is the gateway view of an accepted futures entry.
type FuturesOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Filled  bool   `json:"filled"`
	Raw     string `json:"raw,omitempty"`
}

type ProtectiveOrderRequest struct {
	Symbol       string  `json:"symbol"`
	PositionSide string  `json:"position_side"`
	TriggerPrice float64 `json:"trigger_price"`
	Quantity     float64 `json:"quantity"`
}

type ProtectiveOrderResponse struct {
	OrderID string `json:"order_id,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// ExchangeOrder is a normalized snapshot of an order living on an exchange.
type ExchangeOrder struct {
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	Quantity     float64 `json:"quantity"`
	FilledQty    float64 `json:"filled_qty"`
	Status       string  `json:"status"`
	CreatedMilli int64   `json:"created_milli,omitempty"`
}
