// model/execution_record.go
package model

import "time"

// ExecutionRecord statuses. A record is created as open (or filled for an immediate
// futures fill) when the gateway accepted the order, and as canceled otherwise.
const (
	ExecutionStatusOpen     = "open"
	ExecutionStatusFilled   = "filled"
	ExecutionStatusCanceled = "canceled"
)

const (
	MarketSpot    = "spot"
	MarketFutures = "futures"
)

// ExecutionRecord is the append-only audit row written for every intent of a review cycle.
// Only Status and CancellationReason are ever changed after creation, and never by this service.
type ExecutionRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID         uint `gorm:"index" json:"user_id"`
	WorkflowID     uint `gorm:"index" json:"workflow_id"`
	ReviewResultID uint `gorm:"index" json:"review_result_id"`

	Exchange        string `gorm:"size:50" json:"exchange"`
	Market          string `gorm:"size:20" json:"market"` // spot | futures
	Symbol          string `gorm:"size:100" json:"symbol"`
	ExchangeOrderID string `gorm:"size:255;not null" json:"exchange_order_id"` // gateway id, or rejected-<ts> for rejects

	Status             string  `gorm:"size:20;not null" json:"status"` // see ExecutionStatus* constants
	PlannedJSON        string  `gorm:"column:planned_json;type:text" json:"planned_json"`
	CancellationReason *string `gorm:"size:1024" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for execution records.
func (ExecutionRecord) TableName() string {
	return "execution_records"
}

// Adjustment documents one change the normalizer applied to an intent.
type Adjustment struct {
	Kind   string  `json:"kind"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Note   string  `json:"note,omitempty"`
}

// ExecutionPlan is serialized into ExecutionRecord.PlannedJSON: the full decision
// plus everything that happened to it on the way to the exchange.
type ExecutionPlan struct {
	Intent       TradeIntent              `json:"intent"`
	LivePrice    float64                  `json:"live_price,omitempty"`
	PairInfo     *ExchangePairInfo        `json:"pair_info,omitempty"`
	Order        *NormalizedOrder         `json:"order,omitempty"`
	FuturesOrder *NormalizedFuturesOrder  `json:"futures_order,omitempty"`
	Adjustments  []Adjustment             `json:"adjustments,omitempty"`
	Rejection    *PlanRejection           `json:"rejection,omitempty"`
	GatewayError string                   `json:"gateway_error,omitempty"`
	Leverage     *LeverageOutcome         `json:"leverage,omitempty"`
	Entry        *FuturesOrderResponse    `json:"entry,omitempty"`
	StopLoss     *ProtectiveOrderResponse `json:"stop_loss,omitempty"`
	TakeProfit   *ProtectiveOrderResponse `json:"take_profit,omitempty"`
	Protective   []string                 `json:"protective_errors,omitempty"`
}

type PlanRejection struct {
	Kind    string   `json:"kind"`
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

type LeverageOutcome struct {
	Requested int    `json:"requested"`
	Applied   bool   `json:"applied"`
	Error     string `json:"error,omitempty"`
}
