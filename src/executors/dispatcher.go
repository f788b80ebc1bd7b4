package executors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/metadata"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/normalizer"
)

const (
	serviceName = "portfolio-executor"
	moduleName  = "executors"

	reasonNoOrderID = "gateway returned no order id"
)

// RecordStore is the append-only sink for execution records.
type RecordStore interface {
	Create(ctx context.Context, record *model.ExecutionRecord) error
}

// Cycle is one review cycle: the intents decided for a workflow review.
type Cycle struct {
	UserID         uint                `json:"user_id" yaml:"user_id"`
	WorkflowID     uint                `json:"workflow_id" yaml:"workflow_id"`
	ReviewResultID uint                `json:"review_result_id" yaml:"review_result_id"`
	Market         string              `json:"market" yaml:"market"`
	Intents        []model.TradeIntent `json:"intents" yaml:"intents"`
}

// BatchSummary aggregates the outcome of one dispatched batch.
type BatchSummary struct {
	Attempt            int                     `json:"attempt"`
	Placed             int                     `json:"placed"`
	Canceled           int                     `json:"canceled"`
	DivergenceCanceled int                     `json:"divergence_canceled"`
	Records            []model.ExecutionRecord `json:"records"`
}

// RetryWarranted reports whether every order of a non-empty batch was
// canceled for price divergence and none was placed.
func (s *BatchSummary) RetryWarranted() bool {
	return s.Placed == 0 && s.DivergenceCanceled > 0 && s.DivergenceCanceled == s.Canceled
}

// DecideFunc produces a fresh cycle decision for the given attempt.
type DecideFunc func(ctx context.Context, attempt int) (*Cycle, error)

// Dispatcher normalizes intents, sends them to the exchange and records every outcome.
type Dispatcher struct {
	venue      *connectors.Venue
	spot       *normalizer.Normalizer
	futures    *normalizer.Normalizer
	records    RecordStore
	exceptions ExceptionStore
	log        *logger.Entry
	now        func() time.Time
	clientID   func() string
}

func NewDispatcher(venue *connectors.Venue, records RecordStore, exceptions ExceptionStore, log *logger.Entry) *Dispatcher {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	log = log.WithFields(logger.Fields{"component": "dispatcher", "exchange": venue.Exchange})

	d := &Dispatcher{
		venue:      venue,
		records:    records,
		exceptions: exceptions,
		log:        log,
		now:        time.Now,
		clientID:   func() string { return "pe-" + uuid.NewString()[:18] },
	}
	if venue.SpotMarket != nil {
		d.spot = normalizer.New(metadata.NewCache(venue.SpotMarket, log), venue.SpotMarket, log)
	}
	if venue.FuturesMarket != nil {
		d.futures = normalizer.New(metadata.NewCache(venue.FuturesMarket, log), venue.FuturesMarket, log)
	}
	return d
}

// WithRepairPolicy sets the min-notional repair policy of both normalizers.
func (d *Dispatcher) WithRepairPolicy(policy normalizer.RepairPolicy) *Dispatcher {
	if d.spot != nil {
		d.spot.WithRepairPolicy(policy)
	}
	if d.futures != nil {
		d.futures.WithRepairPolicy(policy)
	}
	return d
}

// RunCycle dispatches a cycle and, when every order was divergence-canceled,
// asks decide for a new decision and dispatches it exactly once more.
func (d *Dispatcher) RunCycle(ctx context.Context, cycle *Cycle, decide DecideFunc) ([]*BatchSummary, error) {
	first, err := d.RunBatch(ctx, cycle, 0)
	if err != nil {
		return []*BatchSummary{first}, err
	}
	summaries := []*BatchSummary{first}

	if decide == nil || !first.RetryWarranted() {
		return summaries, nil
	}

	d.log.WithFields(logger.Fields{
		"workflow_id":      cycle.WorkflowID,
		"review_result_id": cycle.ReviewResultID,
		"divergence":       first.DivergenceCanceled,
	}).Warn("All orders canceled by price divergence, retrying decision once")

	next, err := decide(ctx, 1)
	if err != nil {
		return summaries, fmt.Errorf("retry decision: %w", err)
	}
	if next == nil {
		return summaries, nil
	}

	second, err := d.RunBatch(ctx, next, 1)
	summaries = append(summaries, second)
	return summaries, err
}

// RunBatch dispatches every intent of the cycle in order. Business rejections and
// gateway failures become canceled records; only a persistence failure stops the batch.
func (d *Dispatcher) RunBatch(ctx context.Context, cycle *Cycle, attempt int) (*BatchSummary, error) {
	summary := &BatchSummary{Attempt: attempt}
	log := d.log.WithFields(logger.Fields{
		"user_id":          cycle.UserID,
		"workflow_id":      cycle.WorkflowID,
		"review_result_id": cycle.ReviewResultID,
		"market":           cycle.Market,
		"attempt":          attempt,
	})

	for i, intent := range cycle.Intents {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		record, divergence := d.dispatch(ctx, cycle, i, intent, log)

		if err := d.records.Create(ctx, record); err != nil {
			Capture(ctx, d.exceptions, serviceName, moduleName, "records.Create", "error", err, map[string]interface{}{
				"workflow_id":       cycle.WorkflowID,
				"review_result_id":  cycle.ReviewResultID,
				"symbol":            record.Symbol,
				"exchange_order_id": record.ExchangeOrderID,
				"status":            record.Status,
			})
			return summary, fmt.Errorf("persist execution record %d: %w", i, err)
		}

		summary.Records = append(summary.Records, *record)
		if record.Status == model.ExecutionStatusCanceled {
			summary.Canceled++
			if divergence {
				summary.DivergenceCanceled++
			}
		} else {
			summary.Placed++
		}
	}

	log.WithFields(logger.Fields{
		"placed":     summary.Placed,
		"canceled":   summary.Canceled,
		"divergence": summary.DivergenceCanceled,
	}).Info("Batch dispatched")

	return summary, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, cycle *Cycle, index int, intent model.TradeIntent, log *logger.Entry) (*model.ExecutionRecord, bool) {
	record := &model.ExecutionRecord{
		UserID:         cycle.UserID,
		WorkflowID:     cycle.WorkflowID,
		ReviewResultID: cycle.ReviewResultID,
		Exchange:       d.venue.Exchange,
		Market:         cycle.Market,
		Symbol:         intent.Pair,
	}
	plan := &model.ExecutionPlan{Intent: intent}
	log = log.WithFields(logger.Fields{"index": index, "pair": intent.Pair, "side": intent.Side})

	var divergence bool
	switch cycle.Market {
	case model.MarketSpot:
		divergence = d.spotOrder(ctx, cycle, record, plan, log)
	case model.MarketFutures:
		divergence = d.futuresOrder(ctx, record, plan, log)
	default:
		plan.Rejection = &model.PlanRejection{Kind: normalizer.KindUnsupported, Reason: fmt.Sprintf("unknown market %q", cycle.Market)}
		d.cancel(record, plan.Rejection.Reason)
	}

	if record.Status == model.ExecutionStatusCanceled && record.ExchangeOrderID == "" {
		record.ExchangeOrderID = fmt.Sprintf("rejected-%d-%d", d.now().UnixNano(), index)
	}
	record.PlannedJSON = marshalPlan(plan, log)
	return record, divergence
}

func (d *Dispatcher) spotOrder(ctx context.Context, cycle *Cycle, record *model.ExecutionRecord, plan *model.ExecutionPlan, log *logger.Entry) bool {
	if d.venue.Spot == nil || d.spot == nil {
		reason := fmt.Sprintf("spot trading not supported on %s", d.venue.Exchange)
		plan.Rejection = &model.PlanRejection{Kind: normalizer.KindUnsupported, Reason: reason}
		d.cancel(record, reason)
		return false
	}

	res := d.spot.Spot(ctx, plan.Intent)
	applyResult(plan, res)
	if res.Rejection != nil {
		log.WithField("reason", res.Rejection.Reason).Info("Order rejected by normalizer")
		d.cancel(record, res.Rejection.Reason)
		return res.Rejection.Kind == normalizer.KindDivergence
	}

	order := res.Order
	record.Symbol = order.Symbol
	orderID, err := d.venue.Spot.PlaceLimitOrder(ctx, cycle.UserID, model.SpotOrderRequest{
		Symbol:        order.Symbol,
		Base:          order.Base,
		Quote:         order.Quote,
		Side:          order.Side,
		Quantity:      order.Quantity,
		LimitPrice:    order.Price,
		ClientOrderID: d.clientID(),
	})
	if err != nil {
		reason := gatewayReason(err)
		plan.GatewayError = reason
		log.WithError(err).Warn("Spot order placement failed")
		d.cancel(record, reason)
		return false
	}
	if orderID == "" {
		plan.GatewayError = reasonNoOrderID
		d.cancel(record, reasonNoOrderID)
		return false
	}

	record.ExchangeOrderID = orderID
	record.Status = model.ExecutionStatusOpen
	log.WithFields(logger.Fields{"order_id": orderID, "price": order.Price, "quantity": order.Quantity}).Info("Spot order placed")
	return false
}

func (d *Dispatcher) futuresOrder(ctx context.Context, record *model.ExecutionRecord, plan *model.ExecutionPlan, log *logger.Entry) bool {
	if d.venue.Futures == nil || d.futures == nil {
		reason := fmt.Sprintf("futures trading not supported on %s", d.venue.Exchange)
		plan.Rejection = &model.PlanRejection{Kind: normalizer.KindUnsupported, Reason: reason}
		d.cancel(record, reason)
		return false
	}

	res := d.futures.Futures(ctx, plan.Intent)
	applyResult(plan, res)
	if res.Rejection != nil {
		log.WithField("reason", res.Rejection.Reason).Info("Futures order rejected by normalizer")
		d.cancel(record, res.Rejection.Reason)
		return res.Rejection.Kind == normalizer.KindDivergence
	}

	order := res.Futures
	record.Symbol = order.Symbol
	gw := d.venue.Futures

	if order.Leverage > 0 {
		outcome := &model.LeverageOutcome{Requested: order.Leverage}
		if err := gw.SetLeverage(ctx, order.Symbol, order.Leverage); err != nil {
			outcome.Error = gatewayReason(err)
			log.WithError(err).Warn("Failed to set leverage, continuing with current setting")
		} else {
			outcome.Applied = true
		}
		plan.Leverage = outcome
	}

	req := model.FuturesOrderRequest{
		Symbol:        order.Symbol,
		Side:          order.Side,
		PositionSide:  order.PositionSide,
		OrderType:     order.OrderType,
		Quantity:      order.Quantity,
		ReduceOnly:    order.ReduceOnly,
		ClientOrderID: d.clientID(),
	}
	if order.OrderType == model.OrderTypeLimit {
		req.Price = order.Price
	}

	entry, err := gw.OpenPosition(ctx, req)
	if err != nil {
		reason := gatewayReason(err)
		plan.GatewayError = reason
		log.WithError(err).Warn("Futures entry failed")
		d.cancel(record, reason)
		return false
	}
	if entry == nil || entry.OrderID == "" {
		plan.GatewayError = reasonNoOrderID
		d.cancel(record, reasonNoOrderID)
		return false
	}

	plan.Entry = entry
	record.ExchangeOrderID = entry.OrderID
	record.Status = model.ExecutionStatusOpen
	if entry.Filled {
		record.Status = model.ExecutionStatusFilled
	}
	log = log.WithField("order_id", entry.OrderID)
	log.WithField("status", record.Status).Info("Futures entry placed")

	// Protective legs never unwind the entry.
	protect := model.ProtectiveOrderRequest{
		Symbol:       order.Symbol,
		PositionSide: order.PositionSide,
		Quantity:     order.Quantity,
	}

	protect.TriggerPrice = order.StopLoss
	if sl, err := gw.SetStopLoss(ctx, protect); err != nil {
		plan.Protective = append(plan.Protective, "stop_loss: "+gatewayReason(err))
		log.WithError(err).Error("Failed to attach stop loss")
	} else {
		plan.StopLoss = sl
	}

	protect.TriggerPrice = order.TakeProfit
	if tp, err := gw.SetTakeProfit(ctx, protect); err != nil {
		plan.Protective = append(plan.Protective, "take_profit: "+gatewayReason(err))
		log.WithError(err).Error("Failed to attach take profit")
	} else {
		plan.TakeProfit = tp
	}

	return false
}

func (d *Dispatcher) cancel(record *model.ExecutionRecord, reason string) {
	record.Status = model.ExecutionStatusCanceled
	record.CancellationReason = &reason
}

func applyResult(plan *model.ExecutionPlan, res *normalizer.Result) {
	plan.LivePrice = res.LivePrice
	plan.PairInfo = res.PairInfo
	plan.Order = res.Order
	plan.FuturesOrder = res.Futures
	plan.Adjustments = res.Adjustments
	plan.Rejection = res.Rejection.Plan()
}

// gatewayReason prefers the structured exchange error over the raw message.
func gatewayReason(err error) string {
	if reason, ok := connectors.ParseExchangeError(err); ok {
		return reason
	}
	var rej *normalizer.Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return err.Error()
}

func marshalPlan(plan *model.ExecutionPlan, log *logger.Entry) string {
	b, err := json.Marshal(plan)
	if err != nil {
		log.WithError(err).Error("Failed to marshal execution plan")
		return "{}"
	}
	return string(b)
}
