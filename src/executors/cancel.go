package executors

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"portfolioexecutor/src/model"
)

// CancelResult is the outcome of cancelling one previously open order.
type CancelResult struct {
	RecordID        uint   `json:"record_id"`
	Symbol          string `json:"symbol"`
	ExchangeOrderID string `json:"exchange_order_id"`
	Error           string `json:"error,omitempty"`
}

func (r CancelResult) OK() bool {
	return r.Error == ""
}

// CancelOpenOrders cancels the exchange orders behind the given records in parallel.
// A failing cancellation is reported in its own result and never aborts the others.
// Record statuses are left to reconciliation.
func (d *Dispatcher) CancelOpenOrders(ctx context.Context, records []model.ExecutionRecord, concurrency int) []CancelResult {
	results := make([]CancelResult, len(records))
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range records {
		i := i
		rec := records[i]
		results[i] = CancelResult{RecordID: rec.ID, Symbol: rec.Symbol, ExchangeOrderID: rec.ExchangeOrderID}

		g.Go(func() error {
			if err := d.cancelOne(gctx, rec); err != nil {
				results[i].Error = gatewayReason(err)
				d.log.WithFields(logger.Fields{
					"record_id": rec.ID,
					"symbol":    rec.Symbol,
					"order_id":  rec.ExchangeOrderID,
				}).WithError(err).Warn("Failed to cancel order")
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	d.log.WithFields(logger.Fields{"total": len(records), "failed": failed}).Info("Cancel fan-out finished")

	return results
}

func (d *Dispatcher) cancelOne(ctx context.Context, rec model.ExecutionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gw := d.venue.Canceler(rec.Market)
	if gw == nil {
		return fmt.Errorf("%s trading not supported on %s", rec.Market, d.venue.Exchange)
	}
	return gw.CancelOrder(ctx, rec.Symbol, rec.ExchangeOrderID)
}
