package cancelopen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/executors"
	"portfolioexecutor/src/model"
)

type stubRecords struct {
	open []model.ExecutionRecord
	err  error
	args []uint
}

func (s *stubRecords) FindOpenByWorkflow(ctx context.Context, workflowID, userID uint) ([]model.ExecutionRecord, error) {
	s.args = []uint{workflowID, userID}
	return s.open, s.err
}

type stubCanceler struct {
	mu       sync.Mutex
	canceled []string
}

func (s *stubCanceler) CancelOrder(ctx context.Context, symbol, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = append(s.canceled, symbol+"/"+orderID)
	if orderID == "bad" {
		return errors.New("order does not exist")
	}
	return nil
}

func (s *stubCanceler) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (s *stubCanceler) OpenPosition(ctx context.Context, req model.FuturesOrderRequest) (*model.FuturesOrderResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCanceler) SetStopLoss(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubCanceler) SetTakeProfit(ctx context.Context, req model.ProtectiveOrderRequest) (*model.ProtectiveOrderResponse, error) {
	return nil, errors.New("not implemented")
}

func TestRunCancelsOpenRecords(t *testing.T) {
	futures := &stubCanceler{}
	d := executors.NewDispatcher(&connectors.Venue{Exchange: "bybit", Futures: futures}, nil, nil, nil)
	records := &stubRecords{open: []model.ExecutionRecord{
		{ID: 1, Market: model.MarketFutures, Symbol: "BTCUSDT", ExchangeOrderID: "a"},
		{ID: 2, Market: model.MarketFutures, Symbol: "ETHUSDT", ExchangeOrderID: "bad"},
	}}

	var out bytes.Buffer
	c := &CancelOpen{Log: logrus.NewEntry(logrus.New()), Out: &out}
	require.NoError(t, c.run(context.Background(), records, d, executors.Config{CancelConcurrency: 4}, 9, 7))

	assert.Equal(t, []uint{9, 7}, records.args)
	assert.ElementsMatch(t, []string{"BTCUSDT/a", "ETHUSDT/bad"}, futures.canceled)

	var results []executors.CancelResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.Equal(t, "order does not exist", results[1].Error)
}

func TestRunWithoutOpenRecords(t *testing.T) {
	d := executors.NewDispatcher(&connectors.Venue{Exchange: "binance"}, nil, nil, nil)
	var out bytes.Buffer
	c := &CancelOpen{Log: logrus.NewEntry(logrus.New()), Out: &out}

	require.NoError(t, c.run(context.Background(), &stubRecords{}, d, executors.Config{}, 1, 0))
	assert.JSONEq(t, "[]", out.String())
}

func TestRunLoadFailure(t *testing.T) {
	d := executors.NewDispatcher(&connectors.Venue{Exchange: "binance"}, nil, nil, nil)
	c := &CancelOpen{Log: logrus.NewEntry(logrus.New()), Out: &bytes.Buffer{}}

	err := c.run(context.Background(), &stubRecords{err: errors.New("db down")}, d, executors.Config{}, 1, 0)
	assert.ErrorContains(t, err, "load open records: db down")
}

func TestStartRequiresWorkflow(t *testing.T) {
	c := &CancelOpen{Log: logrus.NewEntry(logrus.New()), Out: &bytes.Buffer{}}
	assert.EqualError(t, c.Start(context.Background(), 0, 0), "workflow id is required")
}
