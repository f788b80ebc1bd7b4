package execute

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/model"
)

const batch = `
user_id: 7
workflow_id: 3
review_result_id: 11
market: Futures
intents:
  - pair: BTC/USDT
    token: BTC
    side: BUY
    quantity: 0.002
    base_price: 50000
    max_price_divergence: 0.005
    position_side: LONG
    stop_loss: 48000
    take_profit: 56000
    leverage: 3
  - pair: ETH/USDT
    token: USDT
    side: SELL
    quantity: 150
    base_price: 3000
    limit_price: 3010.5
    max_price_divergence: 0.01
    position_side: SHORT
    stop_loss: 3100
    take_profit: 2800
    order_type: limit
`

func writeBatch(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCycle(t *testing.T) {
	cycle, err := LoadCycle(writeBatch(t, batch))
	require.NoError(t, err)

	assert.Equal(t, uint(7), cycle.UserID)
	assert.Equal(t, uint(3), cycle.WorkflowID)
	assert.Equal(t, uint(11), cycle.ReviewResultID)
	assert.Equal(t, model.MarketFutures, cycle.Market)
	require.Len(t, cycle.Intents, 2)

	first := cycle.Intents[0]
	assert.Equal(t, model.SideBuy, first.Side)
	assert.Equal(t, 0.002, first.Quantity)
	require.NotNil(t, first.Leverage)
	assert.Equal(t, 3.0, *first.Leverage)
	assert.Nil(t, first.LimitPrice)

	second := cycle.Intents[1]
	require.NotNil(t, second.LimitPrice)
	assert.Equal(t, 3010.5, *second.LimitPrice)
	assert.Equal(t, "limit", second.OrderType)
	assert.Equal(t, model.PositionSideShort, second.PositionSide)
}

func TestLoadCycleDefaultsToSpot(t *testing.T) {
	cycle, err := LoadCycle(writeBatch(t, "workflow_id: 1\nintents: []\n"))
	require.NoError(t, err)
	assert.Equal(t, model.MarketSpot, cycle.Market)
	assert.Empty(t, cycle.Intents)
}

func TestLoadCycleErrors(t *testing.T) {
	_, err := LoadCycle(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read batch")

	_, err = LoadCycle(writeBatch(t, "market: margin\n"))
	assert.ErrorContains(t, err, `unknown market "margin"`)

	_, err = LoadCycle(writeBatch(t, "intents: {not: [a list\n"))
	assert.ErrorContains(t, err, "parse batch")
}

func TestDeciderReloadsFile(t *testing.T) {
	path := writeBatch(t, "workflow_id: 1\nreview_result_id: 1\n")
	decide := Decider(path, logrus.NewEntry(logrus.New()))

	require.NoError(t, os.WriteFile(path, []byte("workflow_id: 1\nreview_result_id: 2\n"), 0o600))
	cycle, err := decide(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), cycle.ReviewResultID)
}
