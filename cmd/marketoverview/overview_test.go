package marketoverview

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/overview"
)

func TestParseTokens(t *testing.T) {
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, ParseTokens(" btc, ETH,,sol ,eth"))
	assert.Empty(t, ParseTokens(" , "))
}

func TestNewCacheRequiresMarketData(t *testing.T) {
	_, err := NewCache(&connectors.Venue{Exchange: "bybit"}, overview.DefaultConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, "market data not supported on bybit", err.Error())
}

func TestWriteReportsPartialFailures(t *testing.T) {
	log, hook := logrustest.NewNullLogger()
	var out bytes.Buffer
	m := &MarketOverview{Log: logrus.NewEntry(log), Out: &out}

	err := m.write([]overview.TokenResult{
		{Token: "BTC", Error: "fetch BTCUSDT 1h candles: timeout"},
		{Token: "DOGE", Error: "unknown symbol"},
	})
	require.Error(t, err)
	assert.Len(t, hook.AllEntries(), 2)

	var decoded []overview.TokenResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "DOGE", decoded[1].Token)

	out.Reset()
	err = m.write([]overview.TokenResult{{Token: "BTC"}, {Token: "DOGE", Error: "unknown symbol"}})
	assert.NoError(t, err)
}
