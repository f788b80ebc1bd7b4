package metadata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/model"
)

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) FetchMarket(_ context.Context, base, quote string) (*model.ExchangePairInfo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &model.ExchangePairInfo{
		Symbol:            base + quote,
		BaseAsset:         base,
		QuoteAsset:        quote,
		QuantityPrecision: 6,
		PricePrecision:    2,
		MinNotional:       10,
	}, nil
}

func TestCacheMemoizesPerPair(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher, nil)

	info, err := cache.Get(context.Background(), "btc", "usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", info.Symbol)

	info.MinNotional = 999 // callers get a copy

	again, err := cache.Get(context.Background(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.MinNotional)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	_, err = cache.Get(context.Background(), "ETH", "USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	cache.Invalidate("BTC", "USDT")
	_, err = cache.Get(context.Background(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(3), fetcher.calls.Load())
}

func TestCacheConcurrentMissesFetchOnce(t *testing.T) {
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), "SOL", "USDT")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("exchange down")}
	cache := NewCache(fetcher, nil)

	_, err := cache.Get(context.Background(), "BTC", "USDT")
	require.Error(t, err)

	fetcher.err = nil
	_, err = cache.Get(context.Background(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) FetchMarket(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &model.ExchangePairInfo{Symbol: base + quote, BaseAsset: base, QuoteAsset: quote}, nil
}

func TestCacheCancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(fetcher, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(leaderCtx, "BTC", "USDT")
		leaderErr <- err
	}()
	<-fetcher.started

	patientErr := make(chan error, 1)
	var info *model.ExchangePairInfo
	go func() {
		var err error
		info, err = cache.Get(context.Background(), "BTC", "USDT")
		patientErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(fetcher.release)
	require.NoError(t, <-patientErr)
	assert.Equal(t, "BTCUSDT", info.Symbol)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// the detached fetch still populated the cache
	_, err := cache.Get(context.Background(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestSplitPair(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
		fails bool
	}{
		{in: "BTC/USDT", base: "BTC", quote: "USDT"},
		{in: "eth-usdc", base: "ETH", quote: "USDC"},
		{in: "SOL_BTC", base: "SOL", quote: "BTC"},
		{in: "BTCUSDT", base: "BTC", quote: "USDT"},
		{in: "ETHBTC", base: "ETH", quote: "BTC"},
		{in: "USDT", fails: true},
		{in: "/USDT", fails: true},
		{in: "FOOBAR", fails: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			base, quote, err := SplitPair(tc.in)
			if tc.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.base, base)
			assert.Equal(t, tc.quote, quote)
		})
	}
}
