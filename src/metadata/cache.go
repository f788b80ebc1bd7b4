package metadata

import (
	"context"
	"fmt"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"portfolioexecutor/src/model"
)

// MarketFetcher resolves pair metadata from the exchange.
type MarketFetcher interface {
	FetchMarket(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error)
}

// Cache memoizes ExchangePairInfo per pair for the life of the process.
// Concurrent misses for the same pair share a single exchange round-trip.
type Cache struct {
	fetcher MarketFetcher
	log     *logger.Entry

	mu      sync.RWMutex
	entries map[string]model.ExchangePairInfo
	group   singleflight.Group
}

func NewCache(fetcher MarketFetcher, log *logger.Entry) *Cache {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Cache{
		fetcher: fetcher,
		log:     log.WithField("component", "metadata_cache"),
		entries: make(map[string]model.ExchangePairInfo),
	}
}

func pairKey(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// Get returns the cached metadata for base/quote, fetching it on first use.
// The returned value is a copy and may be modified by the caller.
func (c *Cache) Get(ctx context.Context, base, quote string) (*model.ExchangePairInfo, error) {
	key := pairKey(base, quote)

	if info, ok := c.lookup(key); ok {
		return &info, nil
	}

	// The fetch runs detached from the first caller's cancellation; every caller
	// waits on its own ctx.
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if info, ok := c.lookup(key); ok {
			return info, nil
		}

		c.log.WithField("pair", key).Debug("fetching pair metadata")
		info, err := c.fetcher.FetchMarket(detached, strings.ToUpper(base), strings.ToUpper(quote))
		if err != nil {
			return nil, fmt.Errorf("fetch market %s: %w", key, err)
		}
		if info == nil {
			return nil, fmt.Errorf("fetch market %s: empty response", key)
		}

		c.mu.Lock()
		c.entries[key] = *info
		c.mu.Unlock()

		c.log.WithFields(logger.Fields{
			"pair":               key,
			"symbol":             info.Symbol,
			"quantity_precision": info.QuantityPrecision,
			"price_precision":    info.PricePrecision,
			"min_notional":       info.MinNotional,
		}).Info("pair metadata cached")

		return *info, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	info := res.Val.(model.ExchangePairInfo)
	return &info, nil
}

func (c *Cache) lookup(key string) (model.ExchangePairInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.entries[key]
	return info, ok
}

// Invalidate drops a cached pair so the next Get refetches it.
func (c *Cache) Invalidate(base, quote string) {
	c.mu.Lock()
	delete(c.entries, pairKey(base, quote))
	c.mu.Unlock()
}

// SplitPair parses "BTC/USDT", "BTC-USDT", "BTC_USDT" or a concatenated "BTCUSDT" into base and quote.
func SplitPair(pair string) (base, quote string, err error) {
	p := strings.ToUpper(strings.TrimSpace(pair))
	for _, sep := range []string{"/", "-", "_"} {
		if parts := strings.Split(p, sep); len(parts) == 2 {
			if parts[0] == "" || parts[1] == "" {
				return "", "", fmt.Errorf("invalid pair %q", pair)
			}
			return parts[0], parts[1], nil
		}
	}
	for _, q := range KnownQuotes {
		if strings.HasSuffix(p, q) && len(p) > len(q) {
			return strings.TrimSuffix(p, q), q, nil
		}
	}
	return "", "", fmt.Errorf("invalid pair %q", pair)
}

// KnownQuotes are tried, in order, when a pair carries no separator.
var KnownQuotes = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "EUR", "BTC", "ETH", "BNB"}
