package overview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"portfolioexecutor/src/model"
)

// Computer produces one token overview against a given reference context.
type Computer interface {
	Compute(ctx context.Context, token string, btc *model.BtcContext) (*model.TokenOverview, error)
}

// ContextBuilder produces a fresh reference context.
type ContextBuilder interface {
	Build(ctx context.Context) (*model.BtcContext, error)
}

const btcFlightKey = "btc-context"

type cachedOverview struct {
	overview    model.TokenOverview
	generatedAt time.Time
	contextKey  string
}

// Cache fronts the engine with a TTL and single-flight dedup per token and BTC context key.
type Cache struct {
	engine     Computer
	btcBuilder ContextBuilder
	ttl        time.Duration
	btcTTL     time.Duration
	now        func() time.Time
	log        *logger.Entry

	mu      sync.RWMutex
	entries map[string]cachedOverview
	btc     *model.BtcContext
	btcAt   time.Time

	group singleflight.Group
}

func NewCache(engine Computer, btcBuilder ContextBuilder, cfg Config, log *logger.Entry) *Cache {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Cache{
		engine:     engine,
		btcBuilder: btcBuilder,
		ttl:        cfg.TTL,
		btcTTL:     cfg.BtcTTL,
		now:        time.Now,
		log:        log.WithField("component", "overview_cache"),
		entries:    make(map[string]cachedOverview),
	}
}

// BtcContext returns the cached reference context, rebuilding it once its TTL has passed.
func (c *Cache) BtcContext(ctx context.Context) (*model.BtcContext, error) {
	c.mu.RLock()
	btc, at := c.btc, c.btcAt
	c.mu.RUnlock()
	if btc != nil && c.now().Sub(at) < c.btcTTL {
		return btc, nil
	}

	v, _, err := c.flight(ctx, btcFlightKey, func(ctx context.Context) (interface{}, error) {
		c.mu.RLock()
		btc, at := c.btc, c.btcAt
		c.mu.RUnlock()
		if btc != nil && c.now().Sub(at) < c.btcTTL {
			return btc, nil
		}

		fresh, err := c.btcBuilder.Build(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.btc = fresh
		c.btcAt = c.now()
		c.mu.Unlock()

		c.log.WithField("cache_key", fresh.CacheKey).Debug("reference context refreshed")
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.BtcContext), nil
}

// flight runs fn once per key for all concurrent callers. fn gets a context that
// keeps the caller's values but not its cancellation, so one caller giving up
// does not fail the others. Each caller still stops waiting when its own ctx is done.
func (c *Cache) flight(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *Cache) fresh(token, contextKey string) (cachedOverview, bool) {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok || entry.contextKey != contextKey {
		return cachedOverview{}, false
	}
	return entry, c.now().Sub(entry.generatedAt) < c.ttl
}

// Get returns the overview for token. Entries built against an older reference context are recomputed.
func (c *Cache) Get(ctx context.Context, token string) (*model.TokenOverview, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return nil, errors.New("token is required")
	}

	btc, err := c.BtcContext(ctx)
	if err != nil {
		return nil, err
	}

	if entry, ok := c.fresh(token, btc.CacheKey); ok {
		out := entry.overview
		return &out, nil
	}

	v, shared, err := c.flight(ctx, "overview:"+token+"|"+btc.CacheKey, func(ctx context.Context) (interface{}, error) {
		if entry, ok := c.fresh(token, btc.CacheKey); ok {
			return entry.overview, nil
		}

		ov, err := c.engine.Compute(ctx, token, btc)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[token] = cachedOverview{
			overview:    *ov,
			generatedAt: c.now(),
			contextKey:  btc.CacheKey,
		}
		c.mu.Unlock()
		return *ov, nil
	})
	if err != nil {
		c.log.WithError(err).WithField("token", token).Warn("overview computation failed")
		return nil, err
	}
	if shared {
		c.log.WithField("token", token).Debug("joined in-flight overview computation")
	}

	out := v.(model.TokenOverview)
	return &out, nil
}

// TokenResult is one token's outcome from GetMany.
type TokenResult struct {
	Token    string               `json:"token"`
	Overview *model.TokenOverview `json:"overview,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// GetMany resolves tokens concurrently; a failing token does not fail the others.
func (c *Cache) GetMany(ctx context.Context, tokens []string) []TokenResult {
	results := make([]TokenResult, len(tokens))
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			results[i].Token = strings.ToUpper(strings.TrimSpace(token))
			ov, err := c.Get(ctx, token)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Overview = ov
		}(i, token)
	}
	wg.Wait()
	return results
}
