package overview

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/indicators"
	"portfolioexecutor/src/model"
)

// BtcContextBuilder loads the reference asset's daily series.
type BtcContextBuilder struct {
	data  MarketData
	pairs PairResolver
	cfg   Config
	log   *logger.Entry
	now   func() time.Time
}

func NewBtcContextBuilder(data MarketData, pairs PairResolver, cfg Config, log *logger.Entry) *BtcContextBuilder {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &BtcContextBuilder{
		data:  data,
		pairs: pairs,
		cfg:   cfg,
		log:   log.WithField("component", "btc_context"),
		now:   time.Now,
	}
}

// Build fetches the daily candles of the reference token and derives closes and log returns.
// The cache key changes on every build and whenever a new daily candle opens.
func (b *BtcContextBuilder) Build(ctx context.Context) (*model.BtcContext, error) {
	symbol, err := resolveSymbol(ctx, b.pairs, b.cfg.ReferenceToken, b.cfg.Quote)
	if err != nil {
		return nil, fmt.Errorf("resolve reference symbol: %w", err)
	}

	candles, err := b.data.FetchCandles(ctx, symbol, model.Interval1d, b.cfg.Candles1d)
	if err != nil {
		return nil, fmt.Errorf("fetch %s daily candles: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, errors.New("reference asset returned no daily candles")
	}

	closes := model.Closes(candles)
	generatedAt := b.now()
	last := candles[len(candles)-1]

	btc := &model.BtcContext{
		DailyCloses:     closes,
		DailyLogReturns: indicators.LogReturns(closes),
		CacheKey:        fmt.Sprintf("%d-%d", generatedAt.UnixMilli(), last.OpenTime.UnixMilli()),
		GeneratedAt:     generatedAt,
	}

	b.log.WithFields(logger.Fields{
		"symbol":    symbol,
		"candles":   len(candles),
		"cache_key": btc.CacheKey,
	}).Info("reference context built")

	return btc, nil
}
