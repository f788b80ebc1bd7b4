package overview

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"portfolioexecutor/src/indicators"
	"portfolioexecutor/src/model"
)

// Risk flag thresholds.
const (
	OverboughtRSI      = 75.0
	OversoldRSI        = 25.0
	VolSpikeAtrPct     = 3.0
	ThinBookSpreadBps  = 10.0
	ThinBookDepthRatio = 0.5

	CorrelationWindow = 90
	VolRankLookback   = 365
)

// Engine derives a TokenOverview from live market data.
type Engine struct {
	data  MarketData
	pairs PairResolver
	cfg   Config
	log   *logger.Entry
	now   func() time.Time
}

func NewEngine(data MarketData, pairs PairResolver, cfg Config, log *logger.Entry) *Engine {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &Engine{
		data:  data,
		pairs: pairs,
		cfg:   cfg,
		log:   log.WithField("component", "overview_engine"),
		now:   time.Now,
	}
}

type snapshot struct {
	price  float64
	book   *model.OrderBookTop
	hourly []model.Candle
	h4     []model.Candle
	daily  []model.Candle
	weekly []model.Candle
}

func (e *Engine) isReference(token string) bool {
	return strings.EqualFold(token, e.cfg.ReferenceToken)
}

// Compute fetches everything the overview needs for one token and derives it.
// When the token is the reference asset, its daily series come from btc instead of a new fetch.
func (e *Engine) Compute(ctx context.Context, token string, btc *model.BtcContext) (*model.TokenOverview, error) {
	token = strings.ToUpper(token)
	symbol, err := resolveSymbol(ctx, e.pairs, token, e.cfg.Quote)
	if err != nil {
		return nil, fmt.Errorf("resolve symbol for %s: %w", token, err)
	}

	reuseDaily := e.isReference(token) && btc != nil
	snap, err := e.fetch(ctx, symbol, !reuseDaily)
	if err != nil {
		return nil, err
	}

	var dailyCloses, dailyReturns []float64
	if reuseDaily {
		dailyCloses = btc.DailyCloses
		dailyReturns = btc.DailyLogReturns
	} else {
		dailyCloses = model.Closes(snap.daily)
		dailyReturns = indicators.LogReturns(dailyCloses)
	}

	hourlyCloses := model.Closes(snap.hourly)
	trend := indicators.Trend(hourlyCloses, 50, 200)

	ov := &model.TokenOverview{
		Token:       token,
		Symbol:      symbol,
		Price:       snap.price,
		TrendSlope:  trend.Slope,
		TrendBasis:  trend,
		Ret1h:       indicators.PeriodReturn(hourlyCloses, 1),
		Ret24h:      indicators.PeriodReturn(hourlyCloses, 24),
		VolAtrPct:   indicators.ATRPct(snap.hourly, indicators.ATRPeriod),
		VolAnomalyZ: indicators.ZScore(model.Volumes(snap.hourly), indicators.VolumeWindow),
		Rsi14:       indicators.RSI(hourlyCloses, indicators.RSIPeriod),
		GeneratedAt: e.now(),
	}

	ov.OrderbookSpreadBps, ov.OrderbookDepthRatio = bookHealth(snap.book, snap.price)

	ov.RiskFlags = model.RiskFlags{
		Overbought: ov.Rsi14 >= OverboughtRSI,
		Oversold:   ov.Rsi14 <= OversoldRSI,
		VolSpike:   ov.VolAtrPct >= VolSpikeAtrPct,
		ThinBook:   ov.OrderbookSpreadBps > ThinBookSpreadBps || ov.OrderbookDepthRatio < ThinBookDepthRatio,
	}

	ov.Htf.Returns = model.HtfReturns{
		Ret30d:  indicators.PeriodReturn(dailyCloses, 30),
		Ret90d:  indicators.PeriodReturn(dailyCloses, 90),
		Ret180d: indicators.PeriodReturn(dailyCloses, 180),
		Ret365d: indicators.PeriodReturn(dailyCloses, 365),
	}
	ov.Htf.Trend = model.HtfTrend{
		Frame4h: indicators.Trend(model.Closes(snap.h4), 50, 200),
		Frame1d: indicators.Trend(dailyCloses, 20, 100),
		Frame1w: indicators.Trend(model.Closes(snap.weekly), 13, 52),
	}
	ov.Htf.Regime = e.regime(token, dailyReturns, btc)

	e.log.WithFields(logger.Fields{
		"token":      token,
		"symbol":     symbol,
		"trend":      ov.TrendSlope,
		"rsi14":      ov.Rsi14,
		"vol_state":  ov.Htf.Regime.VolState,
		"corr_btc":   ov.Htf.Regime.CorrBtc90d,
		"thin_book":  ov.RiskFlags.ThinBook,
		"candles_1h": len(snap.hourly),
	}).Debug("token overview computed")

	return ov, nil
}

func (e *Engine) fetch(ctx context.Context, symbol string, withDaily bool) (*snapshot, error) {
	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		price, err := e.data.FetchTicker(gctx, symbol)
		if err != nil {
			return fmt.Errorf("fetch ticker %s: %w", symbol, err)
		}
		snap.price = price
		return nil
	})
	g.Go(func() error {
		book, err := e.data.FetchOrderBookTop(gctx, symbol)
		if err != nil {
			return fmt.Errorf("fetch order book %s: %w", symbol, err)
		}
		snap.book = book
		return nil
	})

	series := []struct {
		interval string
		limit    int
		dst      *[]model.Candle
	}{
		{model.Interval1h, e.cfg.Candles1h, &snap.hourly},
		{model.Interval4h, e.cfg.Candles4h, &snap.h4},
		{model.Interval1w, e.cfg.Candles1w, &snap.weekly},
	}
	if withDaily {
		series = append(series, struct {
			interval string
			limit    int
			dst      *[]model.Candle
		}{model.Interval1d, e.cfg.Candles1d, &snap.daily})
	}

	for _, s := range series {
		s := s
		g.Go(func() error {
			candles, err := e.data.FetchCandles(gctx, symbol, s.interval, s.limit)
			if err != nil {
				return fmt.Errorf("fetch %s %s candles: %w", symbol, s.interval, err)
			}
			*s.dst = candles
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// bookHealth returns the spread in basis points of mid and the bid/ask size ratio.
// A missing side is quoted at the current price, so an empty book has no spread and
// a one-sided book measures the distance between its best quote and the price.
func bookHealth(book *model.OrderBookTop, price float64) (spreadBps, depthRatio float64) {
	if book == nil {
		book = &model.OrderBookTop{}
	}
	bid, ask := book.BidPrice, book.AskPrice
	if bid <= 0 {
		bid = price
	}
	if ask <= 0 {
		ask = price
	}
	if mid := (bid + ask) / 2; mid > 0 {
		spreadBps = math.Abs(ask-bid) / mid * 10000
	}
	if book.AskQty > 0 {
		depthRatio = book.BidQty / book.AskQty
	}
	return spreadBps, depthRatio
}

func (e *Engine) regime(token string, returns []float64, btc *model.BtcContext) model.Regime {
	rolling := indicators.RollingRealizedVol(returns, indicators.RealizedVolWindow)

	rank := 0.5
	if len(rolling) > 0 {
		current := rolling[len(rolling)-1]
		reference := rolling
		if len(reference) > VolRankLookback {
			reference = reference[len(reference)-VolRankLookback:]
		}
		rank = indicators.PercentileRank(reference, current)
	}

	r := model.Regime{
		VolState:  indicators.VolState(rank),
		VolRank1y: rank,
	}

	switch {
	case e.isReference(token):
		r.CorrBtc90d = 1
		r.MarketBeta90d = 1
	case btc != nil:
		asset, market := indicators.TailAlign(returns, btc.DailyLogReturns, CorrelationWindow)
		r.CorrBtc90d = indicators.Pearson(asset, market)
		r.MarketBeta90d = indicators.Beta(asset, market)
	}
	return r
}
