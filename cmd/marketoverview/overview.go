package marketoverview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/metadata"
	"portfolioexecutor/src/overview"
)

type MarketOverview struct {
	Log *logrus.Entry
	Out io.Writer
}

// feed joins the ticker of a market gateway with the book and candle endpoints.
type feed struct {
	connectors.MarketDataGateway
	prices connectors.MarketGateway
}

func (f feed) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	return f.prices.FetchTicker(ctx, symbol)
}

// ParseTokens splits a comma separated token list, dropping blanks and duplicates.
func ParseTokens(raw string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

// NewCache wires the overview engine and the reference context onto a venue.
func NewCache(venue *connectors.Venue, cfg overview.Config, log *logrus.Entry) (*overview.Cache, error) {
	prices := venue.SpotMarket
	if prices == nil {
		prices = venue.FuturesMarket
	}
	if venue.MarketData == nil || prices == nil {
		return nil, fmt.Errorf("market data not supported on %s", venue.Exchange)
	}

	data := feed{MarketDataGateway: venue.MarketData, prices: prices}
	pairs := metadata.NewCache(prices, log)

	engine := overview.NewEngine(data, pairs, cfg, log)
	btc := overview.NewBtcContextBuilder(data, pairs, cfg, log)
	return overview.NewCache(engine, btc, cfg, log), nil
}

func (m *MarketOverview) Start(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return errors.New("at least one token is required")
	}

	venue, err := connectors.NewVenue(connectors.GetConfig(), m.Log)
	if err != nil {
		return err
	}
	cache, err := NewCache(venue, overview.GetConfig(), m.Log)
	if err != nil {
		return err
	}

	m.Log.WithFields(logrus.Fields{"exchange": venue.Exchange, "tokens": tokens}).Info("Computing market overview")

	results := cache.GetMany(ctx, tokens)
	return m.write(results)
}

func (m *MarketOverview) write(results []overview.TokenResult) error {
	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
			m.Log.WithFields(logrus.Fields{"token": r.Token, "error": r.Error}).Warn("Overview failed")
		}
	}

	enc := json.NewEncoder(m.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write overview: %w", err)
	}
	if failed == len(results) {
		return fmt.Errorf("overview failed for all %d tokens", failed)
	}
	return nil
}
