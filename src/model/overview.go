package model

import "time"

const (
	TrendUp   = "up"
	TrendFlat = "flat"
	TrendDown = "down"
)

const (
	VolStateDepressed = "depressed"
	VolStateNormal    = "normal"
	VolStateElevated  = "elevated"
)

// TrendBasis describes the SMA pair a trend slope was derived from.
type TrendBasis struct {
	SmaPeriods [2]int  `json:"sma_periods"`
	GapPct     float64 `json:"gap_pct"`
	Slope      string  `json:"slope"`
}

type RiskFlags struct {
	Overbought bool `json:"overbought"`
	Oversold   bool `json:"oversold"`
	VolSpike   bool `json:"vol_spike"`
	ThinBook   bool `json:"thin_book"`
}

type HtfReturns struct {
	Ret30d  float64 `json:"ret_30d"`
	Ret90d  float64 `json:"ret_90d"`
	Ret180d float64 `json:"ret_180d"`
	Ret365d float64 `json:"ret_365d"`
}

type HtfTrend struct {
	Frame4h TrendBasis `json:"4h"`
	Frame1d TrendBasis `json:"1d"`
	Frame1w TrendBasis `json:"1w"`
}

type Regime struct {
	VolState      string  `json:"vol_state"`
	VolRank1y     float64 `json:"vol_rank_1y"`
	CorrBtc90d    float64 `json:"corr_btc_90d"`
	MarketBeta90d float64 `json:"market_beta_90d"`
}

type HigherTimeframe struct {
	Returns HtfReturns `json:"returns"`
	Trend   HtfTrend   `json:"trend"`
	Regime  Regime     `json:"regime"`
}

// TokenOverview is the statistical market snapshot of one token consumed by the decision maker.
type TokenOverview struct {
	Token               string          `json:"token"`
	Symbol              string          `json:"symbol"`
	Price               float64         `json:"price"`
	TrendSlope          string          `json:"trend_slope"`
	TrendBasis          TrendBasis      `json:"trend_basis"`
	Ret1h               float64         `json:"ret_1h"`
	Ret24h              float64         `json:"ret_24h"`
	VolAtrPct           float64         `json:"vol_atr_pct"`
	VolAnomalyZ         float64         `json:"vol_anomaly_z"`
	Rsi14               float64         `json:"rsi14"`
	OrderbookSpreadBps  float64         `json:"orderbook_spread_bps"`
	OrderbookDepthRatio float64         `json:"orderbook_depth_ratio"`
	RiskFlags           RiskFlags       `json:"risk_flags"`
	Htf                 HigherTimeframe `json:"htf"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// BtcContext is the reference-asset series shared by every token's regime computation.
type BtcContext struct {
	DailyCloses     []float64 `json:"daily_closes"`
	DailyLogReturns []float64 `json:"daily_log_returns"`
	CacheKey        string    `json:"cache_key"`
	GeneratedAt     time.Time `json:"generated_at"`
}
