package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/model"
)

func series(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestRSI_StrictlyIncreasing(t *testing.T) {
	closes := series(20, func(i int) float64 { return 100 + float64(i) })
	rsi := RSI(closes, RSIPeriod)
	assert.Greater(t, rsi, 50.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestRSI_StrictlyDecreasing(t *testing.T) {
	closes := series(20, func(i int) float64 { return 200 - float64(i) })
	rsi := RSI(closes, RSIPeriod)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.Less(t, rsi, 50.0)
}

func TestRSI_InsufficientHistory(t *testing.T) {
	closes := series(14, func(i int) float64 { return float64(i) })
	assert.Equal(t, 50.0, RSI(closes, RSIPeriod))
}

func TestRSI_Mixed(t *testing.T) {
	closes := []float64{44, 44.3, 44.1, 44.5, 43.9, 44.6, 45.1, 45.4, 45.2, 45.8, 46.1, 45.9, 46.3, 46.0, 46.4, 46.2}
	rsi := RSI(closes, RSIPeriod)
	assert.Greater(t, rsi, 0.0)
	assert.Less(t, rsi, 100.0)
}

func TestTrend(t *testing.T) {
	t.Run("flat series", func(t *testing.T) {
		closes := series(300, func(int) float64 { return 10 })
		tr := Trend(closes, 50, 200)
		assert.Equal(t, model.TrendFlat, tr.Slope)
		assert.Equal(t, 0.0, tr.GapPct)
		assert.Equal(t, [2]int{50, 200}, tr.SmaPeriods)
	})

	t.Run("rising series", func(t *testing.T) {
		closes := series(300, func(i int) float64 { return float64(i + 1) })
		tr := Trend(closes, 50, 200)
		assert.InDelta(t, (275.5-200.5)/200.5*100, tr.GapPct, 1e-9)
		assert.Equal(t, model.TrendUp, tr.Slope)
	})

	t.Run("falling series", func(t *testing.T) {
		closes := series(300, func(i int) float64 { return float64(300 - i) })
		assert.Equal(t, model.TrendDown, Trend(closes, 50, 200).Slope)
	})

	t.Run("thresholds", func(t *testing.T) {
		assert.Equal(t, model.TrendFlat, SlopeFromGap(0.5))
		assert.Equal(t, model.TrendUp, SlopeFromGap(0.51))
		assert.Equal(t, model.TrendFlat, SlopeFromGap(-0.5))
		assert.Equal(t, model.TrendDown, SlopeFromGap(-0.51))
	})
}

func TestSMA_ShortHistoryUsesAvailableValues(t *testing.T) {
	assert.Equal(t, 2.0, SMA([]float64{1, 2, 3}, 50))
	assert.Equal(t, 0.0, SMA(nil, 50))
	assert.Equal(t, 2.5, SMA([]float64{1, 2, 3}, 2))
}

func TestPeriodReturn(t *testing.T) {
	assert.InDelta(t, 0.1, PeriodReturn([]float64{100, 110}, 1), 1e-12)
	assert.Equal(t, 0.0, PeriodReturn([]float64{100, 110}, 24))
	assert.Equal(t, 0.0, PeriodReturn([]float64{0, 110}, 1))
}

func TestATRPct(t *testing.T) {
	candles := make([]model.Candle, 20)
	for i := range candles {
		candles[i] = model.Candle{Open: 100, High: 101, Low: 99, Close: 100}
	}
	assert.InDelta(t, 2.0, ATRPct(candles, ATRPeriod), 1e-12)
	assert.Equal(t, 0.0, ATRPct(nil, ATRPeriod))

	// previous close gaps widen the true range
	gapped := []model.Candle{
		{High: 101, Low: 99, Close: 100},
		{High: 111, Low: 109, Close: 110},
	}
	assert.InDelta(t, (2.0+11.0)/2/110*100, ATRPct(gapped, ATRPeriod), 1e-12)
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, 2.0, ZScore([]float64{2, 4, 4, 4, 5, 5, 7, 9}, VolumeWindow), 1e-12)
	assert.Equal(t, 0.0, ZScore([]float64{3, 3, 3}, VolumeWindow))

	// only the trailing window participates
	values := append([]float64{1000, 1000}, 2, 4, 4, 4, 5, 5, 7, 9)
	assert.InDelta(t, 2.0, ZScore(values, 8), 1e-12)
}

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 110, 0, 121})
	require.Len(t, r, 1)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Nil(t, LogReturns([]float64{1}))
}

func TestRollingRealizedVol(t *testing.T) {
	returns := series(40, func(i int) float64 {
		if i%2 == 0 {
			return 0.01
		}
		return -0.01
	})
	vols := RollingRealizedVol(returns, RealizedVolWindow)
	require.Len(t, vols, 11)
	for _, v := range vols {
		assert.Greater(t, v, 0.0)
	}
	assert.Nil(t, RollingRealizedVol(returns[:10], RealizedVolWindow))
}

func TestPercentileRankAndVolState(t *testing.T) {
	assert.Equal(t, 0.75, PercentileRank([]float64{1, 2, 3, 4}, 3))
	assert.Equal(t, 0.5, PercentileRank(nil, 3))

	assert.Equal(t, model.VolStateDepressed, VolState(0.1))
	assert.Equal(t, model.VolStateNormal, VolState(0.2))
	assert.Equal(t, model.VolStateNormal, VolState(0.7))
	assert.Equal(t, model.VolStateElevated, VolState(0.71))
}

func TestPearsonAndBeta(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, Pearson(a, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1.0, Pearson(a, []float64{8, 6, 4, 2}), 1e-12)
	assert.Equal(t, 0.0, Pearson(a, []float64{5, 5, 5, 5}))

	assert.InDelta(t, 2.0, Beta([]float64{2, 4, 6, 8}, a), 1e-12)
	assert.Equal(t, 0.0, Beta(a, []float64{1, 1, 1, 1}))
}

func TestTailAlign(t *testing.T) {
	a, b := TailAlign([]float64{1, 2, 3, 4, 5}, []float64{7, 8, 9}, 90)
	assert.Equal(t, []float64{3, 4, 5}, a)
	assert.Equal(t, []float64{7, 8, 9}, b)

	a, b = TailAlign([]float64{1, 2, 3, 4, 5}, []float64{6, 7, 8, 9}, 2)
	assert.Equal(t, []float64{4, 5}, a)
	assert.Equal(t, []float64{8, 9}, b)
}
