package indicators

import (
	"math"

	"portfolioexecutor/src/model"
)

const (
	ATRPeriod         = 14
	VolumeWindow      = 720 // 30 days of 1h samples
	RealizedVolWindow = 30
	AnnualizationDays = 365

	VolRankDepressed = 0.2
	VolRankElevated  = 0.7
)

// ATRPct returns the mean true range of the last `period` bars (fewer when history is short)
// divided by the latest close, in percent.
func ATRPct(candles []model.Candle, period int) float64 {
	if len(candles) == 0 || period <= 0 {
		return 0
	}
	last := candles[len(candles)-1].Close
	if last == 0 {
		return 0
	}

	start := len(candles) - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i < len(candles); i++ {
		sum += trueRange(candles, i)
	}
	atr := sum / float64(len(candles)-start)
	return atr / last * 100
}

func trueRange(candles []model.Candle, i int) float64 {
	c := candles[i]
	tr := c.High - c.Low
	if i == 0 {
		return tr
	}
	prevClose := candles[i-1].Close
	return math.Max(tr, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ZScore returns the z-score of the latest value against the trailing `window` values
// (the latest included), using the population standard deviation. A zero deviation is treated as 1.
func ZScore(values []float64, window int) float64 {
	if len(values) == 0 || window <= 0 {
		return 0
	}
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	sample := values[start:]
	mean := Mean(sample)
	std := PopulationStdDev(sample)
	if std == 0 {
		std = 1
	}
	return (values[len(values)-1] - mean) / std
}

// LogReturns computes ln(c[i]/c[i-1]); pairs with a non-positive close are skipped.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i] <= 0 || closes[i-1] <= 0 {
			continue
		}
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	acc := 0.0
	for _, v := range values {
		acc += (v - mean) * (v - mean)
	}
	return math.Sqrt(acc / float64(len(values)))
}

// SampleStdDev uses the n-1 denominator; fewer than two values yield 0.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	acc := 0.0
	for _, v := range values {
		acc += (v - mean) * (v - mean)
	}
	return math.Sqrt(acc / float64(len(values)-1))
}

// RollingRealizedVol annualizes the stdev of every `window`-sized run of daily log returns,
// oldest window first.
func RollingRealizedVol(logReturns []float64, window int) []float64 {
	if window <= 0 || len(logReturns) < window {
		return nil
	}
	out := make([]float64, 0, len(logReturns)-window+1)
	for end := window; end <= len(logReturns); end++ {
		out = append(out, SampleStdDev(logReturns[end-window:end])*math.Sqrt(AnnualizationDays))
	}
	return out
}

// PercentileRank is the fraction of the series at or below value. An empty series ranks 0.5.
func PercentileRank(series []float64, value float64) float64 {
	if len(series) == 0 {
		return 0.5
	}
	count := 0
	for _, v := range series {
		if v <= value {
			count++
		}
	}
	return float64(count) / float64(len(series))
}

// VolState buckets a volatility percentile rank.
func VolState(rank float64) string {
	switch {
	case rank < VolRankDepressed:
		return model.VolStateDepressed
	case rank > VolRankElevated:
		return model.VolStateElevated
	default:
		return model.VolStateNormal
	}
}
