package indicators

import "portfolioexecutor/src/model"

// SlopeThresholdPct is the SMA gap (in percent) beyond which a trend is no longer flat.
const SlopeThresholdPct = 0.5

// SMA computes the simple moving average of the last `period` values.
// When fewer values are available the mean of all of them is used; an empty series yields 0.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) == 0 {
		return 0
	}
	start := len(values) - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(len(values)-start)
}

// GapPct returns (fast-slow)/slow×100, or 0 when slow is 0.
func GapPct(fast, slow float64) float64 {
	if slow == 0 {
		return 0
	}
	return (fast - slow) / slow * 100
}

// SlopeFromGap buckets an SMA gap into up, flat or down.
func SlopeFromGap(gapPct float64) string {
	switch {
	case gapPct > SlopeThresholdPct:
		return model.TrendUp
	case gapPct < -SlopeThresholdPct:
		return model.TrendDown
	default:
		return model.TrendFlat
	}
}

// Trend applies the SMA-gap formula for the given fast/slow periods to a close series.
func Trend(closes []float64, fast, slow int) model.TrendBasis {
	gap := GapPct(SMA(closes, fast), SMA(closes, slow))
	return model.TrendBasis{
		SmaPeriods: [2]int{fast, slow},
		GapPct:     gap,
		Slope:      SlopeFromGap(gap),
	}
}
