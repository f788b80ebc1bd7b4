package indicators

// RSIPeriod is the lookback used for the overview RSI.
const RSIPeriod = 14

// RSI computes the Wilder-smoothed RSI over the given period.
// Requires at least period+1 closes, otherwise returns 50. Returns 100 when there were no losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	// Initial average gain/loss over the first `period` changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// PeriodReturn returns lastClose/close[n periods ago] - 1.
// It is 0 when history is too short or the reference close is 0.
func PeriodReturn(closes []float64, periods int) float64 {
	if periods <= 0 || len(closes) <= periods {
		return 0
	}
	last := closes[len(closes)-1]
	ref := closes[len(closes)-1-periods]
	if ref == 0 {
		return 0
	}
	return last/ref - 1
}
