package indicators

import "math"

// TailAlign trims both series to their common trailing length, capped at n.
func TailAlign(a, b []float64, n int) ([]float64, []float64) {
	size := len(a)
	if len(b) < size {
		size = len(b)
	}
	if n > 0 && n < size {
		size = n
	}
	return a[len(a)-size:], b[len(b)-size:]
}

// Pearson returns the correlation coefficient of two equally sized series.
// Fewer than two points or a zero-variance series yield 0.
func Pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ma, mb := Mean(a), Mean(b)
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	r := cov / math.Sqrt(va*vb)
	return math.Max(-1, math.Min(1, r))
}

// Beta returns cov(asset, market)/var(market), or 0 when the market series is flat.
func Beta(asset, market []float64) float64 {
	if len(asset) != len(market) || len(asset) < 2 {
		return 0
	}
	ma, mm := Mean(asset), Mean(market)
	var cov, vm float64
	for i := range asset {
		cov += (asset[i] - ma) * (market[i] - mm)
		vm += (market[i] - mm) * (market[i] - mm)
	}
	if vm == 0 {
		return 0
	}
	return cov / vm
}
