package memtable

import "math"

// quantileLinear returns the p-quantile of an already-sorted slice using
// linear interpolation between the two nearest order statistics (R type 7,
// the PERCENTILE_CONT definition).
func quantileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
