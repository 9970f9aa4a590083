package indicator

import "math"

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds the three band series, aligned 1:1 with the input.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes Bollinger Bands: middle = SMA(period), bands at
// middle +/- k * population standard deviation of the window.
func Bollinger(closes []float64, period int, k float64) (*BollingerResult, error) {
	mid, err := SMA(closes, period)
	if err != nil {
		return nil, err
	}

	upper := warmup(len(closes), period-1)
	lower := warmup(len(closes), period-1)
	for i := period - 1; i < len(closes); i++ {
		variance := 0.0
		for w := i - period + 1; w <= i; w++ {
			diff := closes[w] - mid[i]
			variance += diff * diff
		}
		stddev := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + k*stddev
		lower[i] = mid[i] - k*stddev
	}

	return &BollingerResult{Upper: upper, Middle: mid, Lower: lower}, nil
}
