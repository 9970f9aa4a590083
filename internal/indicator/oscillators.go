package indicator

import "math"

// ============================================================================
// OSCILLATORS (Williams %R, ROC, CCI)
// ============================================================================

// WilliamsR computes the Williams %R series, ranging from -100 to 0.
func WilliamsR(highs, lows, closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period ||
		len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrInsufficientData
	}

	out := warmup(len(closes), period-1)
	for i := period - 1; i < len(closes); i++ {
		hhv, llv := highs[i], lows[i]
		for w := i - period + 1; w <= i; w++ {
			if highs[w] > hhv {
				hhv = highs[w]
			}
			if lows[w] < llv {
				llv = lows[w]
			}
		}
		if hhv == llv {
			out[i] = -50
			continue
		}
		out[i] = (hhv - closes[i]) / (hhv - llv) * -100
	}
	return out, nil
}

// ROC computes the rate-of-change series as a percentage of the close
// period bars earlier.
func ROC(closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return nil, ErrInsufficientData
	}

	out := warmup(len(closes), period)
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			out[i] = 0
			continue
		}
		out[i] = (closes[i] - closes[i-period]) / closes[i-period] * 100
	}
	return out, nil
}

// CCI computes the Commodity Channel Index over typical prices with the
// standard 0.015 scaling constant.
func CCI(highs, lows, closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period ||
		len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrInsufficientData
	}

	tp := make([]float64, len(closes))
	for i := range closes {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}

	out := warmup(len(closes), period-1)
	for i := period - 1; i < len(closes); i++ {
		sum := 0.0
		for w := i - period + 1; w <= i; w++ {
			sum += tp[w]
		}
		mean := sum / float64(period)

		dev := 0.0
		for w := i - period + 1; w <= i; w++ {
			dev += math.Abs(tp[w] - mean)
		}
		dev /= float64(period)

		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean) / (0.015 * dev)
	}
	return out, nil
}
