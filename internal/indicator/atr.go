package indicator

import "math"

// ============================================================================
// ATR / DMI / ADX (Wilder-smoothed)
// ============================================================================

// TrueRange computes the true range series. The first entry falls back to
// the plain high-low range.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = highs[i] - lows[i]
			continue
		}
		out[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return out
}

// ATR computes the Wilder-smoothed average true range series.
func ATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if period <= 0 || len(closes) < period+1 ||
		len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrInsufficientData
	}

	tr := TrueRange(highs, lows, closes)
	return wilder(tr, 1, period), nil
}

// DMIResult holds the directional movement series, aligned 1:1 with the
// input. ADX warms up over roughly twice the period.
type DMIResult struct {
	PlusDI  []float64
	MinusDI []float64
	ADX     []float64
}

// DMIADX computes Wilder's directional movement system: smoothed +DM/-DM
// over smoothed TR give DI+ and DI-, DX = 100*|DI+ - DI-|/(DI+ + DI-),
// and ADX is the Wilder-smoothed DX.
func DMIADX(highs, lows, closes []float64, period int) (*DMIResult, error) {
	if period <= 0 || len(closes) < 2*period ||
		len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrInsufficientData
	}

	n := len(closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	tr := TrueRange(highs, lows, closes)
	sTR := wilder(tr, 1, period)
	sPlus := wilder(plusDM, 1, period)
	sMinus := wilder(minusDM, 1, period)

	plusDI := warmup(n, period)
	minusDI := warmup(n, period)
	dx := warmup(n, period)
	for i := period; i < n; i++ {
		if !valid(sTR[i]) || sTR[i] == 0 {
			continue
		}
		plusDI[i] = sPlus[i] / sTR[i] * 100
		minusDI[i] = sMinus[i] / sTR[i] * 100
		sum := plusDI[i] + minusDI[i]
		if sum > 0 {
			dx[i] = math.Abs(plusDI[i]-minusDI[i]) / sum * 100
		} else {
			dx[i] = 0
		}
	}

	adx := wilder(dx, period, period)

	return &DMIResult{PlusDI: plusDI, MinusDI: minusDI, ADX: adx}, nil
}
