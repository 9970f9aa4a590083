package indicator

// ============================================================================
// KDJ (stochastic oscillator family)
// ============================================================================

// KDJResult holds the K, D, and J series, aligned 1:1 with the input.
type KDJResult struct {
	K []float64
	D []float64
	J []float64
}

// KDJ computes the KDJ series. RSV = (close - LLV)/(HHV - LLV)*100 over
// the lookback window (50 when HHV equals LLV), K = 2/3*K_prev + 1/3*RSV,
// D likewise smoothed from K, J = 3K - 2D. K and D seed at 50.
func KDJ(highs, lows, closes []float64, n int) (*KDJResult, error) {
	if len(closes) < n || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrInsufficientData
	}

	k := warmup(len(closes), n-1)
	d := warmup(len(closes), n-1)
	j := warmup(len(closes), n-1)

	prevK, prevD := 50.0, 50.0
	for i := n - 1; i < len(closes); i++ {
		hhv, llv := highs[i], lows[i]
		for w := i - n + 1; w <= i; w++ {
			if highs[w] > hhv {
				hhv = highs[w]
			}
			if lows[w] < llv {
				llv = lows[w]
			}
		}

		rsv := 50.0
		if hhv != llv {
			rsv = (closes[i] - llv) / (hhv - llv) * 100
		}

		k[i] = prevK*2/3 + rsv/3
		d[i] = prevD*2/3 + k[i]/3
		j[i] = 3*k[i] - 2*d[i]
		prevK, prevD = k[i], d[i]
	}

	return &KDJResult{K: k, D: d, J: j}, nil
}

// GoldenCrossAt reports a K-over-D upward cross at index i with K below
// the overbought threshold (80).
func (r *KDJResult) GoldenCrossAt(i int) bool {
	if i < 1 || i >= len(r.K) || !valid(r.K[i-1]) || !valid(r.K[i]) {
		return false
	}
	return r.K[i-1] <= r.D[i-1] && r.K[i] > r.D[i] && r.K[i] < 80
}

// DeathCrossAt reports a K-under-D downward cross at index i with K above
// the oversold threshold (20).
func (r *KDJResult) DeathCrossAt(i int) bool {
	if i < 1 || i >= len(r.K) || !valid(r.K[i-1]) || !valid(r.K[i]) {
		return false
	}
	return r.K[i-1] >= r.D[i-1] && r.K[i] < r.D[i] && r.K[i] > 20
}
