package indicator

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds the three MACD series, aligned 1:1 with the input.
type MACDResult struct {
	DIF  []float64 // fast EMA - slow EMA
	DEA  []float64 // EMA of DIF over the signal period
	Hist []float64 // 2 * (DIF - DEA)
}

// MACD computes the full MACD series with the standard recurrence:
// EMA_t = EMA_{t-1} + alpha*(price_t - EMA_{t-1}), alpha = 2/(period+1),
// fast and slow EMAs seeded with an SMA over their first period.
func MACD(closes []float64, fast, slow, signal int) (*MACDResult, error) {
	if len(closes) < slow+signal {
		return nil, ErrInsufficientData
	}

	fastEMA, err := EMA(closes, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := EMA(closes, slow)
	if err != nil {
		return nil, err
	}

	dif := warmup(len(closes), slow-1)
	for i := slow - 1; i < len(closes); i++ {
		dif[i] = fastEMA[i] - slowEMA[i]
	}

	dea := emaFrom(dif, slow-1, signal)

	hist := warmup(len(closes), len(closes))
	for i := range hist {
		if valid(dif[i]) && valid(dea[i]) {
			hist[i] = 2 * (dif[i] - dea[i])
		}
	}

	return &MACDResult{DIF: dif, DEA: dea, Hist: hist}, nil
}

// GoldenCrossAt reports whether DIF crossed above DEA at index i.
func (r *MACDResult) GoldenCrossAt(i int) bool {
	if i < 1 || i >= len(r.DIF) {
		return false
	}
	if !valid(r.DIF[i-1]) || !valid(r.DEA[i-1]) || !valid(r.DIF[i]) || !valid(r.DEA[i]) {
		return false
	}
	return r.DIF[i-1] <= r.DEA[i-1] && r.DIF[i] > r.DEA[i]
}

// DeathCrossAt reports whether DIF crossed below DEA at index i.
func (r *MACDResult) DeathCrossAt(i int) bool {
	if i < 1 || i >= len(r.DIF) {
		return false
	}
	if !valid(r.DIF[i-1]) || !valid(r.DEA[i-1]) || !valid(r.DIF[i]) || !valid(r.DEA[i]) {
		return false
	}
	return r.DIF[i-1] >= r.DEA[i-1] && r.DIF[i] < r.DEA[i]
}

// AboveZeroAt reports whether both DIF and DEA are above the zero axis
// at index i.
func (r *MACDResult) AboveZeroAt(i int) bool {
	if i < 0 || i >= len(r.DIF) || !valid(r.DIF[i]) || !valid(r.DEA[i]) {
		return false
	}
	return r.DIF[i] > 0 && r.DEA[i] > 0
}
