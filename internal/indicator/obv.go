package indicator

// ============================================================================
// OBV (On-Balance Volume)
// ============================================================================

// OBV computes the on-balance volume series. The first entry is the first
// bar's volume; volume is added on up closes and subtracted on down ones.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	out[0] = volumes[0]
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}
