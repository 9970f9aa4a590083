package indicator

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================
//
// All series functions return output 1:1 aligned with the input. Entries
// before the minimum window carry math.NaN() as the warm-up sentinel.

// SMA computes a simple moving average series.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}

	out := warmup(len(values), period-1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA computes an exponential moving average series seeded with an SMA
// over the first period values. alpha = 2/(period+1).
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, ErrInsufficientData
	}

	out := warmup(len(values), period-1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out, nil
}

// emaFrom runs the EMA recurrence over a series whose entries before
// offset are warm-up NaNs, seeding with an SMA of the first period valid
// values. Used for smoothing derived series such as the MACD DIF line.
func emaFrom(values []float64, offset, period int) []float64 {
	out := warmup(len(values), len(values))
	first := offset + period - 1
	if first >= len(values) {
		return out
	}

	sum := 0.0
	for i := offset; i <= first; i++ {
		sum += values[i]
	}
	out[first] = sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := first + 1; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out
}

// wilder runs Wilder's smoothing (alpha = 1/period) over a series whose
// entries before offset are warm-up NaNs, seeding with a simple average.
func wilder(values []float64, offset, period int) []float64 {
	out := warmup(len(values), len(values))
	first := offset + period - 1
	if first >= len(values) {
		return out
	}

	sum := 0.0
	for i := offset; i <= first; i++ {
		sum += values[i]
	}
	out[first] = sum / float64(period)

	for i := first + 1; i < len(values); i++ {
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}

// warmup allocates a series of length n with the first warm NaN entries.
func warmup(n, warm int) []float64 {
	out := make([]float64, n)
	if warm > n {
		warm = n
	}
	for i := 0; i < warm; i++ {
		out[i] = math.NaN()
	}
	return out
}

// valid reports whether v is a computed value rather than a warm-up
// sentinel.
func valid(v float64) bool {
	return !math.IsNaN(v)
}
