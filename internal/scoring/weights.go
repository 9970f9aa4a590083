package scoring

import (
	"fmt"
	"math"

	"github.com/zzhtl/biga/internal/analysis"
)

// Canonical factor names.
const (
	FactorTrend             = "trend"
	FactorVolumePrice       = "volume_price"
	FactorResonance         = "multi_timeframe_resonance"
	FactorMomentum          = "momentum"
	FactorPattern           = "pattern"
	FactorSupportResistance = "support_resistance"
	FactorSentiment         = "sentiment"
	FactorVolatility        = "volatility"
)

// FactorNames lists every canonical factor in scoring order.
var FactorNames = []string{
	FactorTrend,
	FactorVolumePrice,
	FactorResonance,
	FactorMomentum,
	FactorPattern,
	FactorSupportResistance,
	FactorSentiment,
	FactorVolatility,
}

// Weight bounds applied after every regime adjustment.
const (
	MinWeight = 0.02
	MaxWeight = 0.30

	weightSumTolerance = 1e-6
)

// Weights maps factor name to weight. A valid vector sums to 1.0 within
// tolerance.
type Weights map[string]float64

// DefaultWeights returns the baseline weight vector.
func DefaultWeights() Weights {
	return Weights{
		FactorTrend:             0.22,
		FactorVolumePrice:       0.18,
		FactorResonance:         0.15,
		FactorMomentum:          0.13,
		FactorPattern:           0.12,
		FactorSupportResistance: 0.10,
		FactorSentiment:         0.07,
		FactorVolatility:        0.03,
	}
}

// ConfigError reports a rejected configuration value. It is fatal: no
// computation happens on a rejected config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// Validate checks that the vector names every canonical factor, nothing
// else, and sums to 1.0 within tolerance. A partial vector is rejected:
// unnamed factors would score with weight zero and the clamped sum could
// drift away from 1.0 during regime adjustment.
func (w Weights) Validate() error {
	for name, v := range w {
		if !knownFactor(name) {
			return &ConfigError{Field: "factor_weights", Reason: "unknown factor " + name}
		}
		if v < 0 || math.IsNaN(v) {
			return &ConfigError{Field: "factor_weights", Reason: fmt.Sprintf("weight for %s is %f", name, v)}
		}
	}
	sum := 0.0
	for _, name := range FactorNames {
		v, ok := w[name]
		if !ok {
			return &ConfigError{Field: "factor_weights", Reason: "missing factor " + name}
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return &ConfigError{
			Field:  "factor_weights",
			Reason: fmt.Sprintf("weights sum to %.6f, want 1.0", sum),
		}
	}
	return nil
}

func knownFactor(name string) bool {
	for _, n := range FactorNames {
		if n == name {
			return true
		}
	}
	return false
}

// Clone copies the vector.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Regime is the market state that drives weight adjustment.
type Regime struct {
	Phase         analysis.MarketPhase
	ADX           float64
	VolatilityPct float64 // ATR as a percent of price
}

// AdjustWeights applies regime multipliers to the base vector, then
// clamps every weight to [MinWeight, MaxWeight] and renormalizes so the
// clamped vector still sums to 1.0. The input is never mutated.
func AdjustWeights(base Weights, regime Regime) Weights {
	w := base.Clone()

	if regime.ADX > 40 {
		w[FactorTrend] *= 1.30
		w[FactorResonance] *= 1.30
		w[FactorSupportResistance] *= 0.85
		w[FactorPattern] *= 0.85
	} else if regime.ADX > 0 && regime.ADX < 20 {
		w[FactorTrend] *= 0.80
		w[FactorSupportResistance] *= 1.20
		w[FactorPattern] *= 1.15
	}

	switch regime.Phase {
	case analysis.PhasePanic:
		w[FactorSentiment] *= 1.30
		w[FactorSupportResistance] *= 1.30
		w[FactorMomentum] *= 0.85
	case analysis.PhaseOverheated:
		w[FactorSentiment] *= 1.20
		w[FactorVolatility] *= 1.20
	}

	if regime.VolatilityPct > 4 {
		w[FactorVolatility] *= 1.50
		w[FactorTrend] *= 0.90
	}

	return normalizeClamped(w)
}

// normalizeClamped scales the vector to sum 1.0 while keeping every
// weight inside [MinWeight, MaxWeight]. Weights pinned at a bound stay
// fixed and the remainder is redistributed over the free ones, repeated
// until both invariants hold.
func normalizeClamped(w Weights) Weights {
	for i := 0; i < 8; i++ {
		for k, v := range w {
			w[k] = math.Min(MaxWeight, math.Max(MinWeight, v))
		}

		sum := 0.0
		for _, v := range w {
			sum += v
		}
		if math.Abs(sum-1.0) <= weightSumTolerance {
			return w
		}

		// Scale only the weights that still have room to move in the
		// needed direction.
		var free []string
		freeSum := 0.0
		for _, k := range FactorNames {
			v, ok := w[k]
			if !ok {
				continue
			}
			if (sum > 1.0 && v > MinWeight) || (sum < 1.0 && v < MaxWeight) {
				free = append(free, k)
				freeSum += v
			}
		}
		if len(free) == 0 || freeSum == 0 {
			break
		}
		excess := sum - 1.0
		for _, k := range free {
			w[k] -= excess * (w[k] / freeSum)
		}
	}

	// Exact final trim on a weight with room, so the sum invariant holds
	// to tolerance even after clamping noise.
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	diff := sum - 1.0
	for _, k := range FactorNames {
		v, ok := w[k]
		if !ok {
			continue
		}
		adjusted := v - diff
		if adjusted >= MinWeight && adjusted <= MaxWeight {
			w[k] = adjusted
			break
		}
	}
	return w
}
