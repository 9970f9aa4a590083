package analysis

import (
	"math"

	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/market"
)

// MarketPhase is the discrete regime derived from the fear-greed index.
type MarketPhase string

const (
	PhaseOverheated MarketPhase = "overheated"
	PhaseRising     MarketPhase = "rising"
	PhaseRanging    MarketPhase = "ranging"
	PhaseDeclining  MarketPhase = "declining"
	PhasePanic      MarketPhase = "panic"
)

// Sentiment is a price-derived fear-greed reading.
type Sentiment struct {
	FearGreed float64     `json:"fear_greed"` // 0 (panic) to 100 (euphoria)
	Phase     MarketPhase `json:"phase"`

	RSI         float64 `json:"rsi"`
	Momentum    float64 `json:"momentum"` // 10-bar change percent
	VolumeRatio float64 `json:"volume_ratio"`
}

// AnalyzeSentiment composes a 0-100 fear-greed index from the RSI
// mid-line distance, 10-bar momentum, and the volume ratio against the
// trailing 20-bar average. Requires at least 30 bars.
func AnalyzeSentiment(bars []market.Bar) *Sentiment {
	if len(bars) < 30 {
		return nil
	}

	closes := market.Closes(bars)
	rsiSeries, err := indicator.RSI(closes, 14)
	if err != nil {
		return nil
	}
	rsi := rsiSeries[len(rsiSeries)-1]

	last := closes[len(closes)-1]
	past := closes[len(closes)-11]
	momentum := 0.0
	if past != 0 {
		momentum = (last - past) / past * 100
	}

	vp := AnalyzeVolume(bars, 20)
	ratio := 1.0
	if vp != nil {
		ratio = vp.Ratio
	}

	rsiComponent := rsi
	momentumComponent := clamp(50+momentum*4, 0, 100)
	volumeComponent := clamp(50*ratio, 0, 100)

	s := &Sentiment{
		RSI:         rsi,
		Momentum:    momentum,
		VolumeRatio: ratio,
	}
	s.FearGreed = clamp(0.5*rsiComponent+0.3*momentumComponent+0.2*volumeComponent, 0, 100)
	s.Phase = phaseOf(s.FearGreed)
	return s
}

func phaseOf(fearGreed float64) MarketPhase {
	switch {
	case fearGreed >= 80:
		return PhaseOverheated
	case fearGreed >= 60:
		return PhaseRising
	case fearGreed >= 40:
		return PhaseRanging
	case fearGreed >= 20:
		return PhaseDeclining
	default:
		return PhasePanic
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
