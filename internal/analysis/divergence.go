package analysis

import (
	"math"

	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/market"
)

// DivergenceType classifies a volume-price divergence.
type DivergenceType string

const (
	NoDivergence       DivergenceType = "none"
	BullishDivergence  DivergenceType = "bullish"
	BearishDivergence  DivergenceType = "bearish"
)

// Divergence is the result of comparing the price-trend slope against
// the OBV-trend slope over one window.
type Divergence struct {
	Type       DivergenceType `json:"type"`
	Strength   float64        `json:"strength"` // 0.0 to 1.0
	PriceSlope float64        `json:"price_slope"`
	OBVSlope   float64        `json:"obv_slope"`
	Window     int            `json:"window"`
}

// DetectDivergence fits a least-squares slope to min-max normalized
// close and OBV series over the trailing window. Price falling while OBV
// rises is bullish; price rising while OBV falls is bearish. Strength is
// the capped sum of the opposing slope magnitudes.
func DetectDivergence(bars []market.Bar, window int) Divergence {
	d := Divergence{Type: NoDivergence, Window: window}
	if window < 5 || len(bars) < window {
		return d
	}

	tail := bars[len(bars)-window:]
	closes := market.Closes(tail)
	obv := indicator.OBV(closes, market.Volumes(tail))

	d.PriceSlope = normalizedSlope(closes)
	d.OBVSlope = normalizedSlope(obv)

	switch {
	case d.PriceSlope < 0 && d.OBVSlope > 0:
		d.Type = BullishDivergence
	case d.PriceSlope > 0 && d.OBVSlope < 0:
		d.Type = BearishDivergence
	default:
		return d
	}

	d.Strength = math.Min(1, (math.Abs(d.PriceSlope)+math.Abs(d.OBVSlope))*float64(window)/2)
	return d
}

// normalizedSlope min-max scales the series to [0,1] and returns the
// least-squares slope per bar. A constant series has slope 0.
func normalizedSlope(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return 0
	}

	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		y := (v - lo) / (hi - lo)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
