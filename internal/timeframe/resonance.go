package timeframe

import (
	"math"

	"github.com/zzhtl/biga/internal/indicator"
)

// TrendState is the direction a single timeframe is signalling.
type TrendState string

const (
	TrendBullish TrendState = "bullish"
	TrendBearish TrendState = "bearish"
	TrendNeutral TrendState = "neutral"
)

// TimeframeSignal summarizes the latest completed indicator state of one
// timeframe.
type TimeframeSignal struct {
	Granularity string     `json:"granularity"`
	Trend       TrendState `json:"trend"`
	GoldenCross bool       `json:"golden_cross"`
	DeathCross  bool       `json:"death_cross"`
}

// MultiTimeframeSignal carries the per-timeframe state plus the
// resonance summary: how many timeframes agree, and in which direction.
type MultiTimeframeSignal struct {
	Daily   TimeframeSignal `json:"daily"`
	Weekly  TimeframeSignal `json:"weekly"`
	Monthly TimeframeSignal `json:"monthly"`

	ResonanceLevel     int        `json:"resonance_level"`
	ResonanceDirection TrendState `json:"resonance_direction"`
	Confidence         float64    `json:"confidence"`
}

// Resonance combines the latest daily snapshot with the forward-filled
// weekly and monthly snapshots into one multi-timeframe signal. A
// timeframe with no completed snapshot stays neutral and never counts
// toward the resonance level.
func Resonance(daily indicator.Snapshot, weekly, monthly *indicator.Snapshot) MultiTimeframeSignal {
	sig := MultiTimeframeSignal{
		Daily:   classify("daily", &daily),
		Weekly:  classify("weekly", weekly),
		Monthly: classify("monthly", monthly),
	}

	bulls, bears := 0, 0
	for _, tf := range []TimeframeSignal{sig.Daily, sig.Weekly, sig.Monthly} {
		switch tf.Trend {
		case TrendBullish:
			bulls++
		case TrendBearish:
			bears++
		}
	}

	switch {
	case bulls > bears:
		sig.ResonanceLevel = bulls
		sig.ResonanceDirection = TrendBullish
	case bears > bulls:
		sig.ResonanceLevel = bears
		sig.ResonanceDirection = TrendBearish
	default:
		sig.ResonanceLevel = 0
		sig.ResonanceDirection = TrendNeutral
	}

	sig.Confidence = 0.5
	if sig.ResonanceLevel > 0 {
		sig.Confidence = math.Min(0.95, 0.5+0.15*float64(sig.ResonanceLevel))
	}
	return sig
}

// classify votes a trend direction from MACD histogram, KDJ position and
// RSI mid-line distance. Missing or warm-up values abstain.
func classify(granularity string, s *indicator.Snapshot) TimeframeSignal {
	sig := TimeframeSignal{Granularity: granularity, Trend: TrendNeutral}
	if s == nil {
		return sig
	}

	votes := 0
	if !math.IsNaN(s.MACDHist) {
		if s.MACDHist > 0 {
			votes++
		} else if s.MACDHist < 0 {
			votes--
		}
	}
	if !math.IsNaN(s.K) && !math.IsNaN(s.D) {
		if s.K > s.D {
			votes++
		} else if s.K < s.D {
			votes--
		}
	}
	if !math.IsNaN(s.RSI) {
		if s.RSI > 50 {
			votes++
		} else if s.RSI < 50 {
			votes--
		}
	}

	if votes > 0 {
		sig.Trend = TrendBullish
	} else if votes < 0 {
		sig.Trend = TrendBearish
	}
	sig.GoldenCross = s.MACDGoldenCross || s.KDJGoldenCross
	sig.DeathCross = s.MACDDeathCross || s.KDJDeathCross
	return sig
}
