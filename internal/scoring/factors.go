package scoring

import (
	"fmt"
	"math"

	"github.com/zzhtl/biga/internal/analysis"
	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/levels"
	"github.com/zzhtl/biga/internal/market"
	"github.com/zzhtl/biga/internal/patterns"
	"github.com/zzhtl/biga/internal/timeframe"
)

// FactorScore is one analyzer's contribution. RawScore is 0-100 where 50
// is neutral and higher favors the long side.
type FactorScore struct {
	Name      string  `json:"name"`
	RawScore  float64 `json:"raw_score"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale"`
	Degraded  bool    `json:"degraded"`
}

// Input bundles everything the factor scorers read. Every field is
// computed by the caller; missing analyzers leave their factor neutral.
type Input struct {
	Bars       []market.Bar
	Snapshot   indicator.Snapshot
	Trend      *analysis.TrendState
	Volume     *analysis.VolumeProfile
	Divergence analysis.Divergence
	Sentiment  *analysis.Sentiment
	Patterns   []patterns.DetectedPattern
	Levels     levels.Result
	MultiTF    timeframe.MultiTimeframeSignal
}

// BuildFactors runs the eight canonical factor scorers.
func BuildFactors(in Input) []FactorScore {
	return []FactorScore{
		scoreTrend(in),
		scoreVolumePrice(in),
		scoreResonance(in),
		scoreMomentum(in),
		scorePattern(in),
		scoreSupportResistance(in),
		scoreSentiment(in),
		scoreVolatility(in),
	}
}

// scoreTrend starts neutral and moves on MA alignment, price position
// against MA20, and the MA20 slope.
func scoreTrend(in Input) FactorScore {
	f := FactorScore{Name: FactorTrend, RawScore: 50, Rationale: "no trend signal"}
	ts := in.Trend
	if ts == nil {
		return f
	}

	score := 50.0
	switch {
	case ts.BullAligned:
		score += 25
		f.Rationale = "bullish MA alignment"
	case ts.BearAligned:
		score -= 25
		f.Rationale = "bearish MA alignment"
	default:
		f.Rationale = "mixed MA structure"
	}

	if ts.AboveMA20 {
		score += 12
	} else {
		score -= 12
	}

	switch {
	case ts.MA20Slope > 1:
		score += 8
	case ts.MA20Slope < -1:
		score -= 8
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scoreVolumePrice rewards volume confirming the move and penalizes
// opposing volume-price divergence.
func scoreVolumePrice(in Input) FactorScore {
	f := FactorScore{Name: FactorVolumePrice, RawScore: 50, Rationale: "no volume signal"}
	vp := in.Volume
	if vp == nil {
		return f
	}

	score := 50.0
	switch {
	case vp.Spike && vp.Confirming:
		score += 20
		f.Rationale = fmt.Sprintf("volume spike confirming move (%.1fx)", vp.Ratio)
	case vp.Confirming:
		score += 10
		f.Rationale = fmt.Sprintf("volume confirming move (%.1fx)", vp.Ratio)
	case vp.Spike:
		score -= 5
		f.Rationale = fmt.Sprintf("unconfirmed volume spike (%.1fx)", vp.Ratio)
	case vp.Shrinking:
		score -= 10
		f.Rationale = "volume drying up"
	default:
		f.Rationale = "volume near average"
	}

	switch in.Divergence.Type {
	case analysis.BullishDivergence:
		score += 15 * in.Divergence.Strength
		f.Rationale += "; bullish OBV divergence"
	case analysis.BearishDivergence:
		score -= 15 * in.Divergence.Strength
		f.Rationale += "; bearish OBV divergence"
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scoreResonance rewards timeframe agreement, 12 points per aligned
// timeframe, signed by direction.
func scoreResonance(in Input) FactorScore {
	f := FactorScore{Name: FactorResonance, RawScore: 50, Rationale: "timeframes neutral"}
	mtf := in.MultiTF

	score := 50.0
	switch mtf.ResonanceDirection {
	case timeframe.TrendBullish:
		score += 12 * float64(mtf.ResonanceLevel)
		f.Rationale = fmt.Sprintf("%d timeframes bullish", mtf.ResonanceLevel)
	case timeframe.TrendBearish:
		score -= 12 * float64(mtf.ResonanceLevel)
		f.Rationale = fmt.Sprintf("%d timeframes bearish", mtf.ResonanceLevel)
	}

	if mtf.Weekly.GoldenCross || mtf.Monthly.GoldenCross {
		score += 8
		f.Rationale += "; higher-timeframe golden cross"
	}
	if mtf.Weekly.DeathCross || mtf.Monthly.DeathCross {
		score -= 8
		f.Rationale += "; higher-timeframe death cross"
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scoreMomentum reads RSI extremes, KDJ and MACD cross state, and the
// histogram direction.
func scoreMomentum(in Input) FactorScore {
	f := FactorScore{Name: FactorMomentum, RawScore: 50, Rationale: "momentum neutral"}
	s := in.Snapshot

	score := 50.0
	if !math.IsNaN(s.RSI) {
		switch {
		case s.RSI < 30:
			score += 20
			f.Rationale = fmt.Sprintf("RSI oversold at %.1f", s.RSI)
		case s.RSI > 70:
			score -= 15
			f.Rationale = fmt.Sprintf("RSI overbought at %.1f", s.RSI)
		case s.RSI > 50:
			score += 5
			f.Rationale = "RSI above midline"
		default:
			score -= 5
			f.Rationale = "RSI below midline"
		}
	}

	switch {
	case s.MACDGoldenCross:
		score += 20
		f.Rationale += "; MACD golden cross"
	case s.MACDDeathCross:
		score -= 20
		f.Rationale += "; MACD death cross"
	case !math.IsNaN(s.MACDHist) && s.MACDHist > 0:
		score += 10
	case !math.IsNaN(s.MACDHist) && s.MACDHist < 0:
		score -= 10
	}

	if s.KDJGoldenCross {
		score += 15
		f.Rationale += "; KDJ golden cross"
	} else if s.KDJDeathCross {
		score -= 15
		f.Rationale += "; KDJ death cross"
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scorePattern sums recent pattern signals weighted by reliability.
// Only patterns completing within the last three bars count.
func scorePattern(in Input) FactorScore {
	f := FactorScore{Name: FactorPattern, RawScore: 50, Rationale: "no recent pattern"}
	if len(in.Bars) == 0 {
		return f
	}

	lastIdx := len(in.Bars) - 1
	score := 50.0
	for _, p := range in.Patterns {
		if lastIdx-p.BarIndex > 2 {
			continue
		}
		contribution := p.Reliability * 25
		if p.Bullish {
			score += contribution
			f.Rationale = "bullish " + string(p.Type)
		} else {
			score -= contribution
			f.Rationale = "bearish " + string(p.Type)
		}
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scoreSupportResistance scores proximity to the nearest support (good
// for entries) against proximity to resistance, plus the position inside
// the support-resistance range.
func scoreSupportResistance(in Input) FactorScore {
	f := FactorScore{Name: FactorSupportResistance, RawScore: 50, Rationale: "no reference levels"}
	if len(in.Bars) == 0 {
		return f
	}
	price := in.Bars[len(in.Bars)-1].Close
	if price <= 0 {
		return f
	}

	score := 50.0
	if len(in.Levels.Support) > 0 {
		dist := (price - in.Levels.Support[0].Price) / price
		switch {
		case dist <= 0.02:
			score += 15
			f.Rationale = "sitting on support"
		case dist <= 0.05:
			score += 8
			f.Rationale = "close above support"
		case dist <= 0.10:
			score += 3
			f.Rationale = "support within reach"
		}
	}
	if len(in.Levels.Resistance) > 0 {
		dist := (in.Levels.Resistance[0].Price - price) / price
		switch {
		case dist <= 0.02:
			score -= 15
			f.Rationale += "; pressing resistance"
		case dist <= 0.05:
			score -= 8
			f.Rationale += "; resistance overhead"
		}
	}

	if len(in.Levels.Support) > 0 && len(in.Levels.Resistance) > 0 {
		lo := in.Levels.Support[len(in.Levels.Support)-1].Price
		hi := in.Levels.Resistance[len(in.Levels.Resistance)-1].Price
		if hi > lo {
			pos := (price - lo) / (hi - lo)
			if pos < 0.3 {
				score += 8
			} else if pos > 0.7 {
				score -= 8
			}
		}
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scoreSentiment maps the fear-greed index onto the factor scale, fading
// extremes: euphoric readings are discounted and panic readings earn a
// contrarian bonus.
func scoreSentiment(in Input) FactorScore {
	f := FactorScore{Name: FactorSentiment, RawScore: 50, Rationale: "no sentiment reading"}
	s := in.Sentiment
	if s == nil {
		return f
	}

	score := s.FearGreed
	switch {
	case s.FearGreed > 75:
		score = math.Min(70, s.FearGreed*0.8)
		f.Rationale = fmt.Sprintf("euphoric sentiment (%.0f) discounted", s.FearGreed)
	case s.FearGreed < 25:
		score = math.Min(75, s.FearGreed+10)
		f.Rationale = fmt.Sprintf("panic sentiment (%.0f), contrarian bonus", s.FearGreed)
	default:
		f.Rationale = fmt.Sprintf("fear-greed at %.0f", s.FearGreed)
	}

	f.RawScore = clampScore(score, 5, 95)
	return f
}

// scoreVolatility favors calm regimes: low ATR earns a bonus, elevated
// ATR a penalty.
func scoreVolatility(in Input) FactorScore {
	f := FactorScore{Name: FactorVolatility, RawScore: 50, Rationale: "volatility unknown"}
	if len(in.Bars) == 0 || math.IsNaN(in.Snapshot.ATR) {
		return f
	}
	price := in.Bars[len(in.Bars)-1].Close
	if price <= 0 {
		return f
	}

	atrPct := in.Snapshot.ATR / price * 100
	score := 50.0
	switch {
	case atrPct < 1.0:
		score += 20
	case atrPct < 1.5:
		score += 10
	case atrPct < 3.0:
		// neutral band
	case atrPct < 5.0:
		score -= 15
	default:
		score -= 25
	}
	f.Rationale = fmt.Sprintf("ATR %.2f%% of price", atrPct)

	f.RawScore = clampScore(score, 5, 95)
	return f
}

func clampScore(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
