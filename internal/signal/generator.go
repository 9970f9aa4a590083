package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/zzhtl/biga/internal/analysis"
	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/levels"
	"github.com/zzhtl/biga/internal/market"
	"github.com/zzhtl/biga/internal/scoring"
	"github.com/zzhtl/biga/internal/timeframe"
)

// PointType marks the side of a signal.
type PointType string

const (
	Buy  PointType = "buy"
	Sell PointType = "sell"
)

// BuySellPoint is one emitted trading signal. Points are immutable: a
// new bar produces a new record, never an edit.
type BuySellPoint struct {
	ID             string    `json:"id"`
	Type           PointType `json:"type"`
	Date           time.Time `json:"date"`
	PriceLevel     float64   `json:"price_level"`
	StopLoss       float64   `json:"stop_loss"`
	TakeProfit     []float64 `json:"take_profit"`
	RiskReward     float64   `json:"risk_reward_ratio"`
	Confidence     float64   `json:"confidence"`
	SignalStrength string    `json:"signal_strength"`
	Reasons        []string  `json:"reasons"`
	AccuracyRate   float64   `json:"accuracy_rate,omitempty"`
}

// Oracle supplies historical success rates per signal type and
// confidence bucket. It only adjusts the displayed accuracy, never the
// scoring math.
type Oracle interface {
	AccuracyRate(signalType string, confidence float64) (float64, bool)
}

// Input bundles the analyzer outputs a generation pass reads.
type Input struct {
	Bars       []market.Bar
	Score      *scoring.MultiFactorScore
	Levels     levels.Result
	MultiTF    timeframe.MultiTimeframeSignal
	Trend      *analysis.TrendState
	Divergence analysis.Divergence
	Snapshot   indicator.Snapshot
	Oracle     Oracle
}

// Generator derives buy/sell points from scored factors and structure
// levels.
type Generator struct {
	ScoreThreshold float64 // minimum total score for a buy point
	ATRBuffer      float64 // ATR multiple added beyond the stop level
	MaxTakeProfits int
}

// NewGenerator returns a generator with the default gate (60) and a half
// ATR stop buffer.
func NewGenerator() *Generator {
	return &Generator{
		ScoreThreshold: 60,
		ATRBuffer:      0.5,
		MaxTakeProfits: 3,
	}
}

// Generate emits at most one buy and one sell point for the latest bar.
// A point requires the score gate plus at least one structural
// confirmation (trend alignment or resonance of 2+), so a single hot
// factor cannot fire a signal alone.
func (g *Generator) Generate(in Input) []BuySellPoint {
	if len(in.Bars) == 0 || in.Score == nil {
		return nil
	}
	last := in.Bars[len(in.Bars)-1]

	var points []BuySellPoint
	if p, ok := g.buyPoint(in, last); ok {
		points = append(points, p)
	}
	if p, ok := g.sellPoint(in, last); ok {
		points = append(points, p)
	}
	return points
}

func (g *Generator) buyPoint(in Input, last market.Bar) (BuySellPoint, bool) {
	if in.Score.TotalScore < g.ScoreThreshold {
		return BuySellPoint{}, false
	}

	trendAligned := in.Trend != nil && in.Trend.BullAligned
	resonant := in.MultiTF.ResonanceDirection == timeframe.TrendBullish && in.MultiTF.ResonanceLevel >= 2
	if !trendAligned && !resonant {
		return BuySellPoint{}, false
	}

	price := last.Close
	atr := in.Snapshot.ATR
	if math.IsNaN(atr) || atr <= 0 {
		atr = price * 0.02
	}

	stop := price - 2*atr
	if len(in.Levels.Support) > 0 {
		stop = in.Levels.Support[0].Price - g.ATRBuffer*atr
	}
	if stop >= price {
		return BuySellPoint{}, false
	}

	var takeProfits []float64
	for _, lv := range in.Levels.Resistance {
		if lv.Price > price {
			takeProfits = append(takeProfits, lv.Price)
		}
		if len(takeProfits) == g.MaxTakeProfits {
			break
		}
	}
	if len(takeProfits) == 0 {
		takeProfits = []float64{price + 2*atr}
	}

	rr := (takeProfits[0] - price) / (price - stop)

	reasons := []string{
		fmt.Sprintf("multi-factor score %.1f (%s)", in.Score.TotalScore, in.Score.SignalQuality),
	}
	if trendAligned {
		reasons = append(reasons, "bullish MA alignment")
	}
	if resonant {
		reasons = append(reasons, fmt.Sprintf("%d timeframes resonating bullish", in.MultiTF.ResonanceLevel))
	}
	if len(in.Levels.Support) > 0 {
		reasons = append(reasons, fmt.Sprintf("stop anchored at support %.2f", in.Levels.Support[0].Price))
	}

	p := BuySellPoint{
		ID:             uuid.New().String(),
		Type:           Buy,
		Date:           last.Date,
		PriceLevel:     price,
		StopLoss:       stop,
		TakeProfit:     takeProfits,
		RiskReward:     rr,
		Confidence:     g.confidence(in, true),
		SignalStrength: in.Score.SignalQuality,
		Reasons:        reasons,
	}
	g.applyOracle(&p, in.Oracle)
	return p, true
}

func (g *Generator) sellPoint(in Input, last market.Bar) (BuySellPoint, bool) {
	if in.Score.TotalScore > 100-g.ScoreThreshold {
		return BuySellPoint{}, false
	}

	trendAligned := in.Trend != nil && in.Trend.BearAligned
	resonant := in.MultiTF.ResonanceDirection == timeframe.TrendBearish && in.MultiTF.ResonanceLevel >= 2
	if !trendAligned && !resonant {
		return BuySellPoint{}, false
	}

	price := last.Close
	atr := in.Snapshot.ATR
	if math.IsNaN(atr) || atr <= 0 {
		atr = price * 0.02
	}

	stop := price + 2*atr
	if len(in.Levels.Resistance) > 0 {
		stop = in.Levels.Resistance[0].Price + g.ATRBuffer*atr
	}
	if stop <= price {
		return BuySellPoint{}, false
	}

	var takeProfits []float64
	for _, lv := range in.Levels.Support {
		if lv.Price < price {
			takeProfits = append(takeProfits, lv.Price)
		}
		if len(takeProfits) == g.MaxTakeProfits {
			break
		}
	}
	if len(takeProfits) == 0 {
		takeProfits = []float64{price - 2*atr}
	}

	rr := (price - takeProfits[0]) / (stop - price)

	reasons := []string{
		fmt.Sprintf("multi-factor score %.1f (%s)", in.Score.TotalScore, in.Score.SignalQuality),
	}
	if trendAligned {
		reasons = append(reasons, "bearish MA alignment")
	}
	if resonant {
		reasons = append(reasons, fmt.Sprintf("%d timeframes resonating bearish", in.MultiTF.ResonanceLevel))
	}

	p := BuySellPoint{
		ID:             uuid.New().String(),
		Type:           Sell,
		Date:           last.Date,
		PriceLevel:     price,
		StopLoss:       stop,
		TakeProfit:     takeProfits,
		RiskReward:     rr,
		Confidence:     g.confidence(in, false),
		SignalStrength: in.Score.SignalQuality,
		Reasons:        reasons,
	}
	g.applyOracle(&p, in.Oracle)
	return p, true
}

// confidence blends the total score, resonance depth, and divergence
// absence into [0.1, 0.95].
func (g *Generator) confidence(in Input, buySide bool) float64 {
	score := in.Score.TotalScore
	if !buySide {
		score = 100 - score
	}

	c := score / 100 * 0.6
	c += 0.08 * float64(in.MultiTF.ResonanceLevel)

	opposing := (buySide && in.Divergence.Type == analysis.BearishDivergence) ||
		(!buySide && in.Divergence.Type == analysis.BullishDivergence)
	if !opposing {
		c += 0.10
	} else {
		c -= 0.10 * in.Divergence.Strength
	}

	return math.Min(0.95, math.Max(0.10, c))
}

func (g *Generator) applyOracle(p *BuySellPoint, oracle Oracle) {
	if oracle == nil {
		return
	}
	if rate, ok := oracle.AccuracyRate(string(p.Type), p.Confidence); ok {
		p.AccuracyRate = rate
	}
}
