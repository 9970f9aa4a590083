package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/ensemble"
	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/market"
	"github.com/zzhtl/biga/internal/timeframe"
)

// Confidence decay bases per prediction day. The full technical pipeline
// decays slower than the plain trend extrapolation fallback.
const (
	TechDecayBase        = 0.92
	SimpleTrendDecayBase = 0.90
)

// ModelSource is an external predictor fused into the ensemble alongside
// the built-in models.
type ModelSource interface {
	ID() string
	Kind() ensemble.SourceKind
	Weight() float64
	// Predict returns the expected per-day fractional change and a
	// confidence in [0,1] from history alone.
	Predict(ctx context.Context, bars []market.Bar, horizonDays int) (change, confidence float64, err error)
}

// DailyPrediction is one forward day in a prediction response.
type DailyPrediction struct {
	Date            time.Time `json:"date"`
	PredictedPrice  float64   `json:"predicted_price"`
	PredictedChange float64   `json:"predicted_change"` // vs previous day
	Confidence      float64   `json:"confidence"`
}

// LastRealData anchors the forecast to the final observed bar.
type LastRealData struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PredictionResponse is the forward view over a requested horizon.
type PredictionResponse struct {
	Symbol      string    `json:"symbol"`
	GeneratedAt time.Time `json:"generated_at"`

	Days          []DailyPrediction             `json:"predictions"`
	TradingSignal string                        `json:"trading_signal"` // buy, sell, hold
	Reasons       []string                      `json:"reasons"`
	KeyFactors    []string                      `json:"key_factors"`
	Indicators    indicator.Snapshot            `json:"indicators"`
	Ensemble      *ensemble.EnsemblePrediction  `json:"ensemble,omitempty"`
	LastRealData  LastRealData                  `json:"last_real_data"`
	Warnings      []string                      `json:"warnings,omitempty"`
}

// Predict forecasts the next `days` daily closes. External model sources
// are fused when enough of them answer; otherwise the response degrades
// to the built-in technical prediction with a warning.
func (e *Engine) Predict(ctx context.Context, bars []market.Bar, days int) (*PredictionResponse, error) {
	if days < 1 {
		days = 1
	}
	b, err := e.analyze(ctx, bars)
	if err != nil {
		return nil, err
	}

	resp := &PredictionResponse{
		Symbol:      b.last.Symbol,
		GeneratedAt: time.Now().UTC(),
		Indicators:  b.snapshot,
		LastRealData: LastRealData{
			Date:   b.last.Date,
			Close:  b.last.Close,
			Volume: b.last.Volume,
		},
		Warnings: b.warnings,
	}

	preds := e.modelPredictions(ctx, bars, days, b, resp)
	baseChange, baseConf, decay := e.fuse(preds, b, resp)

	price := b.last.Close
	date := b.last.Date
	resp.Days = make([]DailyPrediction, 0, days)
	for i := 1; i <= days; i++ {
		date = nextTradingDay(date)
		change := baseChange * math.Pow(decay, float64(i-1))
		price = price * (1 + change)
		resp.Days = append(resp.Days, DailyPrediction{
			Date:            date,
			PredictedPrice:  price,
			PredictedChange: change,
			Confidence:      clampRange(baseConf*math.Pow(decay, float64(i)), 0.05, 0.95),
		})
	}

	resp.TradingSignal = tradingSignal(b)
	resp.Reasons = reasons(b)
	resp.KeyFactors = keyFactors(b)
	return resp, nil
}

// modelPredictions gathers the built-in and external model outputs.
// A failing external source is skipped with a warning, never fatal.
func (e *Engine) modelPredictions(ctx context.Context, bars []market.Bar, days int, b *bundle, resp *PredictionResponse) []ensemble.ModelPrediction {
	preds := []ensemble.ModelPrediction{e.technicalPrediction(b), e.trendPrediction(bars)}

	for _, src := range e.sources {
		change, conf, err := src.Predict(ctx, bars, days)
		if err != nil {
			e.log.Warn().Err(err).Str("source", src.ID()).Msg("model source failed")
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("model source %s unavailable: %v", src.ID(), err))
			continue
		}
		preds = append(preds, ensemble.ModelPrediction{
			SourceID:   src.ID(),
			Kind:       src.Kind(),
			Direction:  directionOf(change),
			Change:     change,
			Confidence: clampRange(conf, 0, 1),
			Weight:     src.Weight(),
		})
	}
	return preds
}

// technicalPrediction translates the multi-factor score into an expected
// per-day change scaled by realized volatility.
func (e *Engine) technicalPrediction(b *bundle) ensemble.ModelPrediction {
	moveScale := 0.01
	if !math.IsNaN(b.snapshot.ATR) && b.last.Close > 0 {
		moveScale = clampRange(b.snapshot.ATR/b.last.Close, 0.005, 0.03)
	}
	change := (b.score.TotalScore - 50) / 50 * moveScale
	return ensemble.ModelPrediction{
		SourceID:   "builtin-technical",
		Kind:       ensemble.KindTechnical,
		Direction:  directionOf(change),
		Change:     change,
		Confidence: clampRange(b.score.TotalScore/100, 0.3, 0.9),
		Weight:     1.0,
	}
}

// trendPrediction extrapolates the damped mean daily change of the last
// ten bars.
func (e *Engine) trendPrediction(bars []market.Bar) ensemble.ModelPrediction {
	const window = 10
	start := len(bars) - window
	if start < 1 {
		start = 1
	}
	var sum float64
	var n int
	for i := start; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev > 0 {
			sum += (bars[i].Close - prev) / prev
			n++
		}
	}
	change := 0.0
	if n > 0 {
		change = sum / float64(n) * 0.5
	}
	return ensemble.ModelPrediction{
		SourceID:   "builtin-trend",
		Kind:       ensemble.KindStatistical,
		Direction:  directionOf(change),
		Change:     change,
		Confidence: 0.5,
		Weight:     0.8,
	}
}

// fuse runs ensemble fusion over the gathered predictions; when too few
// models answered it falls back to the technical model alone.
func (e *Engine) fuse(preds []ensemble.ModelPrediction, b *bundle, resp *PredictionResponse) (change, confidence, decay float64) {
	vol := math.Min(1, b.regime.VolatilityPct/10)
	fused, err := ensemble.Fuse(preds, e.cfg.Ensemble, vol)
	if err == nil {
		resp.Ensemble = fused
		resp.Warnings = append(resp.Warnings, fused.Warnings...)
		return fused.FinalChange, fused.EnsembleConfidence, TechDecayBase
	}
	if !errors.Is(err, ensemble.ErrInsufficientModels) {
		e.log.Warn().Err(err).Msg("ensemble fusion failed")
	}

	tech := preds[0]
	if b.snapshot.Incomplete {
		trend := preds[1]
		resp.Warnings = append(resp.Warnings, "ensemble unavailable, degraded to trend extrapolation")
		return trend.Change, trend.Confidence, SimpleTrendDecayBase
	}
	resp.Warnings = append(resp.Warnings, "ensemble unavailable, degraded to technical-only prediction")
	return tech.Change, tech.Confidence, TechDecayBase
}

func tradingSignal(b *bundle) string {
	bullConfirm := (b.trend != nil && b.trend.BullAligned) ||
		(b.multiTF.ResonanceDirection == timeframe.TrendBullish && b.multiTF.ResonanceLevel >= 2)
	bearConfirm := (b.trend != nil && b.trend.BearAligned) ||
		(b.multiTF.ResonanceDirection == timeframe.TrendBearish && b.multiTF.ResonanceLevel >= 2)

	switch {
	case b.score.TotalScore >= 60 && bullConfirm:
		return "buy"
	case b.score.TotalScore <= 40 && bearConfirm:
		return "sell"
	default:
		return "hold"
	}
}

// reasons lists the rationale of every factor that moved meaningfully
// away from neutral.
func reasons(b *bundle) []string {
	var out []string
	for _, f := range b.score.Factors {
		if math.Abs(f.RawScore-50) >= 15 && f.Rationale != "" {
			out = append(out, f.Rationale)
		}
	}
	return out
}

// keyFactors names the three factors contributing most to the total.
func keyFactors(b *bundle) []string {
	factors := make([]struct {
		name   string
		impact float64
	}, 0, len(b.score.Factors))
	for _, f := range b.score.Factors {
		factors = append(factors, struct {
			name   string
			impact float64
		}{f.Name, f.Weight * math.Abs(f.RawScore-50)})
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].impact > factors[j].impact })

	n := 3
	if len(factors) < n {
		n = len(factors)
	}
	out := make([]string, 0, n)
	for _, f := range factors[:n] {
		out = append(out, f.name)
	}
	return out
}

// nextTradingDay skips weekends. Exchange holidays are not modeled.
func nextTradingDay(d time.Time) time.Time {
	d = d.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func directionOf(change float64) int {
	switch {
	case change > ensemble.DirectionEpsilon:
		return 1
	case change < -ensemble.DirectionEpsilon:
		return -1
	default:
		return 0
	}
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// BacktestPredictor adapts the engine to the walk-forward runner.
type BacktestPredictor struct {
	Engine *Engine
}

func (p BacktestPredictor) Predict(ctx context.Context, bars []market.Bar, horizonDays int) (*backtest.Prediction, error) {
	resp, err := p.Engine.Predict(ctx, bars, horizonDays)
	if err != nil {
		return nil, err
	}
	last := resp.Days[len(resp.Days)-1]
	base := resp.LastRealData.Close
	change := 0.0
	if base > 0 {
		change = (last.PredictedPrice - base) / base
	}
	return &backtest.Prediction{
		PredictedPrice:  last.PredictedPrice,
		PredictedChange: change,
		Direction:       directionOf(change),
		Confidence:      last.Confidence,
	}, nil
}
