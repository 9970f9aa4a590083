package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/internal/analysis"
	"github.com/zzhtl/biga/internal/ensemble"
	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/levels"
	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/market"
	"github.com/zzhtl/biga/internal/patterns"
	"github.com/zzhtl/biga/internal/scoring"
	"github.com/zzhtl/biga/internal/signal"
	"github.com/zzhtl/biga/internal/timeframe"
)

// MinAnalysisBars is the shortest history the full pipeline accepts.
// Shorter series still produce degraded indicator output, but trend and
// sentiment analysis need this much context to mean anything.
const MinAnalysisBars = 60

// Config is the engine's tunable surface.
type Config struct {
	IndicatorParams  indicator.Params
	Weights          scoring.Weights // nil means scoring.DefaultWeights
	Ensemble         ensemble.Config
	DivergenceWindow int
	VolumePeriod     int
	DojiBodyRatio    float64
}

func DefaultConfig() Config {
	return Config{
		IndicatorParams:  indicator.DefaultParams(),
		Ensemble:         ensemble.DefaultConfig(),
		DivergenceWindow: 14,
		VolumePeriod:     20,
		DojiBodyRatio:    0.1,
	}
}

// Engine runs the full analysis pipeline and fuses optional external
// model sources into forward predictions.
type Engine struct {
	cfg      Config
	log      zerolog.Logger
	patterns *patterns.Detector
	levels   *levels.Detector
	signals  *signal.Generator
	oracle   signal.Oracle
	sources  []ModelSource
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithOracle attaches historical accuracy rates to emitted signals.
func WithOracle(o signal.Oracle) Option {
	return func(e *Engine) { e.oracle = o }
}

// WithModelSources registers external predictors fused alongside the
// built-in technical and trend models.
func WithModelSources(sources ...ModelSource) Option {
	return func(e *Engine) { e.sources = append(e.sources, sources...) }
}

func New(cfg Config, log zerolog.Logger, opts ...Option) *Engine {
	if cfg.DivergenceWindow < 5 {
		cfg.DivergenceWindow = 14
	}
	if cfg.VolumePeriod < 2 {
		cfg.VolumePeriod = 20
	}
	if cfg.DojiBodyRatio <= 0 {
		cfg.DojiBodyRatio = 0.1
	}
	e := &Engine{
		cfg:      cfg,
		log:      logging.Component(log, "engine"),
		patterns: patterns.NewDetector(cfg.DojiBodyRatio),
		levels:   levels.NewDetector(),
		signals:  signal.NewGenerator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithWeights returns a copy of the engine scoring with the given base
// weight vector. The vector must already be validated.
func (e *Engine) WithWeights(w scoring.Weights) *Engine {
	clone := *e
	clone.cfg.Weights = w.Clone()
	return &clone
}

// ProfessionalPrediction is the full analysis view of one symbol.
type ProfessionalPrediction struct {
	Symbol      string    `json:"symbol"`
	GeneratedAt time.Time `json:"generated_at"`
	Price       float64   `json:"price"`

	BuySellPoints  []signal.BuySellPoint          `json:"buy_sell_points"`
	Levels         levels.Result                  `json:"support_resistance"`
	MultiTimeframe timeframe.MultiTimeframeSignal `json:"multi_timeframe"`
	Divergence     analysis.Divergence            `json:"divergence"`
	Patterns       []patterns.DetectedPattern     `json:"patterns"`
	Trend          *analysis.TrendState           `json:"trend"`
	Volume         *analysis.VolumeProfile        `json:"volume"`
	Sentiment      *analysis.Sentiment            `json:"sentiment"`
	Indicators     indicator.Snapshot             `json:"indicators"`
	Score          *scoring.MultiFactorScore      `json:"multi_factor_score"`

	Advice    string   `json:"advice"`
	RiskLevel string   `json:"risk_level"`
	Warnings  []string `json:"warnings,omitempty"`
}

// bundle carries the shared per-series analysis between Analyze and
// Predict so the pipeline runs once.
type bundle struct {
	last      market.Bar
	snapshot  indicator.Snapshot
	trend     *analysis.TrendState
	volume    *analysis.VolumeProfile
	diverge   analysis.Divergence
	sentiment *analysis.Sentiment
	pats      []patterns.DetectedPattern
	lv        levels.Result
	multiTF   timeframe.MultiTimeframeSignal
	score     *scoring.MultiFactorScore
	regime    scoring.Regime
	warnings  []string
}

// Analyze runs every analyzer over the series and assembles the
// professional view.
func (e *Engine) Analyze(ctx context.Context, bars []market.Bar) (*ProfessionalPrediction, error) {
	b, err := e.analyze(ctx, bars)
	if err != nil {
		return nil, err
	}

	points := e.signals.Generate(signal.Input{
		Bars:       bars,
		Score:      b.score,
		Levels:     b.lv,
		MultiTF:    b.multiTF,
		Trend:      b.trend,
		Divergence: b.diverge,
		Snapshot:   b.snapshot,
		Oracle:     e.oracle,
	})

	out := &ProfessionalPrediction{
		Symbol:         b.last.Symbol,
		GeneratedAt:    time.Now().UTC(),
		Price:          b.last.Close,
		BuySellPoints:  points,
		Levels:         b.lv,
		MultiTimeframe: b.multiTF,
		Divergence:     b.diverge,
		Patterns:       b.pats,
		Trend:          b.trend,
		Volume:         b.volume,
		Sentiment:      b.sentiment,
		Indicators:     b.snapshot,
		Score:          b.score,
		Advice:         b.score.OperationSuggestion,
		RiskLevel:      riskLevel(b.regime, b.score),
		Warnings:       b.warnings,
	}
	return out, nil
}

func (e *Engine) analyze(ctx context.Context, bars []market.Bar) (*bundle, error) {
	if len(bars) < MinAnalysisBars {
		return nil, fmt.Errorf("engine: need at least %d bars, have %d: %w",
			MinAnalysisBars, len(bars), indicator.ErrInsufficientData)
	}
	if err := market.Validate(bars); err != nil {
		return nil, fmt.Errorf("engine: invalid bar series: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &bundle{last: bars[len(bars)-1]}

	snaps, warnings := indicator.Compute(bars, e.cfg.IndicatorParams)
	b.warnings = append(b.warnings, warnings...)
	b.snapshot = snaps[len(snaps)-1]

	b.trend = analysis.AnalyzeTrend(bars)
	b.volume = analysis.AnalyzeVolume(bars, e.cfg.VolumePeriod)
	b.diverge = analysis.DetectDivergence(bars, e.cfg.DivergenceWindow)
	b.sentiment = analysis.AnalyzeSentiment(bars)
	b.pats = e.patterns.Detect(bars)
	b.lv = e.levels.Detect(bars)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.multiTF = e.resonance(bars, b.snapshot)
	b.regime = e.regime(b)

	weights := e.cfg.Weights
	if weights == nil {
		weights = scoring.DefaultWeights()
	}
	score, err := scoring.Compute(scoring.BuildFactors(scoring.Input{
		Bars:       bars,
		Snapshot:   b.snapshot,
		Trend:      b.trend,
		Volume:     b.volume,
		Divergence: b.diverge,
		Sentiment:  b.sentiment,
		Patterns:   b.pats,
		Levels:     b.lv,
		MultiTF:    b.multiTF,
	}), weights, b.regime)
	if err != nil {
		return nil, err
	}
	b.score = score
	b.warnings = append(b.warnings, score.Warnings...)
	return b, nil
}

// resonance resamples the daily series to weekly and monthly, computes
// indicator snapshots per timeframe and forward-fills them onto the last
// daily date.
func (e *Engine) resonance(bars []market.Bar, daily indicator.Snapshot) timeframe.MultiTimeframeSignal {
	lastDate := bars[len(bars)-1].Date

	lookup := func(g timeframe.Granularity) *indicator.Snapshot {
		periods := timeframe.Resample(bars, g)
		if len(timeframe.Completed(periods)) == 0 {
			return nil
		}
		snaps, _ := indicator.Compute(timeframe.Bars(periods), e.cfg.IndicatorParams)
		fi := timeframe.NewFillIndex(periods, snaps)
		snap, ok := fi.At(lastDate)
		if !ok || snap.Incomplete {
			return nil
		}
		return &snap
	}

	return timeframe.Resonance(daily, lookup(timeframe.Weekly), lookup(timeframe.Monthly))
}

// regime reads the market phase and volatility context used to tilt the
// factor weights.
func (e *Engine) regime(b *bundle) scoring.Regime {
	r := scoring.Regime{}
	if b.sentiment != nil {
		r.Phase = b.sentiment.Phase
	}
	if !math.IsNaN(b.snapshot.ADX) {
		r.ADX = b.snapshot.ADX
	}
	if !math.IsNaN(b.snapshot.ATR) && b.last.Close > 0 {
		r.VolatilityPct = b.snapshot.ATR / b.last.Close * 100
	}
	return r
}

// riskLevel bands the analysis into the client-facing risk labels.
func riskLevel(regime scoring.Regime, score *scoring.MultiFactorScore) string {
	switch {
	case regime.VolatilityPct > 4 || score.SignalQuality == scoring.QualityWeak:
		return ensemble.RiskHigh
	case regime.VolatilityPct > 2 ||
		score.SignalQuality == scoring.QualityFair ||
		score.SignalQuality == scoring.QualityModerate:
		return ensemble.RiskMedium
	default:
		return ensemble.RiskLow
	}
}
