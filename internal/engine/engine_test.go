package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/internal/backtest"
	"github.com/zzhtl/biga/internal/ensemble"
	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/market"
)

// tradingBars builds n business-day bars with a gentle uptrend and a
// sine oscillation so every analyzer has structure to work with.
func tradingBars(n int) []market.Bar {
	bars := make([]market.Bar, 0, n)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	prevClose := 100.0
	for i := 0; i < n; i++ {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		c := 100.0 + 0.3*float64(i) + 3.0*math.Sin(float64(i)/5.0)
		o := prevClose
		h := math.Max(o, c) + 0.8
		l := math.Min(o, c) - 0.8
		v := 1_000_000 + 50_000*math.Sin(float64(i)/3.0)
		bars = append(bars, market.Bar{
			Symbol: "600519",
			Date:   date,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
			Amount: v * c,
		}.WithDerived(prevClose))
		prevClose = c
		date = date.AddDate(0, 0, 1)
	}
	return bars
}

func newTestEngine(opts ...Option) *Engine {
	return New(DefaultConfig(), zerolog.Nop(), opts...)
}

func TestAnalyzeFullPipeline(t *testing.T) {
	bars := tradingBars(150)
	pred, err := newTestEngine().Analyze(context.Background(), bars)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if pred.Symbol != "600519" {
		t.Errorf("symbol = %q", pred.Symbol)
	}
	if pred.Price != bars[len(bars)-1].Close {
		t.Errorf("price = %v, want last close %v", pred.Price, bars[len(bars)-1].Close)
	}
	if pred.Score == nil || pred.Score.TotalScore < 0 || pred.Score.TotalScore > 100 {
		t.Fatalf("score missing or out of range: %+v", pred.Score)
	}
	if pred.Trend == nil {
		t.Fatal("trend analysis missing")
	}
	if pred.Advice == "" {
		t.Error("advice empty")
	}
	switch pred.RiskLevel {
	case ensemble.RiskLow, ensemble.RiskMedium, ensemble.RiskHigh:
	default:
		t.Errorf("unexpected risk level %q", pred.RiskLevel)
	}
	if len(pred.Levels.Support)+len(pred.Levels.Resistance) == 0 {
		t.Error("no support/resistance levels detected")
	}
}

func TestAnalyzeShortHistory(t *testing.T) {
	_, err := newTestEngine().Analyze(context.Background(), tradingBars(30))
	if !errors.Is(err, indicator.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestEngine().Analyze(ctx, tradingBars(150)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPredictDegradesWithoutSources(t *testing.T) {
	bars := tradingBars(150)
	resp, err := newTestEngine().Predict(context.Background(), bars, 5)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if len(resp.Days) != 5 {
		t.Fatalf("days = %d, want 5", len(resp.Days))
	}
	// two built-in models against a min of three: technical-only fallback
	if resp.Ensemble != nil {
		t.Error("ensemble result present, want technical-only degradation")
	}
	degraded := false
	for _, w := range resp.Warnings {
		if strings.Contains(w, "degraded") {
			degraded = true
		}
	}
	if !degraded {
		t.Errorf("no degradation warning in %v", resp.Warnings)
	}

	prev := resp.LastRealData.Date
	prevConf := 1.0
	for _, d := range resp.Days {
		if !d.Date.After(prev) {
			t.Errorf("dates not increasing: %s after %s", d.Date, prev)
		}
		if wd := d.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("prediction on weekend %s", d.Date)
		}
		if d.PredictedPrice <= 0 {
			t.Errorf("non-positive price %v", d.PredictedPrice)
		}
		if d.Confidence > prevConf {
			t.Errorf("confidence rose from %v to %v", prevConf, d.Confidence)
		}
		prev, prevConf = d.Date, d.Confidence
	}
	if resp.TradingSignal == "" {
		t.Error("trading signal empty")
	}
	if len(resp.KeyFactors) != 3 {
		t.Errorf("key factors = %v, want 3", resp.KeyFactors)
	}
}

type stubSource struct {
	id     string
	kind   ensemble.SourceKind
	change float64
	conf   float64
	err    error
}

func (s stubSource) ID() string                { return s.id }
func (s stubSource) Kind() ensemble.SourceKind { return s.kind }
func (s stubSource) Weight() float64           { return 1.0 }

func (s stubSource) Predict(context.Context, []market.Bar, int) (float64, float64, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	return s.change, s.conf, nil
}

func TestPredictFusesExternalSources(t *testing.T) {
	ml := stubSource{id: "lstm-v2", kind: ensemble.KindML, change: 0.015, conf: 0.8}
	resp, err := newTestEngine(WithModelSources(ml)).Predict(context.Background(), tradingBars(150), 3)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if resp.Ensemble == nil {
		t.Fatal("ensemble result missing with three models available")
	}
	if resp.Ensemble.ModelCount != 3 {
		t.Errorf("model count = %d, want 3", resp.Ensemble.ModelCount)
	}
}

func TestPredictSkipsFailingSource(t *testing.T) {
	broken := stubSource{id: "ml-offline", kind: ensemble.KindML, err: errors.New("connection refused")}
	resp, err := newTestEngine(WithModelSources(broken)).Predict(context.Background(), tradingBars(150), 3)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	found := false
	for _, w := range resp.Warnings {
		if strings.Contains(w, "ml-offline") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning for failed source in %v", resp.Warnings)
	}
}

func TestBacktestPredictorAdapter(t *testing.T) {
	bars := tradingBars(150)
	p := BacktestPredictor{Engine: newTestEngine()}
	pred, err := p.Predict(context.Background(), bars, 3)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if pred.PredictedPrice <= 0 {
		t.Errorf("price = %v", pred.PredictedPrice)
	}
	base := bars[len(bars)-1].Close
	wantChange := (pred.PredictedPrice - base) / base
	if math.Abs(pred.PredictedChange-wantChange) > 1e-12 {
		t.Errorf("change = %v, want %v", pred.PredictedChange, wantChange)
	}
}

func TestEngineWalkForward(t *testing.T) {
	bars := tradingBars(200)
	runner := backtest.NewRunner(BacktestPredictor{Engine: newTestEngine()}, zerolog.Nop())

	report, err := runner.Run(context.Background(), bars, backtest.Config{
		Symbol:      "600519",
		Start:       bars[100].Date,
		End:         bars[len(bars)-1].Date.AddDate(0, 0, -7),
		StepDays:    7,
		HorizonDays: 3,
		MinHistory:  MinAnalysisBars,
	})
	if err != nil {
		t.Fatalf("walk-forward run failed: %v", err)
	}
	if report.TotalPredictions == 0 {
		t.Fatal("no predictions produced")
	}
	if report.PriceAccuracy <= 0 || report.PriceAccuracy > 1 {
		t.Errorf("price accuracy = %v", report.PriceAccuracy)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	bars := tradingBars(250)
	e := newTestEngine()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Analyze(ctx, bars); err != nil {
			b.Fatal(err)
		}
	}
}
