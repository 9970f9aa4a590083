package backtest

import (
	"math"
	"sort"
	"time"
)

// Report aggregates a completed walk-forward run.
type Report struct {
	RunID             string    `json:"run_id"`
	Symbol            string    `json:"symbol"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	HorizonDays       int       `json:"horizon_days"`
	GeneratedAt       time.Time `json:"generated_at"`
	TotalPredictions  int       `json:"total_predictions"`
	SkippedSteps      int       `json:"skipped_steps"`
	PriceAccuracy     float64   `json:"price_accuracy"`     // mean, 0..1
	DirectionAccuracy float64   `json:"direction_accuracy"` // hit rate, 0..1
	MeanConfidence    float64   `json:"mean_confidence"`
	MeanAbsError      float64   `json:"mean_abs_error"` // mean relative price error

	Entries           []Entry            `json:"entries"`
	MonthlyAccuracy   []MonthlyBucket    `json:"monthly_accuracy"`
	AccuracyTrend     []TrendPoint       `json:"accuracy_trend"`
	ErrorDistribution []ErrorBucket      `json:"error_distribution"`
	VolatilityBuckets []VolatilityBucket `json:"volatility_buckets"`
}

// MonthlyBucket groups entries by prediction month.
type MonthlyBucket struct {
	Month             string  `json:"month"` // "2024-03"
	Predictions       int     `json:"predictions"`
	PriceAccuracy     float64 `json:"price_accuracy"`
	DirectionAccuracy float64 `json:"direction_accuracy"`
}

// TrendPoint is a rolling direction hit rate sampled at each entry.
type TrendPoint struct {
	Date    time.Time `json:"date"`
	HitRate float64   `json:"hit_rate"`
}

// ErrorBucket is one bin of the relative price error histogram.
type ErrorBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// VolatilityBucket relates realized move size to accuracy.
type VolatilityBucket struct {
	Label             string  `json:"label"`
	Predictions       int     `json:"predictions"`
	DirectionAccuracy float64 `json:"direction_accuracy"`
}

const trendWindow = 20

func buildReport(runID string, cfg Config, entries []Entry, skipped int) *Report {
	r := &Report{
		RunID:            runID,
		Symbol:           cfg.Symbol,
		Start:            cfg.Start,
		End:              cfg.End,
		HorizonDays:      cfg.HorizonDays,
		GeneratedAt:      time.Now().UTC(),
		TotalPredictions: len(entries),
		SkippedSteps:     skipped,
		Entries:          entries,
	}
	if len(entries) == 0 {
		return r
	}

	var accSum, confSum, errSum float64
	hits := 0
	for _, e := range entries {
		accSum += e.PriceAccuracy
		confSum += e.Confidence
		errSum += 1 - e.PriceAccuracy
		if e.DirectionCorrect {
			hits++
		}
	}
	n := float64(len(entries))
	r.PriceAccuracy = accSum / n
	r.DirectionAccuracy = float64(hits) / n
	r.MeanConfidence = confSum / n
	r.MeanAbsError = errSum / n

	r.MonthlyAccuracy = monthlyBuckets(entries)
	r.AccuracyTrend = accuracyTrend(entries)
	r.ErrorDistribution = errorDistribution(entries)
	r.VolatilityBuckets = volatilityBuckets(entries)
	return r
}

func monthlyBuckets(entries []Entry) []MonthlyBucket {
	type agg struct {
		n, hits int
		acc     float64
	}
	byMonth := map[string]*agg{}
	for _, e := range entries {
		key := e.PredictionDate.Format("2006-01")
		a, ok := byMonth[key]
		if !ok {
			a = &agg{}
			byMonth[key] = a
		}
		a.n++
		a.acc += e.PriceAccuracy
		if e.DirectionCorrect {
			a.hits++
		}
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]MonthlyBucket, 0, len(keys))
	for _, k := range keys {
		a := byMonth[k]
		out = append(out, MonthlyBucket{
			Month:             k,
			Predictions:       a.n,
			PriceAccuracy:     a.acc / float64(a.n),
			DirectionAccuracy: float64(a.hits) / float64(a.n),
		})
	}
	return out
}

// accuracyTrend samples the rolling direction hit rate over the last
// trendWindow entries at every entry.
func accuracyTrend(entries []Entry) []TrendPoint {
	out := make([]TrendPoint, 0, len(entries))
	hits := 0
	for i, e := range entries {
		if e.DirectionCorrect {
			hits++
		}
		if i >= trendWindow && entries[i-trendWindow].DirectionCorrect {
			hits--
		}
		window := i + 1
		if window > trendWindow {
			window = trendWindow
		}
		out = append(out, TrendPoint{Date: e.PredictionDate, HitRate: float64(hits) / float64(window)})
	}
	return out
}

func errorDistribution(entries []Entry) []ErrorBucket {
	edges := []float64{0.01, 0.02, 0.05, 0.10}
	labels := []string{"<1%", "1-2%", "2-5%", "5-10%", ">10%"}
	counts := make([]int, len(labels))
	for _, e := range entries {
		relErr := 1 - e.PriceAccuracy
		i := sort.SearchFloat64s(edges, relErr)
		if i < len(edges) && relErr == edges[i] {
			i++
		}
		counts[i]++
	}
	out := make([]ErrorBucket, len(labels))
	for i, l := range labels {
		out[i] = ErrorBucket{Label: l, Count: counts[i]}
	}
	return out
}

func volatilityBuckets(entries []Entry) []VolatilityBucket {
	edges := []float64{0.01, 0.03}
	labels := []string{"calm <1%", "normal 1-3%", "volatile >3%"}
	type agg struct{ n, hits int }
	aggs := make([]agg, len(labels))
	for _, e := range entries {
		move := math.Abs(e.ActualChange)
		i := sort.SearchFloat64s(edges, move)
		if i < len(edges) && move == edges[i] {
			i++
		}
		aggs[i].n++
		if e.DirectionCorrect {
			aggs[i].hits++
		}
	}
	out := make([]VolatilityBucket, 0, len(labels))
	for i, l := range labels {
		b := VolatilityBucket{Label: l, Predictions: aggs[i].n}
		if aggs[i].n > 0 {
			b.DirectionAccuracy = float64(aggs[i].hits) / float64(aggs[i].n)
		}
		out = append(out, b)
	}
	return out
}
