package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zzhtl/biga/internal/logging"
	"github.com/zzhtl/biga/internal/market"
)

// ErrLookaheadViolation is returned when a walk-forward step would hand
// the predictor a bar dated at or after the prediction cursor. It aborts
// the whole run: a report contaminated by future data is worthless.
var ErrLookaheadViolation = errors.New("backtest: lookahead violation")

// directionEpsilon is the fractional change below which a move counts as
// flat when scoring direction accuracy.
const directionEpsilon = 0.005

// Predictor produces a forward prediction from history alone. The bars
// slice it receives is strictly dated before the prediction cursor.
type Predictor interface {
	Predict(ctx context.Context, bars []market.Bar, horizonDays int) (*Prediction, error)
}

// Prediction is the minimal forward view a predictor must produce.
type Prediction struct {
	PredictedPrice  float64 `json:"predicted_price"`
	PredictedChange float64 `json:"predicted_change"`
	Direction       int     `json:"direction"`
	Confidence      float64 `json:"confidence"`
}

// Config drives one walk-forward run.
type Config struct {
	Symbol      string    `json:"symbol"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	StepDays    int       `json:"step_days"`    // cursor advance per step, default 1
	HorizonDays int       `json:"horizon_days"` // prediction horizon, default 1
	MinHistory  int       `json:"min_history"`  // bars required before predicting, default 60
	Workers     int       `json:"workers"`      // fan-out width, <=1 means sequential

	// Progress, when set, is called after each completed step. With
	// Workers > 1 calls are serialized but not ordered by cursor.
	Progress func(completed, total int) `json:"-"`
}

func (c *Config) normalize() {
	if c.StepDays < 1 {
		c.StepDays = 1
	}
	if c.HorizonDays < 1 {
		c.HorizonDays = 1
	}
	if c.MinHistory < 1 {
		c.MinHistory = 60
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
}

// Entry is one scored prediction in a run.
type Entry struct {
	ID               string    `json:"id"`
	PredictionDate   time.Time `json:"prediction_date"`
	TargetDate       time.Time `json:"target_date"`
	BasePrice        float64   `json:"base_price"`
	PredictedPrice   float64   `json:"predicted_price"`
	ActualPrice      float64   `json:"actual_price"`
	PredictedChange  float64   `json:"predicted_change"`
	ActualChange     float64   `json:"actual_change"`
	PriceAccuracy    float64   `json:"price_accuracy"`
	DirectionCorrect bool      `json:"direction_correct"`
	Confidence       float64   `json:"confidence"`
}

// Runner walks a date cursor across a bar series, invoking the predictor
// at each step with only the history that existed at that moment.
type Runner struct {
	predictor Predictor
	log       zerolog.Logger
}

func NewRunner(predictor Predictor, log zerolog.Logger) *Runner {
	return &Runner{predictor: predictor, log: logging.Component(log, "backtest")}
}

// Run executes the walk-forward loop over bars, which must be sorted
// ascending by date. Prediction errors at a single step skip that step;
// lookahead violations and context cancellation abort the run.
func (r *Runner) Run(ctx context.Context, bars []market.Bar, cfg Config) (*Report, error) {
	cfg.normalize()
	if err := market.Validate(bars); err != nil {
		return nil, fmt.Errorf("backtest: invalid bar series: %w", err)
	}

	cursors := r.cursors(bars, cfg)
	if len(cursors) == 0 {
		return nil, fmt.Errorf("backtest: no evaluable steps between %s and %s",
			cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"))
	}

	runID := uuid.New().String()
	r.log.Info().
		Str("run_id", runID).
		Str("symbol", cfg.Symbol).
		Int("steps", len(cursors)).
		Int("workers", cfg.Workers).
		Msg("starting walk-forward run")

	var entries []Entry
	var skipped int
	var err error
	if cfg.Workers > 1 {
		entries, skipped, err = r.runParallel(ctx, bars, cursors, cfg)
	} else {
		entries, skipped, err = r.runSequential(ctx, bars, cursors, cfg)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PredictionDate.Before(entries[j].PredictionDate)
	})

	report := buildReport(runID, cfg, entries, skipped)
	r.log.Info().
		Str("run_id", runID).
		Int("entries", len(entries)).
		Int("skipped", skipped).
		Float64("direction_accuracy", report.DirectionAccuracy).
		Msg("walk-forward run complete")
	return report, nil
}

// cursors lists the prediction dates that have both enough history and an
// evaluable future bar inside the series.
func (r *Runner) cursors(bars []market.Bar, cfg Config) []time.Time {
	var out []time.Time
	step := time.Duration(cfg.StepDays) * 24 * time.Hour
	for cursor := cfg.Start; !cursor.After(cfg.End); cursor = cursor.Add(step) {
		history := market.Before(bars, cursor)
		if len(history) < cfg.MinHistory {
			continue
		}
		target := cursor.AddDate(0, 0, cfg.HorizonDays)
		if _, ok := barAtOrAfter(bars, target); !ok {
			continue
		}
		out = append(out, cursor)
	}
	return out
}

func (r *Runner) runSequential(ctx context.Context, bars []market.Bar, cursors []time.Time, cfg Config) ([]Entry, int, error) {
	entries := make([]Entry, 0, len(cursors))
	skipped := 0
	for _, cursor := range cursors {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		entry, err := r.step(ctx, bars, cursor, cfg)
		if err != nil {
			if errors.Is(err, ErrLookaheadViolation) || errors.Is(err, context.Canceled) {
				return nil, 0, err
			}
			r.log.Warn().Err(err).Time("cursor", cursor).Msg("step skipped")
			skipped++
			continue
		}
		entries = append(entries, *entry)
		if cfg.Progress != nil {
			cfg.Progress(len(entries)+skipped, len(cursors))
		}
	}
	return entries, skipped, nil
}

func (r *Runner) runParallel(ctx context.Context, bars []market.Bar, cursors []time.Time, cfg Config) ([]Entry, int, error) {
	var (
		mu       sync.Mutex
		entries  []Entry
		skipped  int
		fatalErr error
	)
	sem := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup
	for _, cursor := range cursors {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, 0, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(cursor time.Time) {
			defer wg.Done()
			defer func() { <-sem }()
			entry, err := r.step(ctx, bars, cursor, cfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, ErrLookaheadViolation) || errors.Is(err, context.Canceled) {
					if fatalErr == nil {
						fatalErr = err
					}
					return
				}
				skipped++
				return
			}
			entries = append(entries, *entry)
			if cfg.Progress != nil {
				cfg.Progress(len(entries)+skipped, len(cursors))
			}
		}(cursor)
	}
	wg.Wait()
	if fatalErr != nil {
		return nil, 0, fatalErr
	}
	return entries, skipped, nil
}

// step predicts at one cursor and scores it against the realized bar.
func (r *Runner) step(ctx context.Context, bars []market.Bar, cursor time.Time, cfg Config) (*Entry, error) {
	history := market.Before(bars, cursor)
	if len(history) == 0 {
		return nil, fmt.Errorf("no history at %s", cursor.Format("2006-01-02"))
	}
	if last := history[len(history)-1].Date; !last.Before(cursor) {
		return nil, fmt.Errorf("%w: history contains bar dated %s at cursor %s",
			ErrLookaheadViolation, last.Format("2006-01-02"), cursor.Format("2006-01-02"))
	}

	pred, err := r.predictor.Predict(ctx, history, cfg.HorizonDays)
	if err != nil {
		return nil, fmt.Errorf("predict at %s: %w", cursor.Format("2006-01-02"), err)
	}

	base := history[len(history)-1].Close
	target := cursor.AddDate(0, 0, cfg.HorizonDays)
	actual, ok := barAtOrAfter(bars, target)
	if !ok {
		return nil, fmt.Errorf("no realized bar at or after %s", target.Format("2006-01-02"))
	}

	actualChange := 0.0
	if base != 0 {
		actualChange = (actual.Close - base) / base
	}

	entry := &Entry{
		ID:               uuid.New().String(),
		PredictionDate:   cursor,
		TargetDate:       actual.Date,
		BasePrice:        base,
		PredictedPrice:   pred.PredictedPrice,
		ActualPrice:      actual.Close,
		PredictedChange:  pred.PredictedChange,
		ActualChange:     actualChange,
		PriceAccuracy:    priceAccuracy(pred.PredictedPrice, actual.Close),
		DirectionCorrect: directionMatches(pred.PredictedChange, actualChange),
		Confidence:       pred.Confidence,
	}
	return entry, nil
}

// priceAccuracy is 1 minus the relative error, floored at zero.
func priceAccuracy(predicted, actual float64) float64 {
	if actual == 0 {
		return 0
	}
	return math.Max(0, 1-math.Abs(predicted-actual)/math.Abs(actual))
}

// directionMatches treats moves within the epsilon as flat, so a flat
// call against a near-flat outcome still scores as correct.
func directionMatches(predicted, actual float64) bool {
	return sign(predicted) == sign(actual)
}

func sign(change float64) int {
	switch {
	case change > directionEpsilon:
		return 1
	case change < -directionEpsilon:
		return -1
	default:
		return 0
	}
}

// barAtOrAfter returns the earliest bar dated at or after t.
func barAtOrAfter(bars []market.Bar, t time.Time) (market.Bar, bool) {
	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Date.Before(t)
	})
	if i == len(bars) {
		return market.Bar{}, false
	}
	return bars[i], true
}
