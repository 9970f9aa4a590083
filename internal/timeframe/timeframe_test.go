package timeframe

import (
	"testing"
	"time"

	"github.com/zzhtl/biga/internal/indicator"
	"github.com/zzhtl/biga/internal/market"
)

func dailyBars(start time.Time, n int) []market.Bar {
	bars := make([]market.Bar, 0, n)
	d := start
	price := 10.0
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			bars = append(bars, market.Bar{
				Symbol: "600000",
				Date:   d,
				Open:   price,
				High:   price + 0.5,
				Low:    price - 0.5,
				Close:  price + 0.1,
				Volume: 1000,
				Amount: 10000,
			})
			price += 0.1
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func TestResampleWeeklyAggregation(t *testing.T) {
	// Monday 2024-01-08 through Friday 2024-01-19: two full ISO weeks.
	bars := dailyBars(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), 10)

	weeks := Resample(bars, Weekly)
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", len(weeks))
	}

	w := weeks[0]
	if w.Open != bars[0].Open {
		t.Errorf("weekly open should be first daily open, got %f", w.Open)
	}
	if w.Close != bars[4].Close {
		t.Errorf("weekly close should be last daily close, got %f", w.Close)
	}
	if w.Volume != 5000 {
		t.Errorf("weekly volume should sum the week, got %f", w.Volume)
	}
	if !w.Date.Equal(bars[4].Date) {
		t.Errorf("weekly bar date should be the period's last daily date, got %v", w.Date)
	}
	if w.Provisional {
		t.Error("a completed week must not be provisional")
	}
	if !weeks[1].Provisional {
		t.Error("the trailing week must be provisional")
	}

	var high, low float64 = bars[0].High, bars[0].Low
	for _, b := range bars[:5] {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	if w.High != high || w.Low != low {
		t.Errorf("weekly high/low should span the week, got %f/%f", w.High, w.Low)
	}
}

func TestResampleMonthlyGrouping(t *testing.T) {
	bars := dailyBars(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 45)

	months := Resample(bars, Monthly)
	if len(months) < 2 {
		t.Fatalf("45 trading days should span at least 2 months, got %d", len(months))
	}
	if !months[len(months)-1].Provisional {
		t.Error("the trailing month must be provisional")
	}
	for _, m := range months[:len(months)-1] {
		if m.Provisional {
			t.Errorf("completed month ending %v flagged provisional", m.Date)
		}
	}
}

func TestFillIndexExcludesProvisionalAndFutures(t *testing.T) {
	bars := dailyBars(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), 15)
	weeks := Resample(bars, Weekly)

	snaps := make([]indicator.Snapshot, len(weeks))
	for i, w := range weeks {
		snaps[i] = indicator.Snapshot{Date: w.Date, RSI: float64(i)}
	}

	fi := NewFillIndex(weeks, snaps)
	if fi.Len() != len(weeks)-1 {
		t.Fatalf("index should hold only completed periods, got %d", fi.Len())
	}

	// A date inside the first week sees nothing completed yet.
	if _, ok := fi.At(weeks[0].Date); ok {
		t.Error("a week's own end date must not see that week's snapshot")
	}

	// The Monday after week 0 completed sees week 0.
	monday := weeks[0].Date.AddDate(0, 0, 3)
	snap, ok := fi.At(monday)
	if !ok {
		t.Fatal("expected a completed weekly snapshot after the week ends")
	}
	if snap.RSI != 0 {
		t.Errorf("expected week 0 snapshot, got RSI marker %f", snap.RSI)
	}
}

func TestResonanceCountsAlignedTimeframes(t *testing.T) {
	bull := indicator.Snapshot{MACDHist: 1.2, K: 60, D: 50, RSI: 62}
	bear := indicator.Snapshot{MACDHist: -0.8, K: 40, D: 48, RSI: 41}

	sig := Resonance(bull, &bull, &bull)
	if sig.ResonanceLevel != 3 || sig.ResonanceDirection != TrendBullish {
		t.Errorf("three bullish timeframes should resonate at 3, got %d %s",
			sig.ResonanceLevel, sig.ResonanceDirection)
	}
	if sig.Confidence <= 0.5 {
		t.Errorf("full resonance should lift confidence, got %f", sig.Confidence)
	}

	sig = Resonance(bull, &bear, nil)
	if sig.ResonanceLevel != 0 || sig.ResonanceDirection != TrendNeutral {
		t.Errorf("split timeframes should not resonate, got %d %s",
			sig.ResonanceLevel, sig.ResonanceDirection)
	}

	sig = Resonance(bull, nil, nil)
	if sig.ResonanceLevel != 1 || sig.ResonanceDirection != TrendBullish {
		t.Errorf("daily-only bullish state should resonate at 1, got %d %s",
			sig.ResonanceLevel, sig.ResonanceDirection)
	}
}
