package levels

import (
	"math"
	"testing"
	"time"

	"github.com/zzhtl/biga/internal/market"
)

func rangingBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		// Oscillates between roughly 9 and 11 with a floor near 9.5.
		c := 10 + math.Sin(float64(i)/4)
		bars[i] = market.Bar{
			Symbol: "600000",
			Date:   base.AddDate(0, 0, i),
			Open:   c - 0.1,
			High:   c + 0.3,
			Low:    c - 0.3,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestDetectSplitsAroundPrice(t *testing.T) {
	detector := NewDetector()
	bars := rangingBars(80)
	price := bars[len(bars)-1].Close

	res := detector.Detect(bars)
	if len(res.Support) == 0 {
		t.Fatal("ranging series should produce support levels")
	}
	if len(res.Resistance) == 0 {
		t.Fatal("ranging series should produce resistance levels")
	}
	for _, lv := range res.Support {
		if lv.Price >= price {
			t.Errorf("support level %f not below price %f", lv.Price, price)
		}
	}
	for _, lv := range res.Resistance {
		if lv.Price < price {
			t.Errorf("resistance level %f below price %f", lv.Price, price)
		}
	}
}

func TestDetectTruncatesPerSide(t *testing.T) {
	detector := NewDetector()
	res := detector.Detect(rangingBars(200))

	if len(res.Support) > detector.MaxPerSide {
		t.Errorf("too many support levels: %d", len(res.Support))
	}
	if len(res.Resistance) > detector.MaxPerSide {
		t.Errorf("too many resistance levels: %d", len(res.Resistance))
	}
}

func TestDetectStaysInsideBand(t *testing.T) {
	detector := NewDetector()
	bars := rangingBars(80)
	price := bars[len(bars)-1].Close

	res := detector.Detect(bars)
	for _, lv := range append(res.Support, res.Resistance...) {
		if math.Abs(lv.Price-price)/price > detector.Band+1e-9 {
			t.Errorf("level %f outside the %.0f%% band around %f",
				lv.Price, detector.Band*100, price)
		}
	}
}

func TestClusterMergesNearbyCandidates(t *testing.T) {
	detector := NewDetector()
	cands := []candidate{
		{price: 10.00, source: SourceMA},
		{price: 10.05, source: SourceSwing}, // within 1% of 10.00
		{price: 11.00, source: SourceRound},
	}

	levels := detector.cluster(cands)
	if len(levels) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(levels))
	}
	if levels[0].Strength != 2 {
		t.Errorf("merged cluster should have strength 2, got %d", levels[0].Strength)
	}
	if len(levels[0].Sources) != 2 {
		t.Errorf("merged cluster should keep both sources, got %v", levels[0].Sources)
	}
}

func TestDetectEmptySeries(t *testing.T) {
	detector := NewDetector()
	res := detector.Detect(nil)
	if len(res.Support) != 0 || len(res.Resistance) != 0 {
		t.Error("empty series should yield no levels")
	}
}
