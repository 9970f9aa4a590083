package indicator

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/zzhtl/biga/internal/market"
)

func testBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 10.0
	for i := range bars {
		// Deterministic pseudo-wave so crosses and ranges actually occur.
		move := math.Sin(float64(i)/5) * 0.8
		bars[i] = market.Bar{
			Symbol: "600000",
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + move + 1.0,
			Low:    price + move - 1.0,
			Close:  price + move,
			Volume: 1000 + float64(i%7)*100,
		}
		price += 0.05
	}
	return bars
}

func TestComputeIsDeterministic(t *testing.T) {
	bars := testBars(120)
	p := DefaultParams()

	first, _ := Compute(bars, p)
	second, _ := Compute(bars, p)

	if !reflect.DeepEqual(first, second) {
		t.Error("recomputing snapshots over unchanged history must be identical")
	}
}

func TestComputeWarmupFlagged(t *testing.T) {
	bars := testBars(120)

	snaps, warnings := Compute(bars, DefaultParams())
	if len(warnings) != 0 {
		t.Fatalf("120 bars should satisfy every default window, got warnings %v", warnings)
	}
	if len(snaps) != len(bars) {
		t.Fatalf("expected %d snapshots, got %d", len(bars), len(snaps))
	}

	if !snaps[0].Incomplete {
		t.Error("first snapshot should be flagged incomplete")
	}
	if snaps[len(snaps)-1].Incomplete {
		t.Error("last snapshot should be complete with 120 bars of history")
	}
	if math.IsNaN(snaps[len(snaps)-1].MACDHist) {
		t.Error("last snapshot should carry a computed MACD histogram")
	}
	if snaps[0].MACDAboveZero {
		t.Error("warm-up snapshot must not report MACD above zero")
	}
	// Steadily drifting series ends with both DIF and DEA positive.
	last := snaps[len(snaps)-1]
	if last.MACDAboveZero != (last.MACDDif > 0 && last.MACDDea > 0) {
		t.Error("MACDAboveZero disagrees with the DIF/DEA values it summarizes")
	}
}

func TestComputeShortHistoryDegrades(t *testing.T) {
	bars := testBars(15)

	snaps, warnings := Compute(bars, DefaultParams())
	if len(snaps) != 15 {
		t.Fatalf("expected snapshots for every bar, got %d", len(snaps))
	}
	if len(warnings) == 0 {
		t.Error("15 bars should produce insufficient-data warnings")
	}
	for i := range snaps {
		if !snaps[i].Incomplete {
			t.Errorf("snapshot %d should be incomplete with 15 bars", i)
		}
	}
}
