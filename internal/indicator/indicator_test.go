package indicator

import (
	"errors"
	"math"
	"testing"
)

func flatSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rampSeries(n int, from, to float64) []float64 {
	out := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

func TestEMAAlignmentAndWarmup(t *testing.T) {
	closes := rampSeries(30, 10, 40)

	ema, err := EMA(closes, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ema) != len(closes) {
		t.Fatalf("expected 1:1 aligned output, got %d for %d inputs", len(ema), len(closes))
	}
	for i := 0; i < 11; i++ {
		if !math.IsNaN(ema[i]) {
			t.Errorf("index %d: expected warm-up NaN, got %f", i, ema[i])
		}
	}
	if math.IsNaN(ema[11]) {
		t.Error("index 11: expected seeded SMA value, got NaN")
	}
}

func TestEMAInsufficientData(t *testing.T) {
	if _, err := EMA(flatSeries(5, 10), 12); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRSIFlatSeriesIsNeutral(t *testing.T) {
	rsi, err := RSI(flatSeries(30, 25.0), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rsi[len(rsi)-1]; got != 50 {
		t.Errorf("flat series RSI should be 50, got %f", got)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	rsi, err := RSI(rampSeries(30, 10, 40), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rsi[len(rsi)-1]; got != 100 {
		t.Errorf("monotonically rising series RSI should be 100, got %f", got)
	}
}

func TestMACDFlatSeriesHistogramIsZero(t *testing.T) {
	macd, err := MACD(flatSeries(60, 15.0), 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := len(macd.Hist) - 1
	if math.Abs(macd.Hist[last]) > 1e-9 {
		t.Errorf("flat series MACD hist should be ~0, got %g", macd.Hist[last])
	}
	for i := range macd.DIF {
		if macd.GoldenCrossAt(i) || macd.DeathCrossAt(i) {
			t.Errorf("flat series should produce no cross, got one at %d", i)
		}
	}
}

func TestMACDRisingSeriesDIFAboveDEA(t *testing.T) {
	macd, err := MACD(rampSeries(40, 10, 40), 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := len(macd.DIF) - 1
	if !(macd.DIF[last] > macd.DEA[last]) {
		t.Errorf("rising series should end with DIF > DEA, got DIF=%f DEA=%f",
			macd.DIF[last], macd.DEA[last])
	}
	if macd.Hist[last] <= 0 {
		t.Errorf("rising series should end with positive histogram, got %f", macd.Hist[last])
	}
}

func TestMACDGoldenCrossOnReversal(t *testing.T) {
	closes := append(rampSeries(40, 40, 10), rampSeries(40, 10, 40)...)

	macd, err := MACD(closes, 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	crossAt := -1
	for i := range closes {
		if macd.GoldenCrossAt(i) {
			crossAt = i
			break
		}
	}
	if crossAt < 40 {
		t.Fatalf("expected golden cross in the rising leg, got index %d", crossAt)
	}
	if !(macd.DIF[crossAt-1] <= macd.DEA[crossAt-1] && macd.DIF[crossAt] > macd.DEA[crossAt]) {
		t.Error("flagged bar is not the first crossing bar")
	}
}

func TestMACDAboveZeroAxis(t *testing.T) {
	macd, err := MACD(rampSeries(60, 10, 60), 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := len(macd.DIF) - 1
	if !macd.AboveZeroAt(last) {
		t.Errorf("rising series should end above the zero axis, DIF=%f DEA=%f",
			macd.DIF[last], macd.DEA[last])
	}
	if macd.AboveZeroAt(0) {
		t.Error("warm-up bar must not report above-zero")
	}

	falling, err := MACD(rampSeries(60, 60, 10), 12, 26, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if falling.AboveZeroAt(len(falling.DIF) - 1) {
		t.Error("falling series should end below the zero axis")
	}
}

func TestMACDInsufficientData(t *testing.T) {
	if _, err := MACD(flatSeries(30, 10), 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for 30 bars with MACD(12,26,9), got %v", err)
	}
}

func TestKDJBounds(t *testing.T) {
	highs := rampSeries(60, 11, 42)
	lows := rampSeries(60, 9, 38)
	closes := rampSeries(60, 10, 40)

	kdj, err := KDJ(highs, lows, closes, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 8; i < 60; i++ {
		if kdj.K[i] < 0 || kdj.K[i] > 100 {
			t.Errorf("K out of range at %d: %f", i, kdj.K[i])
		}
		if kdj.D[i] < 0 || kdj.D[i] > 100 {
			t.Errorf("D out of range at %d: %f", i, kdj.D[i])
		}
	}
}

func TestKDJFlatWindowRSVIsNeutral(t *testing.T) {
	flatH := flatSeries(20, 10)
	flatL := flatSeries(20, 10)
	flatC := flatSeries(20, 10)

	kdj, err := KDJ(flatH, flatL, flatC, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// RSV pinned at 50 means K and D converge to 50.
	last := len(flatC) - 1
	if math.Abs(kdj.K[last]-50) > 1 {
		t.Errorf("flat series K should converge to 50, got %f", kdj.K[last])
	}
	for i := range flatC {
		if kdj.GoldenCrossAt(i) || kdj.DeathCrossAt(i) {
			t.Errorf("flat series should produce no KDJ cross, got one at %d", i)
		}
	}
}

func TestKDJGoldenCrossRequiresKBelow80(t *testing.T) {
	r := &KDJResult{
		K: []float64{70, 85},
		D: []float64{75, 82},
		J: []float64{60, 91},
	}
	if r.GoldenCrossAt(1) {
		t.Error("cross with K at 85 should be filtered by the overbought threshold")
	}

	r = &KDJResult{
		K: []float64{40, 55},
		D: []float64{45, 50},
		J: []float64{30, 65},
	}
	if !r.GoldenCrossAt(1) {
		t.Error("expected golden cross with K below 80")
	}
}

func TestBollingerFlatSeriesBandsCollapse(t *testing.T) {
	boll, err := Bollinger(flatSeries(30, 20.0), 20, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := 29
	if boll.Upper[last] != 20 || boll.Lower[last] != 20 {
		t.Errorf("flat series bands should collapse onto the mid, got upper=%f lower=%f",
			boll.Upper[last], boll.Lower[last])
	}
}

func TestATRPositiveOnRangingSeries(t *testing.T) {
	highs := rampSeries(30, 11, 41)
	lows := rampSeries(30, 9, 39)
	closes := rampSeries(30, 10, 40)

	atr, err := ATR(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atr[29] <= 0 {
		t.Errorf("expected positive ATR, got %f", atr[29])
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(atr[i]) {
			t.Errorf("index %d: expected ATR warm-up NaN, got %f", i, atr[i])
		}
	}
}

func TestDMIADXUptrendFavorsPlusDI(t *testing.T) {
	highs := rampSeries(60, 11, 71)
	lows := rampSeries(60, 9, 69)
	closes := rampSeries(60, 10, 70)

	dmi, err := DMIADX(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := 59
	if !(dmi.PlusDI[last] > dmi.MinusDI[last]) {
		t.Errorf("uptrend should have DI+ > DI-, got %f vs %f", dmi.PlusDI[last], dmi.MinusDI[last])
	}
	if dmi.ADX[last] <= 25 {
		t.Errorf("steady uptrend should have strong ADX, got %f", dmi.ADX[last])
	}
}

func TestWilliamsRRange(t *testing.T) {
	highs := rampSeries(30, 11, 41)
	lows := rampSeries(30, 9, 39)
	closes := rampSeries(30, 10, 40)

	wr, err := WilliamsR(highs, lows, closes, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 13; i < 30; i++ {
		if wr[i] < -100 || wr[i] > 0 {
			t.Errorf("Williams %%R out of range at %d: %f", i, wr[i])
		}
	}
}

func TestROC(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 11}

	roc, err := ROC(closes, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := roc[12]; math.Abs(got-10) > 1e-9 {
		t.Errorf("expected ROC 10%%, got %f", got)
	}
}

func TestOBVAccumulation(t *testing.T) {
	closes := []float64{10, 11, 10.5, 10.5, 12}
	volumes := []float64{100, 200, 150, 50, 300}

	obv := OBV(closes, volumes)

	want := []float64{100, 300, 150, 150, 450}
	for i := range want {
		if obv[i] != want[i] {
			t.Errorf("index %d: expected OBV %f, got %f", i, want[i], obv[i])
		}
	}
}

func TestCCIFlatSeriesIsZero(t *testing.T) {
	cci, err := CCI(flatSeries(30, 10), flatSeries(30, 10), flatSeries(30, 10), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cci[29] != 0 {
		t.Errorf("flat series CCI should be 0, got %f", cci[29])
	}
}

func BenchmarkMACD(b *testing.B) {
	closes := rampSeries(1000, 10, 400)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MACD(closes, 12, 26, 9)
	}
}
