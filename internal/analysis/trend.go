package analysis

import "github.com/zzhtl/biga/internal/market"

// TrendDirection represents market trend
type TrendDirection string

const (
	TrendBullish  TrendDirection = "bullish"
	TrendBearish  TrendDirection = "bearish"
	TrendSideways TrendDirection = "sideways"
)

// TrendState summarizes moving-average structure at the latest bar.
type TrendState struct {
	Direction TrendDirection `json:"direction"`
	Strength  float64        `json:"strength"` // 0.0 to 1.0

	MA5  float64 `json:"ma5"`
	MA10 float64 `json:"ma10"`
	MA20 float64 `json:"ma20"`
	MA60 float64 `json:"ma60"`

	BullAligned bool    `json:"bull_aligned"` // MA5 > MA10 > MA20
	BearAligned bool    `json:"bear_aligned"` // MA5 < MA10 < MA20
	MA20Slope   float64 `json:"ma20_slope"`   // percent change of MA20 over 5 bars
	AboveMA20   bool    `json:"above_ma20"`
}

// AnalyzeTrend derives the trend state from the last bars. Requires at
// least 20 bars; MA60 stays zero when history is shorter than 60.
func AnalyzeTrend(bars []market.Bar) *TrendState {
	if len(bars) < 20 {
		return nil
	}

	ts := &TrendState{
		MA5:  trailingMA(bars, 5),
		MA10: trailingMA(bars, 10),
		MA20: trailingMA(bars, 20),
	}
	if len(bars) >= 60 {
		ts.MA60 = trailingMA(bars, 60)
	}

	price := bars[len(bars)-1].Close
	ts.AboveMA20 = price > ts.MA20
	ts.BullAligned = ts.MA5 > ts.MA10 && ts.MA10 > ts.MA20
	ts.BearAligned = ts.MA5 < ts.MA10 && ts.MA10 < ts.MA20

	if len(bars) >= 25 {
		prev := trailingMA(bars[:len(bars)-5], 20)
		if prev != 0 {
			ts.MA20Slope = (ts.MA20 - prev) / prev * 100
		}
	}

	switch {
	case ts.BullAligned && ts.AboveMA20:
		ts.Direction = TrendBullish
	case ts.BearAligned && !ts.AboveMA20:
		ts.Direction = TrendBearish
	default:
		ts.Direction = TrendSideways
	}

	ts.Strength = trendStrength(ts)
	return ts
}

func trendStrength(ts *TrendState) float64 {
	s := 0.0
	if ts.BullAligned || ts.BearAligned {
		s += 0.4
	}
	if ts.MA60 != 0 && ((ts.BullAligned && ts.MA20 > ts.MA60) || (ts.BearAligned && ts.MA20 < ts.MA60)) {
		s += 0.2
	}
	slope := ts.MA20Slope
	if slope < 0 {
		slope = -slope
	}
	if slope > 2 {
		slope = 2
	}
	s += slope / 2 * 0.4
	if s > 1 {
		s = 1
	}
	return s
}

func trailingMA(bars []market.Bar, period int) float64 {
	if len(bars) < period {
		return 0
	}
	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close
	}
	return sum / float64(period)
}
