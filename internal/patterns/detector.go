package patterns

import (
	"time"

	"github.com/zzhtl/biga/internal/market"
)

// PatternType identifies a candlestick pattern.
type PatternType string

const (
	Hammer             PatternType = "hammer"
	HangingMan         PatternType = "hanging_man"
	ShootingStar       PatternType = "shooting_star"
	Doji               PatternType = "doji"
	DragonflyDoji      PatternType = "dragonfly_doji"
	GravestoneDoji     PatternType = "gravestone_doji"
	BullishMarubozu    PatternType = "bullish_marubozu"
	BearishMarubozu    PatternType = "bearish_marubozu"
	BullishEngulfing   PatternType = "bullish_engulfing"
	BearishEngulfing   PatternType = "bearish_engulfing"
	BullishHarami      PatternType = "bullish_harami"
	BearishHarami      PatternType = "bearish_harami"
	PiercingLine       PatternType = "piercing_line"
	DarkCloudCover     PatternType = "dark_cloud_cover"
	MorningStar        PatternType = "morning_star"
	EveningStar        PatternType = "evening_star"
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows    PatternType = "three_black_crows"
)

// DetectedPattern is one recognized pattern anchored at the bar where it
// completes.
type DetectedPattern struct {
	Type        PatternType `json:"type"`
	Date        time.Time   `json:"date"`
	BarIndex    int         `json:"bar_index"`
	Bullish     bool        `json:"bullish"`
	Reliability float64     `json:"reliability"` // 0.0 to 1.0
}

// reliability is the fixed base credibility per pattern type.
var reliability = map[PatternType]float64{
	Hammer:             0.70,
	HangingMan:         0.65,
	ShootingStar:       0.70,
	Doji:               0.50,
	DragonflyDoji:      0.60,
	GravestoneDoji:     0.60,
	BullishMarubozu:    0.65,
	BearishMarubozu:    0.65,
	BullishEngulfing:   0.80,
	BearishEngulfing:   0.80,
	BullishHarami:      0.60,
	BearishHarami:      0.60,
	PiercingLine:       0.70,
	DarkCloudCover:     0.70,
	MorningStar:        0.85,
	EveningStar:        0.85,
	ThreeWhiteSoldiers: 0.80,
	ThreeBlackCrows:    0.80,
}

// Detector recognizes candlestick patterns in a bar series.
type Detector struct {
	dojiBodyRatio float64 // body/range ratio at or below which a candle is a doji
	shadowRatio   float64 // shadow/body multiple for hammer and star shapes
	trendWindow   int     // bars of context for up/downtrend checks
}

// NewDetector creates a detector with the given doji body ratio. Values
// outside (0,1) fall back to the default 0.1.
func NewDetector(dojiBodyRatio float64) *Detector {
	if dojiBodyRatio <= 0 || dojiBodyRatio >= 1 {
		dojiBodyRatio = 0.1
	}
	return &Detector{
		dojiBodyRatio: dojiBodyRatio,
		shadowRatio:   2.0,
		trendWindow:   5,
	}
}

// Detect scans the series and returns every pattern found, ordered by
// completion bar.
func (d *Detector) Detect(bars []market.Bar) []DetectedPattern {
	var found []DetectedPattern

	emit := func(i int, t PatternType, bullish bool) {
		found = append(found, DetectedPattern{
			Type:        t,
			Date:        bars[i].Date,
			BarIndex:    i,
			Bullish:     bullish,
			Reliability: reliability[t],
		})
	}

	for i := range bars {
		c := bars[i]

		switch {
		case d.isDragonflyDoji(c):
			emit(i, DragonflyDoji, true)
		case d.isGravestoneDoji(c):
			emit(i, GravestoneDoji, false)
		case d.isDoji(c):
			emit(i, Doji, false)
		case d.isHammerShape(c):
			if d.downtrendBefore(bars, i) {
				emit(i, Hammer, true)
			} else if d.uptrendBefore(bars, i) {
				emit(i, HangingMan, false)
			}
		case d.isShootingStarShape(c) && d.uptrendBefore(bars, i):
			emit(i, ShootingStar, false)
		case d.isMarubozu(c):
			if c.Close >= c.Open {
				emit(i, BullishMarubozu, true)
			} else {
				emit(i, BearishMarubozu, false)
			}
		}

		if i >= 1 {
			p := bars[i-1]
			switch {
			case d.isBullishEngulfing(p, c):
				emit(i, BullishEngulfing, true)
			case d.isBearishEngulfing(p, c):
				emit(i, BearishEngulfing, false)
			case d.isBullishHarami(p, c):
				emit(i, BullishHarami, true)
			case d.isBearishHarami(p, c):
				emit(i, BearishHarami, false)
			case d.isPiercingLine(p, c):
				emit(i, PiercingLine, true)
			case d.isDarkCloudCover(p, c):
				emit(i, DarkCloudCover, false)
			}
		}

		if i >= 2 {
			c1, c2 := bars[i-2], bars[i-1]
			switch {
			case d.isMorningStar(c1, c2, c):
				emit(i, MorningStar, true)
			case d.isEveningStar(c1, c2, c):
				emit(i, EveningStar, false)
			case d.isThreeWhiteSoldiers(c1, c2, c):
				emit(i, ThreeWhiteSoldiers, true)
			case d.isThreeBlackCrows(c1, c2, c):
				emit(i, ThreeBlackCrows, false)
			}
		}
	}

	return found
}

// downtrendBefore checks that price was falling into bar i.
func (d *Detector) downtrendBefore(bars []market.Bar, i int) bool {
	if i < d.trendWindow {
		return false
	}
	return bars[i].Close < bars[i-d.trendWindow].Close
}

// uptrendBefore checks that price was rising into bar i.
func (d *Detector) uptrendBefore(bars []market.Bar, i int) bool {
	if i < d.trendWindow {
		return false
	}
	return bars[i].Close > bars[i-d.trendWindow].Close
}
