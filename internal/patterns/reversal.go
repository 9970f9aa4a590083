package patterns

import (
	"math"

	"github.com/zzhtl/biga/internal/market"
)

// Reversal pattern predicates. All ratio checks measure candle bodies and
// shadows against the bar's full high-low range.

func body(c market.Bar) float64 {
	return math.Abs(c.Close - c.Open)
}

func fullRange(c market.Bar) float64 {
	return c.High - c.Low
}

func upperShadow(c market.Bar) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func lowerShadow(c market.Bar) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func bullish(c market.Bar) bool {
	return c.Close > c.Open
}

func bearish(c market.Bar) bool {
	return c.Close < c.Open
}

// isDoji checks for a doji: an open and close nearly equal relative to
// the bar's range.
func (d *Detector) isDoji(c market.Bar) bool {
	r := fullRange(c)
	if r == 0 {
		return false
	}
	return body(c)/r <= d.dojiBodyRatio
}

// isDragonflyDoji checks for a doji with a long lower shadow and almost
// no upper shadow.
func (d *Detector) isDragonflyDoji(c market.Bar) bool {
	r := fullRange(c)
	if r == 0 || !d.isDoji(c) {
		return false
	}
	return lowerShadow(c)/r >= 0.6 && upperShadow(c)/r <= 0.1
}

// isGravestoneDoji checks for a doji with a long upper shadow and almost
// no lower shadow.
func (d *Detector) isGravestoneDoji(c market.Bar) bool {
	r := fullRange(c)
	if r == 0 || !d.isDoji(c) {
		return false
	}
	return upperShadow(c)/r >= 0.6 && lowerShadow(c)/r <= 0.1
}

// isHammerShape checks the hammer body shape: a small body near the top
// of the range with a lower shadow at least shadowRatio times the body.
// Context (downtrend = hammer, uptrend = hanging man) is applied by the
// caller.
func (d *Detector) isHammerShape(c market.Bar) bool {
	b := body(c)
	r := fullRange(c)
	if r == 0 || b == 0 {
		return false
	}
	return lowerShadow(c) >= d.shadowRatio*b && upperShadow(c) <= b*0.5
}

// isShootingStarShape checks the inverted-hammer shape: a small body near
// the bottom of the range with a long upper shadow.
func (d *Detector) isShootingStarShape(c market.Bar) bool {
	b := body(c)
	r := fullRange(c)
	if r == 0 || b == 0 {
		return false
	}
	return upperShadow(c) >= d.shadowRatio*b && lowerShadow(c) <= b*0.5
}

// isMarubozu checks for a candle that is almost all body.
func (d *Detector) isMarubozu(c market.Bar) bool {
	r := fullRange(c)
	if r == 0 {
		return false
	}
	return body(c)/r >= 0.95
}

// isBullishEngulfing checks that a bullish second body completely
// engulfs a bearish first body.
func (d *Detector) isBullishEngulfing(c1, c2 market.Bar) bool {
	if !bearish(c1) || !bullish(c2) {
		return false
	}
	return c2.Open <= c1.Close && c2.Close >= c1.Open && body(c2) > body(c1)
}

// isBearishEngulfing checks that a bearish second body completely
// engulfs a bullish first body.
func (d *Detector) isBearishEngulfing(c1, c2 market.Bar) bool {
	if !bullish(c1) || !bearish(c2) {
		return false
	}
	return c2.Open >= c1.Close && c2.Close <= c1.Open && body(c2) > body(c1)
}

// isBullishHarami checks for a small bullish body contained inside the
// previous large bearish body.
func (d *Detector) isBullishHarami(c1, c2 market.Bar) bool {
	if !bearish(c1) || !bullish(c2) {
		return false
	}
	return c2.Open > c1.Close && c2.Close < c1.Open && body(c2) < body(c1)*0.7
}

// isBearishHarami checks for a small bearish body contained inside the
// previous large bullish body.
func (d *Detector) isBearishHarami(c1, c2 market.Bar) bool {
	if !bullish(c1) || !bearish(c2) {
		return false
	}
	return c2.Open < c1.Close && c2.Close > c1.Open && body(c2) < body(c1)*0.7
}

// isPiercingLine checks for a bullish candle opening below the prior
// bearish close and closing above the midpoint of its body.
func (d *Detector) isPiercingLine(c1, c2 market.Bar) bool {
	if !bearish(c1) || !bullish(c2) {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	return c2.Open < c1.Close && c2.Close > mid && c2.Close < c1.Open
}

// isDarkCloudCover checks for a bearish candle opening above the prior
// bullish close and closing below the midpoint of its body.
func (d *Detector) isDarkCloudCover(c1, c2 market.Bar) bool {
	if !bullish(c1) || !bearish(c2) {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	return c2.Open > c1.Close && c2.Close < mid && c2.Close > c1.Open
}

// isMorningStar checks for the three-bar bottom reversal: a long bearish
// candle, a small-bodied star, then a bullish candle closing above the
// midpoint of the first body.
func (d *Detector) isMorningStar(c1, c2, c3 market.Bar) bool {
	if !bearish(c1) || !bullish(c3) {
		return false
	}
	if body(c2) >= body(c1)*0.5 {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	return c3.Close > mid
}

// isEveningStar checks for the three-bar top reversal, the mirror of the
// morning star.
func (d *Detector) isEveningStar(c1, c2, c3 market.Bar) bool {
	if !bullish(c1) || !bearish(c3) {
		return false
	}
	if body(c2) >= body(c1)*0.5 {
		return false
	}
	mid := (c1.Open + c1.Close) / 2
	return c3.Close < mid
}
