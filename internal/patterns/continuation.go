package patterns

import "github.com/zzhtl/biga/internal/market"

// Continuation pattern predicates.

// isThreeWhiteSoldiers checks for three consecutive bullish candles with
// rising closes, each opening inside the previous body.
func (d *Detector) isThreeWhiteSoldiers(c1, c2, c3 market.Bar) bool {
	if !bullish(c1) || !bullish(c2) || !bullish(c3) {
		return false
	}
	if !(c2.Close > c1.Close && c3.Close > c2.Close) {
		return false
	}
	return c2.Open >= c1.Open && c2.Open <= c1.Close &&
		c3.Open >= c2.Open && c3.Open <= c2.Close
}

// isThreeBlackCrows checks for three consecutive bearish candles with
// falling closes, each opening inside the previous body.
func (d *Detector) isThreeBlackCrows(c1, c2, c3 market.Bar) bool {
	if !bearish(c1) || !bearish(c2) || !bearish(c3) {
		return false
	}
	if !(c2.Close < c1.Close && c3.Close < c2.Close) {
		return false
	}
	return c2.Open <= c1.Open && c2.Open >= c1.Close &&
		c3.Open <= c2.Open && c3.Open >= c2.Close
}
