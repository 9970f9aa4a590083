package market

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV bar for one symbol on one date.
// Bars are append-only and ordered by date; the engine never mutates them.
type Bar struct {
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	Amount        float64   `json:"amount"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
}

// WithDerived fills Change and ChangePercent from the previous close.
func (b Bar) WithDerived(prevClose float64) Bar {
	b.Change = b.Close - prevClose
	if prevClose != 0 {
		b.ChangePercent = b.Change / prevClose * 100
	}
	return b
}

// Derive computes Change/ChangePercent for every bar in place order,
// returning a new slice. The first bar keeps zero change.
func Derive(bars []Bar) []Bar {
	out := make([]Bar, len(bars))
	copy(out, bars)
	for i := 1; i < len(out); i++ {
		out[i] = out[i].WithDerived(out[i-1].Close)
	}
	return out
}

// Validate checks the series invariants: ascending dates, unique per
// (symbol, date), and sane OHLC relationships.
func Validate(bars []Bar) error {
	for i, b := range bars {
		if b.High < b.Low {
			return fmt.Errorf("bar %s %s: high %.4f below low %.4f",
				b.Symbol, b.Date.Format("2006-01-02"), b.High, b.Low)
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if !b.Date.After(prev.Date) {
			return fmt.Errorf("bar %s %s: date not after previous bar %s",
				b.Symbol, b.Date.Format("2006-01-02"), prev.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Closes extracts the close series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Before returns the bars strictly before the given date. Input must be
// date-ordered; the result aliases the input slice.
func Before(bars []Bar, cutoff time.Time) []Bar {
	n := len(bars)
	for n > 0 && !bars[n-1].Date.Before(cutoff) {
		n--
	}
	return bars[:n]
}

// Last returns the final bar, ok=false on an empty series.
func Last(bars []Bar) (Bar, bool) {
	if len(bars) == 0 {
		return Bar{}, false
	}
	return bars[len(bars)-1], true
}
