package timeframe

import (
	"time"

	"github.com/zzhtl/biga/internal/market"
)

// Granularity selects the resampling period.
type Granularity string

const (
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Bar is a resampled higher-timeframe bar. Date carries the date of the
// last daily bar inside the period. The trailing period of a series is
// provisional: it can still change while new daily bars append to it.
type Bar struct {
	market.Bar
	PeriodStart time.Time `json:"period_start"`
	Provisional bool      `json:"provisional"`
}

// Resample groups daily bars into weekly (ISO week) or monthly (calendar
// month) bars: open = first, close = last, high = max, low = min, volume
// and amount summed. Input must be date-ordered.
func Resample(daily []market.Bar, g Granularity) []Bar {
	if len(daily) == 0 {
		return nil
	}

	var out []Bar
	key := periodKey(daily[0].Date, g)
	cur := newPeriod(daily[0])

	for _, b := range daily[1:] {
		k := periodKey(b.Date, g)
		if k != key {
			out = append(out, cur)
			key = k
			cur = newPeriod(b)
			continue
		}
		cur.Close = b.Close
		cur.Date = b.Date
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Volume += b.Volume
		cur.Amount += b.Amount
	}
	cur.Provisional = true
	out = append(out, cur)

	for i := 1; i < len(out); i++ {
		out[i].Bar = out[i].Bar.WithDerived(out[i-1].Close)
	}
	return out
}

func newPeriod(b market.Bar) Bar {
	return Bar{Bar: b, PeriodStart: b.Date}
}

func periodKey(date time.Time, g Granularity) int {
	if g == Monthly {
		return date.Year()*100 + int(date.Month())
	}
	year, week := date.ISOWeek()
	return year*100 + week
}

// Bars strips the resampled wrapper back to plain market bars, for
// feeding the indicator library.
func Bars(periods []Bar) []market.Bar {
	out := make([]market.Bar, len(periods))
	for i, p := range periods {
		out[i] = p.Bar
	}
	return out
}

// Completed returns the non-provisional prefix of a resampled series.
func Completed(periods []Bar) []Bar {
	out := periods[:0:0]
	for _, p := range periods {
		if !p.Provisional {
			out = append(out, p)
		}
	}
	return out
}
