package timeframe

import (
	"sort"
	"time"

	"github.com/zzhtl/biga/internal/indicator"
)

// FillIndex forward-fills completed higher-timeframe snapshots onto daily
// dates. It is built once per aggregation (O(n log n)) and then serves
// O(1) lookups, so a backtest replaying years of daily rows never
// recomputes a weekly or monthly series.
type FillIndex struct {
	ends  []time.Time
	snaps []indicator.Snapshot
}

// NewFillIndex builds the index from a resampled series and its
// indicator snapshots (1:1 aligned). Provisional periods are excluded:
// only a completed period may be filled forward onto later daily rows.
func NewFillIndex(periods []Bar, snaps []indicator.Snapshot) *FillIndex {
	fi := &FillIndex{}
	for i, p := range periods {
		if p.Provisional || i >= len(snaps) {
			continue
		}
		fi.ends = append(fi.ends, p.Date)
		fi.snaps = append(fi.snaps, snaps[i])
	}
	return fi
}

// At returns the snapshot of the latest completed period whose end date
// is strictly before the given daily date, so a weekly value never leaks
// into the week it summarizes.
func (fi *FillIndex) At(date time.Time) (indicator.Snapshot, bool) {
	i := sort.Search(len(fi.ends), func(j int) bool {
		return !fi.ends[j].Before(date)
	})
	if i == 0 {
		return indicator.Snapshot{}, false
	}
	return fi.snaps[i-1], true
}

// Len reports the number of completed periods in the index.
func (fi *FillIndex) Len() int {
	return len(fi.ends)
}
