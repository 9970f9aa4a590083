package analysis

import "github.com/zzhtl/biga/internal/market"

// VolumeProfile describes current volume against its trailing average
// and whether volume confirms the price move.
type VolumeProfile struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Ratio   float64 `json:"ratio"`

	Spike      bool `json:"spike"`      // ratio at or above the spike multiple
	Shrinking  bool `json:"shrinking"`  // ratio at or below half of average
	Confirming bool `json:"confirming"` // expanding volume in the bar's direction
}

// VolumeSpikeMultiple is the ratio at which current volume counts as a
// spike.
const VolumeSpikeMultiple = 2.0

// AnalyzeVolume compares the latest bar's volume to the trailing average
// over the given period (excluding the latest bar).
func AnalyzeVolume(bars []market.Bar, period int) *VolumeProfile {
	if len(bars) < period+1 {
		return nil
	}

	last := bars[len(bars)-1]
	sum := 0.0
	for _, b := range bars[len(bars)-period-1 : len(bars)-1] {
		sum += b.Volume
	}
	avg := sum / float64(period)

	vp := &VolumeProfile{
		Current: last.Volume,
		Average: avg,
	}
	if avg > 0 {
		vp.Ratio = last.Volume / avg
	}
	vp.Spike = vp.Ratio >= VolumeSpikeMultiple
	vp.Shrinking = vp.Ratio > 0 && vp.Ratio <= 0.5

	// Rising close on expanding volume, or falling close on shrinking
	// volume, confirms the move.
	rising := last.Close > last.Open
	vp.Confirming = (rising && vp.Ratio > 1.2) || (!rising && vp.Ratio < 0.8)

	return vp
}
