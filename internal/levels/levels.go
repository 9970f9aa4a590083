package levels

import (
	"math"
	"sort"

	"github.com/zzhtl/biga/internal/market"
)

// Source labels where a level candidate came from.
type Source string

const (
	SourceMA        Source = "moving_average"
	SourceSwing     Source = "swing_extreme"
	SourceRound     Source = "round_number"
	SourceVolume    Source = "volume_cluster"
	SourceFibonacci Source = "fibonacci"
)

// Level is one clustered support or resistance price with its
// corroborating sources. Strength counts merged candidates.
type Level struct {
	Price    float64  `json:"price"`
	Sources  []Source `json:"sources"`
	Strength int      `json:"strength"`
}

// Result carries the ranked levels on each side of the current price.
// Support is ordered nearest-below first, Resistance nearest-above first.
type Result struct {
	Support    []Level `json:"support"`
	Resistance []Level `json:"resistance"`
}

// Detector finds support/resistance levels from five independent
// sources and clusters them.
type Detector struct {
	Tolerance   float64 // cluster band as a fraction of price
	Band        float64 // discard levels farther than this fraction from price
	MaxPerSide  int
	PivotWindow int
	Lookback    int
	MAPeriods   []int
}

// NewDetector returns a detector with the standard configuration.
func NewDetector() *Detector {
	return &Detector{
		Tolerance:   0.01,
		Band:        0.15,
		MaxPerSide:  5,
		PivotWindow: 3,
		Lookback:    60,
		MAPeriods:   []int{5, 10, 20, 60},
	}
}

type candidate struct {
	price  float64
	source Source
}

// Detect runs all five sources over the trailing lookback window and
// returns the clustered levels around the latest close.
func (d *Detector) Detect(bars []market.Bar) Result {
	if len(bars) == 0 {
		return Result{}
	}
	price := bars[len(bars)-1].Close
	window := bars
	if len(window) > d.Lookback {
		window = window[len(window)-d.Lookback:]
	}

	var cands []candidate
	cands = append(cands, d.maLevels(bars)...)
	cands = append(cands, d.swingLevels(window)...)
	cands = append(cands, d.roundLevels(price)...)
	cands = append(cands, d.volumeLevels(window)...)
	cands = append(cands, d.fibLevels(window)...)

	// Keep only levels near the current price.
	kept := cands[:0]
	for _, c := range cands {
		if c.price <= 0 {
			continue
		}
		if math.Abs(c.price-price)/price <= d.Band {
			kept = append(kept, c)
		}
	}

	clustered := d.cluster(kept)

	var res Result
	for _, lv := range clustered {
		if lv.Price < price {
			res.Support = append(res.Support, lv)
		} else {
			res.Resistance = append(res.Resistance, lv)
		}
	}
	res.Support = rankSide(res.Support, d.MaxPerSide, func(i, j Level) bool { return i.Price > j.Price })
	res.Resistance = rankSide(res.Resistance, d.MaxPerSide, func(i, j Level) bool { return i.Price < j.Price })
	return res
}

// maLevels treats trailing moving averages as dynamic levels.
func (d *Detector) maLevels(bars []market.Bar) []candidate {
	var out []candidate
	for _, period := range d.MAPeriods {
		if len(bars) < period {
			continue
		}
		sum := 0.0
		for _, b := range bars[len(bars)-period:] {
			sum += b.Close
		}
		out = append(out, candidate{price: sum / float64(period), source: SourceMA})
	}
	return out
}

// swingLevels finds local extrema with a symmetric pivot window.
func (d *Detector) swingLevels(bars []market.Bar) []candidate {
	var out []candidate
	w := d.PivotWindow
	for i := w; i < len(bars)-w; i++ {
		isHigh, isLow := true, true
		for j := i - w; j <= i+w; j++ {
			if bars[j].High > bars[i].High {
				isHigh = false
			}
			if bars[j].Low < bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, candidate{price: bars[i].High, source: SourceSwing})
		}
		if isLow {
			out = append(out, candidate{price: bars[i].Low, source: SourceSwing})
		}
	}
	return out
}

// roundLevels emits psychologically round prices around the current one.
func (d *Detector) roundLevels(price float64) []candidate {
	if price <= 0 {
		return nil
	}
	// Step scales with price magnitude: 0.5 near 5, 5 near 50, and so on.
	step := math.Pow(10, math.Floor(math.Log10(price))) / 2
	var out []candidate
	base := math.Floor(price/step) * step
	for k := -4; k <= 4; k++ {
		lvl := base + float64(k)*step
		if lvl > 0 {
			out = append(out, candidate{price: lvl, source: SourceRound})
		}
	}
	return out
}

// volumeLevels bins closes by traded volume and emits the densest bins.
func (d *Detector) volumeLevels(bars []market.Bar) []candidate {
	if len(bars) < 10 {
		return nil
	}
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	if hi <= lo {
		return nil
	}

	const bins = 12
	vol := make([]float64, bins)
	width := (hi - lo) / bins
	for _, b := range bars {
		idx := int((b.Close - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		vol[idx] += b.Volume
	}

	type binVol struct {
		idx int
		v   float64
	}
	ranked := make([]binVol, bins)
	for i, v := range vol {
		ranked[i] = binVol{i, v}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].v > ranked[j].v })

	var out []candidate
	for _, bv := range ranked[:3] {
		if bv.v == 0 {
			continue
		}
		center := lo + (float64(bv.idx)+0.5)*width
		out = append(out, candidate{price: center, source: SourceVolume})
	}
	return out
}

// fibLevels retraces the latest swing at the classic ratios.
func (d *Detector) fibLevels(bars []market.Bar) []candidate {
	if len(bars) == 0 {
		return nil
	}
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	diff := hi - lo
	if diff <= 0 {
		return nil
	}
	return []candidate{
		{price: hi - diff*0.382, source: SourceFibonacci},
		{price: hi - diff*0.5, source: SourceFibonacci},
		{price: hi - diff*0.618, source: SourceFibonacci},
	}
}

// cluster merges candidates within the tolerance band and ranks each
// cluster by how many candidates corroborate it.
func (d *Detector) cluster(cands []candidate) []Level {
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].price < cands[j].price })

	var out []Level
	cur := Level{Price: cands[0].price, Sources: []Source{cands[0].source}, Strength: 1}
	sum := cands[0].price
	for _, c := range cands[1:] {
		if (c.price-cur.Price)/cur.Price <= d.Tolerance {
			sum += c.price
			cur.Strength++
			cur.Price = sum / float64(cur.Strength)
			if !hasSource(cur.Sources, c.source) {
				cur.Sources = append(cur.Sources, c.source)
			}
			continue
		}
		out = append(out, cur)
		cur = Level{Price: c.price, Sources: []Source{c.source}, Strength: 1}
		sum = c.price
	}
	out = append(out, cur)
	return out
}

// rankSide keeps the max strongest levels of one side, then orders them
// by proximity to the current price.
func rankSide(side []Level, max int, closer func(i, j Level) bool) []Level {
	sort.SliceStable(side, func(i, j int) bool { return side[i].Strength > side[j].Strength })
	if len(side) > max {
		side = side[:max]
	}
	sort.Slice(side, func(i, j int) bool { return closer(side[i], side[j]) })
	return side
}

func hasSource(list []Source, s Source) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
