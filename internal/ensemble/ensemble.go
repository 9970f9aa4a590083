package ensemble

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Strategy selects how model predictions are fused. The set is closed:
// Fuse dispatches exhaustively over these values.
type Strategy string

const (
	WeightedAverage  Strategy = "weighted_average"
	Voting           Strategy = "voting"
	Stacking         Strategy = "stacking"
	DynamicSelection Strategy = "dynamic_selection"
	Hybrid           Strategy = "hybrid"
)

// SourceKind groups predictions into stacking layers.
type SourceKind string

const (
	KindTechnical   SourceKind = "technical"
	KindML          SourceKind = "ml"
	KindStatistical SourceKind = "statistical"
)

// Stacking layer weights.
const (
	stackTechnicalWeight   = 0.35
	stackMLWeight          = 0.45
	stackStatisticalWeight = 0.20
)

// DirectionEpsilon is the fractional change below which a prediction
// counts as flat.
const DirectionEpsilon = 0.005

// ErrInsufficientModels is returned when fewer predictions arrive than
// the configured minimum. It is fatal for the fusion call: no partial
// result is produced.
var ErrInsufficientModels = errors.New("ensemble: insufficient model predictions")

// ModelPrediction is one opaque model output. Change is a fractional
// price change (0.02 means +2%).
type ModelPrediction struct {
	SourceID   string     `json:"source_id"`
	Kind       SourceKind `json:"kind"`
	Direction  int        `json:"direction"` // -1, 0, 1
	Change     float64    `json:"change"`
	Confidence float64    `json:"confidence"` // 0.0 to 1.0
	Weight     float64    `json:"weight"`     // >= 0
}

// Config is the fusion configuration surface.
type Config struct {
	Strategy       Strategy `json:"strategy"`
	MinModels      int      `json:"min_models"`
	RemoveOutliers bool     `json:"remove_outliers"`
}

// DefaultConfig returns the hybrid strategy with the standard minimum of
// three models.
func DefaultConfig() Config {
	return Config{Strategy: Hybrid, MinModels: 3}
}

// EnsemblePrediction is the fused decision.
type EnsemblePrediction struct {
	Strategy           Strategy       `json:"strategy"`
	FinalDirection     int            `json:"final_direction"`
	FinalChange        float64        `json:"final_change"`
	EnsembleConfidence float64        `json:"ensemble_confidence"`
	ConsensusScore     float64        `json:"consensus_score"`
	ModelCount         int            `json:"model_count"`
	Risk               RiskAssessment `json:"risk_assessment"`
	Warnings           []string       `json:"warnings,omitempty"`
}

// Fuse merges the predictions under the configured strategy and attaches
// a risk assessment. marketVolatility is the caller-supplied ambient
// volatility in [0,1] used only for risk banding.
func Fuse(preds []ModelPrediction, cfg Config, marketVolatility float64) (*EnsemblePrediction, error) {
	if cfg.MinModels < 1 {
		cfg.MinModels = 1
	}
	if len(preds) < cfg.MinModels {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientModels, len(preds), cfg.MinModels)
	}

	var warnings []string
	if cfg.RemoveOutliers {
		kept, removed := removeOutliers(preds)
		if removed > 0 && len(kept) >= cfg.MinModels {
			preds = kept
			warnings = append(warnings, fmt.Sprintf("removed %d outlier prediction(s)", removed))
		} else if removed > 0 {
			warnings = append(warnings, "outlier removal skipped: would drop below min_models")
		}
	}

	var change, confidence float64
	switch cfg.Strategy {
	case WeightedAverage:
		change, confidence = weightedAverage(preds)
	case Voting:
		change, confidence = voting(preds)
	case Stacking:
		change, confidence = stacking(preds)
	case DynamicSelection:
		change, confidence = dynamicSelection(preds)
	case Hybrid, "":
		change, confidence = hybrid(preds)
	default:
		return nil, fmt.Errorf("ensemble: unknown strategy %q", cfg.Strategy)
	}

	consensus := consensusScore(preds)
	confidence = clamp01(confidence * (0.8 + 0.2*consensus))

	out := &EnsemblePrediction{
		Strategy:           cfg.Strategy,
		FinalDirection:     directionOf(change),
		FinalChange:        change,
		EnsembleConfidence: confidence,
		ConsensusScore:     consensus,
		ModelCount:         len(preds),
		Warnings:           warnings,
	}
	out.Risk = assessRisk(preds, out, marketVolatility)
	return out, nil
}

// weightedAverage fuses by confidence-and-weight weighted change.
func weightedAverage(preds []ModelPrediction) (change, confidence float64) {
	var num, denom, confSum float64
	for _, p := range preds {
		w := p.Weight * p.Confidence
		num += p.Change * w
		denom += w
		confSum += p.Confidence
	}
	if denom == 0 {
		return 0, 0
	}
	return num / denom, confSum / float64(len(preds))
}

// voting tallies weight*confidence per direction; the winning direction's
// predictions are averaged for the change scalar.
func voting(preds []ModelPrediction) (change, confidence float64) {
	votes := map[int]float64{}
	confSum := map[int]float64{}
	for _, p := range preds {
		votes[p.Direction] += p.Weight * p.Confidence
		confSum[p.Direction] += p.Confidence
	}

	winner, best := 0, math.Inf(-1)
	for _, dir := range []int{1, 0, -1} {
		v, ok := votes[dir]
		if !ok {
			continue
		}
		if v > best || (v == best && confSum[dir] > confSum[winner]) {
			winner, best = dir, v
		}
	}

	var sum float64
	var n int
	var conf float64
	for _, p := range preds {
		if p.Direction == winner {
			sum += p.Change
			conf += p.Confidence
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), conf / float64(n)
}

// stacking blends per-kind layers with fixed layer weights. Layers with
// no predictions are skipped and the remaining layer weights renormalize.
// Layers accumulate in a fixed order so identical input always produces
// identical output down to the last bit.
func stacking(preds []ModelPrediction) (change, confidence float64) {
	layers := []struct {
		kind   SourceKind
		weight float64
	}{
		{KindTechnical, stackTechnicalWeight},
		{KindML, stackMLWeight},
		{KindStatistical, stackStatisticalWeight},
	}

	var num, denom, confNum float64
	for _, l := range layers {
		kind, lw := l.kind, l.weight
		var layer []ModelPrediction
		for _, p := range preds {
			if normalizeKind(p.Kind) == kind {
				layer = append(layer, p)
			}
		}
		if len(layer) == 0 {
			continue
		}
		c, conf := weightedAverage(layer)
		num += c * lw
		confNum += conf * lw
		denom += lw
	}
	if denom == 0 {
		return weightedAverage(preds)
	}
	return num / denom, confNum / denom
}

// normalizeKind buckets unknown kinds into the technical layer so a
// prediction never silently disappears from stacking.
func normalizeKind(k SourceKind) SourceKind {
	switch k {
	case KindML, KindStatistical:
		return k
	default:
		return KindTechnical
	}
}

// dynamicSelection keeps the top half of predictions by confidence
// (minimum one), then applies the weighted average.
func dynamicSelection(preds []ModelPrediction) (change, confidence float64) {
	ranked := make([]ModelPrediction, len(preds))
	copy(ranked, preds)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	keep := len(ranked) / 2
	if keep < 1 {
		keep = 1
	}
	return weightedAverage(ranked[:keep])
}

// hybrid blends the three base strategies on the change scalar and takes
// the majority direction among them.
func hybrid(preds []ModelPrediction) (change, confidence float64) {
	vChange, vConf := voting(preds)
	waChange, waConf := weightedAverage(preds)
	sChange, sConf := stacking(preds)

	change = 0.3*vChange + 0.4*waChange + 0.3*sChange

	dirs := []int{directionOf(vChange), directionOf(waChange), directionOf(sChange)}
	counts := map[int]int{}
	for _, d := range dirs {
		counts[d]++
	}
	majority, best := directionOf(change), 0
	for _, d := range []int{1, 0, -1} {
		if counts[d] > best {
			majority, best = d, counts[d]
		}
	}
	// Keep change and direction consistent when the majority disagrees
	// with the blended scalar's sign.
	if majority != directionOf(change) && majority != 0 {
		change = math.Copysign(math.Max(math.Abs(change), DirectionEpsilon*1.01), float64(majority))
	}

	confidence = 0.3*vConf + 0.4*waConf + 0.3*sConf
	return change, confidence
}

// consensusScore = 0.6 * direction agreement fraction + 0.4 * (1 -
// normalized change spread). Identical predictions score exactly 1.
func consensusScore(preds []ModelPrediction) float64 {
	if len(preds) == 0 {
		return 0
	}

	counts := map[int]int{}
	for _, p := range preds {
		counts[p.Direction]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	agreement := float64(maxCount) / float64(len(preds))

	spread := changeStddev(preds)
	normalized := math.Min(1, spread/0.05)

	return clamp01(0.6*agreement + 0.4*(1-normalized))
}

func changeStddev(preds []ModelPrediction) float64 {
	mean := 0.0
	for _, p := range preds {
		mean += p.Change
	}
	mean /= float64(len(preds))

	variance := 0.0
	for _, p := range preds {
		d := p.Change - mean
		variance += d * d
	}
	variance /= float64(len(preds))
	return math.Sqrt(variance)
}

func directionOf(change float64) int {
	switch {
	case change > DirectionEpsilon:
		return 1
	case change < -DirectionEpsilon:
		return -1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
