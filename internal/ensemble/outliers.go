package ensemble

import "sort"

// iqrMultiplier is the standard Tukey fence factor.
const iqrMultiplier = 1.5

// removeOutliers drops predictions whose change falls outside the 1.5*IQR
// fences of the sample. With fewer than four predictions the quartiles are
// not meaningful and nothing is removed.
func removeOutliers(preds []ModelPrediction) (kept []ModelPrediction, removed int) {
	if len(preds) < 4 {
		return preds, 0
	}

	changes := make([]float64, len(preds))
	for i, p := range preds {
		changes[i] = p.Change
	}
	sort.Float64s(changes)

	q1 := quantile(changes, 0.25)
	q3 := quantile(changes, 0.75)
	iqr := q3 - q1
	lo := q1 - iqrMultiplier*iqr
	hi := q3 + iqrMultiplier*iqr

	kept = make([]ModelPrediction, 0, len(preds))
	for _, p := range preds {
		if p.Change < lo || p.Change > hi {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	return kept, removed
}

// quantile interpolates linearly on a sorted sample.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
