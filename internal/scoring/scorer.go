package scoring

import (
	"fmt"
	"math"
)

// Signal quality bands by total score.
const (
	QualityExtreme  = "extreme"
	QualityStrong   = "strong"
	QualityGood     = "good"
	QualityModerate = "moderate"
	QualityFair     = "fair"
	QualityWeak     = "weak"
)

// MultiFactorScore is the combined, regime-weighted result.
type MultiFactorScore struct {
	Factors             []FactorScore `json:"factors"`
	TotalScore          float64       `json:"total_score"`
	SignalQuality       string        `json:"signal_quality"`
	OperationSuggestion string        `json:"operation_suggestion"`
	Regime              Regime        `json:"regime"`
	Warnings            []string      `json:"warnings,omitempty"`
}

// Compute weighs the factor scores with the regime-adjusted vector.
// NaN or out-of-range raw scores are clamped and flagged degraded;
// scoring always completes. The only rejection is an invalid base weight
// vector, surfaced as *ConfigError before any computation.
func Compute(factors []FactorScore, base Weights, regime Regime) (*MultiFactorScore, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}

	weights := AdjustWeights(base, regime)

	out := &MultiFactorScore{
		Factors: make([]FactorScore, len(factors)),
		Regime:  regime,
	}

	total := 0.0
	for i, f := range factors {
		if math.IsNaN(f.RawScore) {
			f.RawScore = 50
			f.Degraded = true
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("factor %s: NaN raw score replaced with neutral", f.Name))
		} else if f.RawScore < 0 || f.RawScore > 100 {
			clamped := clampScore(f.RawScore, 0, 100)
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("factor %s: raw score %.2f clamped to %.2f", f.Name, f.RawScore, clamped))
			f.RawScore = clamped
			f.Degraded = true
		}

		f.Weight = weights[f.Name]
		total += f.Weight * f.RawScore
		out.Factors[i] = f
	}

	out.TotalScore = clampScore(total, 0, 100)
	out.SignalQuality = qualityOf(out.TotalScore)
	out.OperationSuggestion = suggestionOf(out.TotalScore)
	return out, nil
}

func qualityOf(total float64) string {
	switch {
	case total >= 90:
		return QualityExtreme
	case total >= 80:
		return QualityStrong
	case total >= 70:
		return QualityGood
	case total >= 60:
		return QualityModerate
	case total >= 50:
		return QualityFair
	default:
		return QualityWeak
	}
}

func suggestionOf(total float64) string {
	switch {
	case total >= 75:
		return "建议积极买入，多因子共振强烈"
	case total >= 65:
		return "建议逢低买入，信号整体偏多"
	case total >= 55:
		return "建议轻仓试探，信号中性偏多"
	case total >= 45:
		return "建议观望，多空信号不明"
	case total >= 35:
		return "建议减仓，信号整体偏空"
	default:
		return "建议回避，空头信号强烈"
	}
}
