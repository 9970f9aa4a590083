package ensemble

// Risk level labels match the operation suggestions surfaced to clients.
const (
	RiskLow      = "低"
	RiskMedium   = "中"
	RiskHigh     = "高"
	RiskVeryHigh = "极高"
)

// RiskAssessment quantifies how much trust the fused prediction deserves.
type RiskAssessment struct {
	UncertaintyScore  float64 `json:"uncertainty_score"`
	ModelDisagreement float64 `json:"model_disagreement"`
	MarketVolatility  float64 `json:"market_volatility"`
	RiskScore         float64 `json:"risk_score"`
	RiskLevel         string  `json:"risk_level"`
	Recommendation    string  `json:"recommendation"`
}

// assessRisk derives risk from fused confidence, consensus, the variance
// of the individual change predictions, and the ambient market volatility.
func assessRisk(preds []ModelPrediction, fused *EnsemblePrediction, marketVolatility float64) RiskAssessment {
	disagreement := changeVariance(preds)
	uncertainty := (1-fused.EnsembleConfidence)*0.5 +
		(1-fused.ConsensusScore)*0.3 +
		disagreement*2.0
	uncertainty = clamp01(uncertainty)

	vol := clamp01(marketVolatility)
	score := clamp01(uncertainty*0.4 + clamp01(disagreement)*0.3 + vol*0.3)

	level, recommendation := riskBand(score, fused.EnsembleConfidence)
	return RiskAssessment{
		UncertaintyScore:  uncertainty,
		ModelDisagreement: disagreement,
		MarketVolatility:  vol,
		RiskScore:         score,
		RiskLevel:         level,
		Recommendation:    recommendation,
	}
}

func riskBand(score, confidence float64) (level, recommendation string) {
	switch {
	case score < 0.3 && confidence > 0.7:
		return RiskLow, "预测可信度高，可作为主要参考依据"
	case score < 0.5 && confidence > 0.6:
		return RiskMedium, "预测具有一定参考价值，建议结合其他信息"
	case score < 0.7:
		return RiskHigh, "预测不确定性较大，仅供参考，谨慎操作"
	default:
		return RiskVeryHigh, "模型分歧严重，不建议依据此预测操作"
	}
}

func changeVariance(preds []ModelPrediction) float64 {
	if len(preds) == 0 {
		return 0
	}
	s := changeStddev(preds)
	return s * s
}
