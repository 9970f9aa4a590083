package ensemble

import (
	"errors"
	"math"
	"testing"
)

func pred(id string, kind SourceKind, dir int, change, conf, weight float64) ModelPrediction {
	return ModelPrediction{
		SourceID:   id,
		Kind:       kind,
		Direction:  dir,
		Change:     change,
		Confidence: conf,
		Weight:     weight,
	}
}

func approx(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func TestFuseIdenticalPredictions(t *testing.T) {
	preds := []ModelPrediction{
		pred("tech-1", KindTechnical, 1, 0.02, 0.8, 1.0),
		pred("tech-2", KindTechnical, 1, 0.02, 0.8, 1.0),
		pred("tech-3", KindTechnical, 1, 0.02, 0.8, 1.0),
	}
	out, err := Fuse(preds, Config{Strategy: WeightedAverage, MinModels: 3}, 0.1)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.FinalDirection != 1 {
		t.Errorf("direction = %d, want 1", out.FinalDirection)
	}
	if !approx(out.FinalChange, 0.02, 1e-12) {
		t.Errorf("change = %v, want 0.02", out.FinalChange)
	}
	if out.ConsensusScore != 1.0 {
		t.Errorf("consensus = %v, want 1.0", out.ConsensusScore)
	}
	// confidence 0.8 scaled by (0.8 + 0.2*1.0) = 0.8
	if !approx(out.EnsembleConfidence, 0.8, 1e-12) {
		t.Errorf("confidence = %v, want 0.8", out.EnsembleConfidence)
	}
	if out.Risk.RiskLevel != RiskLow {
		t.Errorf("risk level = %q, want %q", out.Risk.RiskLevel, RiskLow)
	}
}

func TestFuseInsufficientModels(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.01, 0.7, 1.0),
		pred("b", KindML, 1, 0.02, 0.7, 1.0),
	}
	_, err := Fuse(preds, Config{Strategy: WeightedAverage, MinModels: 3}, 0.2)
	if !errors.Is(err, ErrInsufficientModels) {
		t.Fatalf("err = %v, want ErrInsufficientModels", err)
	}
}

func TestFuseUnknownStrategy(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.01, 0.7, 1.0),
		pred("b", KindML, 1, 0.02, 0.7, 1.0),
		pred("c", KindStatistical, 1, 0.02, 0.7, 1.0),
	}
	if _, err := Fuse(preds, Config{Strategy: "bagging", MinModels: 3}, 0.2); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestWeightedAverageRespectsWeightAndConfidence(t *testing.T) {
	preds := []ModelPrediction{
		pred("heavy", KindTechnical, 1, 0.04, 1.0, 3.0),
		pred("light", KindTechnical, -1, -0.02, 1.0, 1.0),
	}
	change, _ := weightedAverage(preds)
	// (0.04*3 - 0.02*1) / 4 = 0.025
	if !approx(change, 0.025, 1e-12) {
		t.Errorf("change = %v, want 0.025", change)
	}
}

func TestVotingWinnerDirection(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.03, 0.9, 1.0),
		pred("b", KindTechnical, 1, 0.01, 0.6, 1.0),
		pred("c", KindML, -1, -0.05, 0.9, 1.0),
	}
	out, err := Fuse(preds, Config{Strategy: Voting, MinModels: 3}, 0.2)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.FinalDirection != 1 {
		t.Errorf("direction = %d, want 1", out.FinalDirection)
	}
	// winning side mean change: (0.03 + 0.01) / 2
	if !approx(out.FinalChange, 0.02, 1e-12) {
		t.Errorf("change = %v, want 0.02", out.FinalChange)
	}
	if out.ConsensusScore <= 0 || out.ConsensusScore >= 1 {
		t.Errorf("consensus = %v, want strictly between 0 and 1", out.ConsensusScore)
	}
}

func TestStackingLayerWeights(t *testing.T) {
	preds := []ModelPrediction{
		pred("tech", KindTechnical, 1, 0.02, 1.0, 1.0),
		pred("ml", KindML, 1, 0.04, 1.0, 1.0),
		pred("stat", KindStatistical, 0, 0.0, 1.0, 1.0),
	}
	change, _ := stacking(preds)
	// 0.02*0.35 + 0.04*0.45 + 0*0.20
	if !approx(change, 0.025, 1e-12) {
		t.Errorf("change = %v, want 0.025", change)
	}
}

func TestStackingIsBitStable(t *testing.T) {
	// Values chosen so the three layer terms accumulate rounding error;
	// a varying accumulation order would show up in the last ULP.
	preds := []ModelPrediction{
		pred("tech", KindTechnical, 1, 0.0123456789, 0.73, 1.1),
		pred("ml", KindML, 1, 0.0234567891, 0.81, 0.9),
		pred("stat", KindStatistical, -1, -0.0091234567, 0.64, 1.3),
	}

	firstChange, firstConf := stacking(preds)
	for i := 0; i < 100; i++ {
		change, conf := stacking(preds)
		if change != firstChange || conf != firstConf {
			t.Fatalf("run %d: stacking(%v) = (%v, %v), first run gave (%v, %v)",
				i, preds, change, conf, firstChange, firstConf)
		}
	}
}

func TestStackingMissingLayerRenormalizes(t *testing.T) {
	preds := []ModelPrediction{
		pred("tech", KindTechnical, 1, 0.02, 1.0, 1.0),
		pred("ml", KindML, 1, 0.04, 1.0, 1.0),
	}
	change, _ := stacking(preds)
	// (0.02*0.35 + 0.04*0.45) / 0.80
	if !approx(change, 0.03125, 1e-12) {
		t.Errorf("change = %v, want 0.03125", change)
	}
}

func TestDynamicSelectionKeepsTopHalf(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.04, 0.9, 1.0),
		pred("b", KindTechnical, 1, 0.02, 0.8, 1.0),
		pred("c", KindML, -1, -0.10, 0.3, 1.0),
		pred("d", KindStatistical, -1, -0.10, 0.2, 1.0),
	}
	out, err := Fuse(preds, Config{Strategy: DynamicSelection, MinModels: 3}, 0.2)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.FinalDirection != 1 {
		t.Errorf("direction = %d, want 1 from high-confidence models", out.FinalDirection)
	}
	// WA over the two most confident: (0.04*0.9 + 0.02*0.8) / 1.7
	if !approx(out.FinalChange, 0.052/1.7, 1e-12) {
		t.Errorf("change = %v, want %v", out.FinalChange, 0.052/1.7)
	}
}

func TestDynamicSelectionSingleModelFloor(t *testing.T) {
	preds := []ModelPrediction{pred("only", KindTechnical, 1, 0.03, 0.9, 1.0)}
	change, _ := dynamicSelection(preds)
	if !approx(change, 0.03, 1e-12) {
		t.Errorf("change = %v, want 0.03", change)
	}
}

func TestHybridIdenticalPredictions(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.02, 0.8, 1.0),
		pred("b", KindTechnical, 1, 0.02, 0.8, 1.0),
		pred("c", KindTechnical, 1, 0.02, 0.8, 1.0),
	}
	out, err := Fuse(preds, Config{Strategy: Hybrid, MinModels: 3}, 0.1)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.FinalDirection != 1 {
		t.Errorf("direction = %d, want 1", out.FinalDirection)
	}
	if !approx(out.FinalChange, 0.02, 1e-12) {
		t.Errorf("change = %v, want 0.02", out.FinalChange)
	}
	if !approx(out.EnsembleConfidence, 0.8, 1e-12) {
		t.Errorf("confidence = %v, want 0.8", out.EnsembleConfidence)
	}
}

func TestDirectionEpsilonFlat(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.003, 1.0, 1.0),
		pred("b", KindTechnical, -1, -0.002, 1.0, 1.0),
		pred("c", KindTechnical, 0, 0.0005, 1.0, 1.0),
	}
	out, err := Fuse(preds, Config{Strategy: WeightedAverage, MinModels: 3}, 0.1)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.FinalDirection != 0 {
		t.Errorf("direction = %d, want 0 within epsilon", out.FinalDirection)
	}
}

func TestOutlierRemoval(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.020, 0.8, 1.0),
		pred("b", KindTechnical, 1, 0.021, 0.8, 1.0),
		pred("c", KindTechnical, 1, 0.019, 0.8, 1.0),
		pred("d", KindTechnical, 1, 0.020, 0.8, 1.0),
		pred("e", KindML, 1, 0.300, 0.8, 1.0),
	}
	kept, removed := removeOutliers(preds)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	for _, p := range kept {
		if p.SourceID == "e" {
			t.Error("outlier prediction survived removal")
		}
	}

	out, err := Fuse(preds, Config{Strategy: WeightedAverage, MinModels: 3, RemoveOutliers: true}, 0.1)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.FinalChange > 0.03 {
		t.Errorf("change = %v, outlier still dominating", out.FinalChange)
	}
	if len(out.Warnings) == 0 {
		t.Error("expected an outlier removal warning")
	}
}

func TestOutlierRemovalSkippedBelowMinModels(t *testing.T) {
	preds := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.020, 0.8, 1.0),
		pred("b", KindTechnical, 1, 0.021, 0.8, 1.0),
		pred("c", KindTechnical, 1, 0.019, 0.8, 1.0),
		pred("d", KindML, 1, 0.300, 0.8, 1.0),
	}
	out, err := Fuse(preds, Config{Strategy: WeightedAverage, MinModels: 4, RemoveOutliers: true}, 0.1)
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	if out.ModelCount != 4 {
		t.Errorf("model count = %d, want all 4 retained", out.ModelCount)
	}
}

func TestRiskBands(t *testing.T) {
	cases := []struct {
		score, conf float64
		want        string
	}{
		{0.1, 0.9, RiskLow},
		{0.4, 0.65, RiskMedium},
		{0.4, 0.5, RiskHigh},
		{0.65, 0.9, RiskHigh},
		{0.8, 0.9, RiskVeryHigh},
	}
	for _, c := range cases {
		level, rec := riskBand(c.score, c.conf)
		if level != c.want {
			t.Errorf("riskBand(%v, %v) = %q, want %q", c.score, c.conf, level, c.want)
		}
		if rec == "" {
			t.Errorf("riskBand(%v, %v) returned empty recommendation", c.score, c.conf)
		}
	}
}

func TestRiskRisesWithDisagreement(t *testing.T) {
	agree := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.02, 0.9, 1.0),
		pred("b", KindML, 1, 0.02, 0.9, 1.0),
		pred("c", KindStatistical, 1, 0.02, 0.9, 1.0),
	}
	disagree := []ModelPrediction{
		pred("a", KindTechnical, 1, 0.08, 0.4, 1.0),
		pred("b", KindML, -1, -0.08, 0.4, 1.0),
		pred("c", KindStatistical, 0, 0.0, 0.4, 1.0),
	}
	cfg := Config{Strategy: WeightedAverage, MinModels: 3}
	calm, err := Fuse(agree, cfg, 0.2)
	if err != nil {
		t.Fatalf("Fuse(agree) error: %v", err)
	}
	noisy, err := Fuse(disagree, cfg, 0.2)
	if err != nil {
		t.Fatalf("Fuse(disagree) error: %v", err)
	}
	if noisy.Risk.RiskScore <= calm.Risk.RiskScore {
		t.Errorf("risk score %v with disagreement, want above %v", noisy.Risk.RiskScore, calm.Risk.RiskScore)
	}
	if noisy.ConsensusScore >= calm.ConsensusScore {
		t.Errorf("consensus %v with disagreement, want below %v", noisy.ConsensusScore, calm.ConsensusScore)
	}
}

func BenchmarkFuseHybrid(b *testing.B) {
	preds := make([]ModelPrediction, 0, 9)
	kinds := []SourceKind{KindTechnical, KindML, KindStatistical}
	for i := 0; i < 9; i++ {
		preds = append(preds, pred("m", kinds[i%3], 1-(i%3), float64(i-4)*0.01, 0.5+float64(i)*0.05, 1.0))
	}
	cfg := Config{Strategy: Hybrid, MinModels: 3, RemoveOutliers: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Fuse(preds, cfg, 0.3); err != nil {
			b.Fatal(err)
		}
	}
}
