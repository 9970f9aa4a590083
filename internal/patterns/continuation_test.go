package patterns

import "testing"

func TestThreeWhiteSoldiers(t *testing.T) {
	detector := NewDetector(0.1)

	c1 := bar(10.0, 10.35, 9.95, 10.3)
	c2 := bar(10.2, 10.65, 10.15, 10.6)
	c3 := bar(10.5, 10.95, 10.45, 10.9)

	if !detector.isThreeWhiteSoldiers(c1, c2, c3) {
		t.Error("expected three white soldiers")
	}
	if detector.isThreeBlackCrows(c1, c2, c3) {
		t.Error("should not detect three black crows")
	}
}

func TestThreeBlackCrows(t *testing.T) {
	detector := NewDetector(0.1)

	c1 := bar(10.9, 10.95, 10.55, 10.6)
	c2 := bar(10.7, 10.75, 10.25, 10.3)
	c3 := bar(10.4, 10.45, 9.95, 10.0)

	if !detector.isThreeBlackCrows(c1, c2, c3) {
		t.Error("expected three black crows")
	}
}

func TestThreeWhiteSoldiersRequiresOverlappingOpens(t *testing.T) {
	detector := NewDetector(0.1)

	// Third candle gaps above the second body.
	c1 := bar(10.0, 10.35, 9.95, 10.3)
	c2 := bar(10.2, 10.65, 10.15, 10.6)
	c3 := bar(10.8, 11.2, 10.75, 11.1)

	if detector.isThreeWhiteSoldiers(c1, c2, c3) {
		t.Error("gapping third candle should not qualify")
	}
}

func TestMarubozu(t *testing.T) {
	detector := NewDetector(0.1)

	if !detector.isMarubozu(bar(10.0, 10.5, 10.0, 10.5)) {
		t.Error("full-body candle should be a marubozu")
	}
	if detector.isMarubozu(bar(10.0, 10.6, 9.9, 10.3)) {
		t.Error("candle with shadows should not be a marubozu")
	}
}
