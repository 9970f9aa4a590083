package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zzhtl/biga/internal/backtest"
)

func sampleReport() *backtest.Report {
	return &backtest.Report{
		RunID:             "run-42",
		Symbol:            "600519",
		Start:             time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:               time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		HorizonDays:       3,
		TotalPredictions:  2,
		PriceAccuracy:     0.97,
		DirectionAccuracy: 0.5,
		Entries: []backtest.Entry{
			{
				ID:               "e1",
				PredictionDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				TargetDate:       time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
				BasePrice:        100, PredictedPrice: 102, ActualPrice: 101,
				PredictedChange: 0.02, ActualChange: 0.01,
				PriceAccuracy: 0.99, DirectionCorrect: true, Confidence: 0.8,
			},
			{
				ID:               "e2",
				PredictionDate:   time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
				TargetDate:       time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
				BasePrice:        101, PredictedPrice: 103, ActualPrice: 99,
				PredictedChange: 0.02, ActualChange: -0.02,
				PriceAccuracy: 0.96, DirectionCorrect: false, Confidence: 0.7,
			},
		},
		MonthlyAccuracy: []backtest.MonthlyBucket{
			{Month: "2024-03", Predictions: 2, PriceAccuracy: 0.97, DirectionAccuracy: 0.5},
		},
		ErrorDistribution: []backtest.ErrorBucket{{Label: "<1%", Count: 1}, {Label: "2-5%", Count: 1}},
		VolatilityBuckets: []backtest.VolatilityBucket{{Label: "normal 1-3%", Predictions: 2, DirectionAccuracy: 0.5}},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteXLSX returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{sheetSummary, sheetEntries, sheetBuckets} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("sheet %q missing (idx %d, err %v)", sheet, idx, err)
		}
	}

	got, err := f.GetCellValue(sheetSummary, "B2")
	if err != nil || got != "600519" {
		t.Errorf("summary symbol cell = %q, err %v", got, err)
	}
	got, err = f.GetCellValue(sheetEntries, "A2")
	if err != nil || got != "2024-03-01" {
		t.Errorf("first entry date cell = %q, err %v", got, err)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	var decoded backtest.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.RunID != "run-42" || len(decoded.Entries) != 2 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
