// Package report exports backtest reports to XLSX and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/zzhtl/biga/internal/backtest"
)

const (
	sheetSummary = "Summary"
	sheetEntries = "Predictions"
	sheetBuckets = "Accuracy"
)

// WriteXLSX renders the report as a three-sheet workbook.
func WriteXLSX(w io.Writer, r *backtest.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetSummary)
	if err := writeSummary(f, r); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetEntries); err != nil {
		return fmt.Errorf("report: create sheet: %w", err)
	}
	if err := writeEntries(f, r); err != nil {
		return err
	}
	if _, err := f.NewSheet(sheetBuckets); err != nil {
		return fmt.Errorf("report: create sheet: %w", err)
	}
	if err := writeBuckets(f, r); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to a file path.
func SaveXLSX(path string, r *backtest.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	return WriteXLSX(f, r)
}

func writeSummary(f *excelize.File, r *backtest.Report) error {
	rows := [][]any{
		{"Run ID", r.RunID},
		{"Symbol", r.Symbol},
		{"Start", r.Start.Format("2006-01-02")},
		{"End", r.End.Format("2006-01-02")},
		{"Horizon (days)", r.HorizonDays},
		{"Predictions", r.TotalPredictions},
		{"Skipped steps", r.SkippedSteps},
		{"Price accuracy", r.PriceAccuracy},
		{"Direction accuracy", r.DirectionAccuracy},
		{"Mean confidence", r.MeanConfidence},
		{"Mean relative error", r.MeanAbsError},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("report: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("report: summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeEntries(f *excelize.File, r *backtest.Report) error {
	header := []any{
		"Prediction date", "Target date", "Base price", "Predicted price",
		"Actual price", "Predicted change", "Actual change",
		"Price accuracy", "Direction correct", "Confidence",
	}
	if err := f.SetSheetRow(sheetEntries, "A1", &header); err != nil {
		return fmt.Errorf("report: entries header: %w", err)
	}
	for i, e := range r.Entries {
		row := []any{
			e.PredictionDate.Format("2006-01-02"),
			e.TargetDate.Format("2006-01-02"),
			e.BasePrice, e.PredictedPrice, e.ActualPrice,
			e.PredictedChange, e.ActualChange,
			e.PriceAccuracy, e.DirectionCorrect, e.Confidence,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetEntries, cell, &row); err != nil {
			return fmt.Errorf("report: entry row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeBuckets(f *excelize.File, r *backtest.Report) error {
	rows := [][]any{{"Monthly accuracy"}, {"Month", "Predictions", "Price accuracy", "Direction accuracy"}}
	for _, b := range r.MonthlyAccuracy {
		rows = append(rows, []any{b.Month, b.Predictions, b.PriceAccuracy, b.DirectionAccuracy})
	}
	rows = append(rows, []any{}, []any{"Error distribution"}, []any{"Bucket", "Count"})
	for _, b := range r.ErrorDistribution {
		rows = append(rows, []any{b.Label, b.Count})
	}
	rows = append(rows, []any{}, []any{"Volatility vs accuracy"}, []any{"Bucket", "Predictions", "Direction accuracy"})
	for _, b := range r.VolatilityBuckets {
		rows = append(rows, []any{b.Label, b.Predictions, b.DirectionAccuracy})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("report: cell name: %w", err)
		}
		r := row
		if err := f.SetSheetRow(sheetBuckets, cell, &r); err != nil {
			return fmt.Errorf("report: bucket row %d: %w", i+1, err)
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *backtest.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// SaveJSON writes the report to a file path.
func SaveJSON(path string, r *backtest.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(f, r)
}
