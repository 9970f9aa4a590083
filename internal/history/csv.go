package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zzhtl/biga/internal/market"
)

// csvDateLayouts are tried in order when parsing the date column.
var csvDateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

// LoadCSVFile reads a daily OHLCV export. Expected columns:
// date,open,high,low,close,volume[,amount]; a header row is detected and
// skipped.
func LoadCSVFile(path, symbol string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history: open csv: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, symbol)
}

func LoadCSV(r io.Reader, symbol string) ([]market.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var bars []market.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("history: read csv line %d: %w", line+1, err)
		}
		line++
		if len(record) < 6 {
			return nil, fmt.Errorf("history: csv line %d: need at least 6 columns, got %d", line, len(record))
		}
		if line == 1 && looksLikeHeader(record) {
			continue
		}

		bar, err := parseCSVRecord(record, symbol)
		if err != nil {
			return nil, fmt.Errorf("history: csv line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("history: csv contains no data rows")
	}

	bars = market.Derive(bars)
	if err := market.Validate(bars); err != nil {
		return nil, fmt.Errorf("history: invalid csv series: %w", err)
	}
	return bars, nil
}

func looksLikeHeader(record []string) bool {
	_, err := parseDate(record[0])
	return err != nil
}

func parseCSVRecord(record []string, symbol string) (market.Bar, error) {
	date, err := parseDate(record[0])
	if err != nil {
		return market.Bar{}, err
	}

	fields := make([]float64, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s value %q", names[i], record[i+1])
		}
		fields[i] = v
	}

	bar := market.Bar{
		Symbol: symbol,
		Date:   date,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}
	if len(record) >= 7 {
		amount, err := strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad amount value %q", record[6])
		}
		bar.Amount = amount
	} else {
		bar.Amount = bar.Close * bar.Volume
	}
	return bar, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
