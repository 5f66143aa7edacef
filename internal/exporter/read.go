package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tradeqc/internal/domain"
)

// ReadInstrumentCSV loads aggregated_<INSTRUMENT>.csv back into enriched
// bars. It is the inverse of WriteInstrument and is used by the results
// server to serve bars from a completed run directory.
func ReadInstrumentCSV(outDir, instrument string) ([]domain.EnrichedBar, error) {
	path := filepath.Join(outDir, fmt.Sprintf("aggregated_%s.csv", instrument))
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	bars := make([]domain.EnrichedBar, 0, len(rows)-1)
	for i, row := range rows[1:] {
		bar, err := parseBarRecord(instrument, row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(instrument string, row []string) (domain.EnrichedBar, error) {
	if len(row) != 9 {
		return domain.EnrichedBar{}, fmt.Errorf("expected 9 columns, got %d", len(row))
	}

	minute, err := time.Parse(minuteLayout, row[0])
	if err != nil {
		return domain.EnrichedBar{}, fmt.Errorf("parse minute_start: %w", err)
	}

	var vals [5]float64
	for i, raw := range row[1:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.EnrichedBar{}, fmt.Errorf("parse column %d: %w", i+1, err)
		}
		vals[i] = v
	}

	bar := domain.EnrichedBar{
		Bar: domain.Bar{
			Instrument:  instrument,
			MinuteStart: minute.UTC(),
			Open:        vals[0],
			High:        vals[1],
			Low:         vals[2],
			Close:       vals[3],
			Volume:      vals[4],
		},
		IsAnomaly: row[8] == "true",
	}

	if bar.RollingVWAP, err = parseOptFloat(row[6]); err != nil {
		return domain.EnrichedBar{}, fmt.Errorf("parse vwap: %w", err)
	}
	if bar.MedianVolume, err = parseOptFloat(row[7]); err != nil {
		return domain.EnrichedBar{}, fmt.Errorf("parse median volume: %w", err)
	}
	return bar, nil
}

func parseOptFloat(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
