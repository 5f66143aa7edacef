package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"tradeqc/internal/domain"
	"tradeqc/internal/engine"
)

// barRow is the flat parquet schema for enriched bars. Statistic columns
// are optional: they are absent during window warm-up.
type barRow struct {
	Instrument   string   `parquet:"instrument,dict"`
	MinuteStart  int64    `parquet:"minute_start"` // Unix timestamp in milliseconds
	Open         float64  `parquet:"open"`
	High         float64  `parquet:"high"`
	Low          float64  `parquet:"low"`
	Close        float64  `parquet:"close"`
	Volume       float64  `parquet:"volume"`
	RollingVWAP  *float64 `parquet:"vwap_rolling,optional"`
	MedianVolume *float64 `parquet:"median_volume,optional"`
	IsAnomaly    bool     `parquet:"is_anomaly"`
}

// WriteParquet writes all instruments' enriched bars to bars.parquet in
// outDir, in instrument-then-time order, and returns the file path.
func WriteParquet(outDir string, results []engine.Result, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	rows := make([]barRow, 0, 1024)
	for _, res := range results {
		for _, bar := range res.Bars {
			rows = append(rows, toBarRow(bar))
		}
	}

	path := filepath.Join(outDir, "bars.parquet")
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("write parquet: %w", err)
	}

	logger.Info("wrote parquet bars",
		slog.String("path", path),
		slog.Int("rows", len(rows)))
	return path, nil
}

func toBarRow(bar domain.EnrichedBar) barRow {
	return barRow{
		Instrument:   bar.Instrument,
		MinuteStart:  bar.MinuteStart.UTC().UnixMilli(),
		Open:         bar.Open,
		High:         bar.High,
		Low:          bar.Low,
		Close:        bar.Close,
		Volume:       bar.Volume,
		RollingVWAP:  bar.RollingVWAP,
		MedianVolume: bar.MedianVolume,
		IsAnomaly:    bar.IsAnomaly,
	}
}
