package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tradeqc/internal/domain"
	"tradeqc/internal/engine"
)

// CSVWriter writes per-instrument aggregated bar files.
type CSVWriter struct {
	outDir string
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer rooted at outDir.
func NewCSVWriter(outDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{outDir: outDir, logger: logger}
}

// Header returns the aggregated CSV header for the given window sizes.
// The statistic columns carry the window size in their name so the output
// is self-describing.
func Header(params engine.Params) []string {
	return []string{
		"minute_start", "open", "high", "low", "close", "volume",
		fmt.Sprintf("vwap_rolling%d", params.VWAPWindow),
		fmt.Sprintf("medianvol_%d", params.MedianWindow),
		"is_anomaly",
	}
}

// WriteInstrument writes aggregated_<INSTRUMENT>.csv and returns its path.
func (w *CSVWriter) WriteInstrument(instrument string, bars []domain.EnrichedBar, params engine.Params) (string, error) {
	if err := os.MkdirAll(w.outDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(w.outDir, fmt.Sprintf("aggregated_%s.csv", instrument))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(Header(params)); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, bar := range bars {
		if err := writer.Write(barRecord(bar)); err != nil {
			return "", fmt.Errorf("write bar %d: %w", i, err)
		}
	}
	if err := writer.Error(); err != nil {
		return "", err
	}

	w.logger.Info("wrote instrument CSV",
		slog.String("path", path),
		slog.Int("bars", len(bars)))
	return path, nil
}

func barRecord(bar domain.EnrichedBar) []string {
	return []string{
		formatMinute(bar.MinuteStart),
		formatFloat(bar.Open),
		formatFloat(bar.High),
		formatFloat(bar.Low),
		formatFloat(bar.Close),
		formatFloat(bar.Volume),
		formatOptFloat(bar.RollingVWAP),
		formatOptFloat(bar.MedianVolume),
		formatBool(bar.IsAnomaly),
	}
}
