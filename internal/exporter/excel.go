package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"tradeqc/internal/cleaning"
	"tradeqc/internal/domain"
	"tradeqc/internal/engine"
)

// WriteWorkbook writes tradeqc_report.xlsx with a Summary sheet and one
// sheet of enriched bars per instrument, and returns the file path.
func WriteWorkbook(outDir string, results []engine.Result, summary domain.RunSummary, stats cleaning.Stats, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	f.SetSheetName(f.GetSheetName(0), summarySheet)
	if err := writeSummarySheet(f, summarySheet, summary, stats); err != nil {
		return "", err
	}

	params := engine.Params{
		VWAPWindow:   summary.VWAPWindow,
		MedianWindow: summary.MedianWindow,
		AnomalyK:     summary.AnomalyK,
	}
	for _, res := range results {
		if err := writeInstrumentSheet(f, res, params); err != nil {
			return "", err
		}
	}

	path := filepath.Join(outDir, "tradeqc_report.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	logger.Info("wrote Excel workbook",
		slog.String("path", path),
		slog.Int("instruments", len(results)))
	return path, nil
}

func writeSummarySheet(f *excelize.File, sheet string, summary domain.RunSummary, stats cleaning.Stats) error {
	rows := [][]interface{}{
		{"Run ID", summary.RunID},
		{"Input file", summary.InputFile},
		{"Rows read", stats.Total},
		{"Rows kept", stats.Kept},
		{"Rows dropped", stats.Skipped},
		{"Instruments", len(summary.Instruments)},
		{"Total bars", summary.TotalBars},
		{"Anomalies", summary.Anomalies},
		{"Time range", fmt.Sprintf("%s to %s", timeOrNA(summary.TimeMin), timeOrNA(summary.TimeMax))},
		{"N (VWAP window)", summary.VWAPWindow},
		{"M (median window)", summary.MedianWindow},
		{"k (anomaly factor)", summary.AnomalyK},
	}
	for _, reason := range sortedKeys(stats.Reasons) {
		rows = append(rows, []interface{}{"Skipped: " + reason, stats.Reasons[reason]})
	}

	instruments := append([]domain.InstrumentSummary(nil), summary.Instruments...)
	sort.Slice(instruments, func(i, j int) bool { return instruments[i].Instrument < instruments[j].Instrument })
	rows = append(rows, []interface{}{})
	rows = append(rows, []interface{}{"Instrument", "Bars", "Total volume", "Price low", "Price high", "Anomalies"})
	for _, s := range instruments {
		rows = append(rows, []interface{}{s.Instrument, s.Bars, round4(s.TotalVolume), round4(s.PriceLow), round4(s.PriceHigh), len(s.Anomalies)})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeInstrumentSheet(f *excelize.File, res engine.Result, params engine.Params) error {
	if _, err := f.NewSheet(res.Instrument); err != nil {
		return fmt.Errorf("create sheet %s: %w", res.Instrument, err)
	}

	header := Header(params)
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(res.Instrument, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header for %s: %w", res.Instrument, err)
	}

	for i, bar := range res.Bars {
		row := []interface{}{
			formatMinute(bar.MinuteStart),
			round4(bar.Open), round4(bar.High), round4(bar.Low), round4(bar.Close),
			round4(bar.Volume),
			optCell(bar.RollingVWAP),
			optCell(bar.MedianVolume),
			bar.IsAnomaly,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(res.Instrument, cell, &row); err != nil {
			return fmt.Errorf("write bar row %d for %s: %w", i, res.Instrument, err)
		}
	}
	return nil
}

// optCell renders a nullable statistic as an empty cell when undefined.
func optCell(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return round4(*f)
}
