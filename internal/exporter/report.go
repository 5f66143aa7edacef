package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tradeqc/internal/cleaning"
	"tradeqc/internal/domain"
)

// RunArtifact is the machine-readable form of a completed run, written
// next to report.txt and consumed by the results server.
type RunArtifact struct {
	domain.RunSummary
	Cleaning    cleaning.Stats `json:"cleaning"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// WriteRunArtifact writes run_summary.json and returns its path.
func WriteRunArtifact(outDir string, summary domain.RunSummary, stats cleaning.Stats) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	artifact := RunArtifact{
		RunSummary:  summary,
		Cleaning:    stats,
		GeneratedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run summary: %w", err)
	}
	path := filepath.Join(outDir, "run_summary.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// ReadRunArtifact loads run_summary.json from a completed run directory.
func ReadRunArtifact(outDir string) (*RunArtifact, error) {
	data, err := os.ReadFile(filepath.Join(outDir, "run_summary.json"))
	if err != nil {
		return nil, fmt.Errorf("read run summary: %w", err)
	}
	var artifact RunArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse run summary: %w", err)
	}
	return &artifact, nil
}

// WriteReport writes the human-readable report.txt with the cleaning
// detail, per-instrument detail and overall summary sections, and returns
// its path.
func WriteReport(outDir string, summary domain.RunSummary, stats cleaning.Stats, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	var b strings.Builder

	b.WriteString("=== Data Cleaning ===\n\n")
	fmt.Fprintf(&b, "  Input file:     %s\n", summary.InputFile)
	fmt.Fprintf(&b, "  Rows read:      %d\n", stats.Total)
	fmt.Fprintf(&b, "  Rows kept:      %d\n", stats.Kept)
	fmt.Fprintf(&b, "  Rows dropped:   %d\n", stats.Skipped)
	if len(stats.Reasons) > 0 {
		b.WriteString("\n  Skip reasons:\n")
		for _, reason := range sortedKeys(stats.Reasons) {
			fmt.Fprintf(&b, "    %s: %d\n", reason, stats.Reasons[reason])
		}
	}
	b.WriteString("\n")

	b.WriteString("=== Per-Instrument Detail ===\n")
	instruments := append([]domain.InstrumentSummary(nil), summary.Instruments...)
	sort.Slice(instruments, func(i, j int) bool { return instruments[i].Instrument < instruments[j].Instrument })
	for _, s := range instruments {
		fmt.Fprintf(&b, "\n  %s\n", s.Instrument)
		fmt.Fprintf(&b, "  Bars:         %d\n", s.Bars)
		fmt.Fprintf(&b, "  Total volume: %s\n", formatFloat(s.TotalVolume))
		fmt.Fprintf(&b, "  Price range:  %s - %s\n", formatFloat(s.PriceLow), formatFloat(s.PriceHigh))
		fmt.Fprintf(&b, "  Anomalies:    %d\n", len(s.Anomalies))
		if top := topAnomalies(s.Anomalies, 3); len(top) > 0 {
			b.WriteString("    Top anomalies:\n")
			for _, a := range top {
				fmt.Fprintf(&b, "    %s  vol=%s  median=%s  ratio=%.2f\n",
					formatMinute(a.MinuteStart), formatFloat(a.Volume), formatFloat(a.MedianVolume), a.Ratio())
			}
		}
	}
	b.WriteString("\n")

	b.WriteString("=== Overall Summary ===\n\n")
	fmt.Fprintf(&b, "  Instruments: %d\n", len(summary.Instruments))
	fmt.Fprintf(&b, "  Total bars:  %d\n", summary.TotalBars)
	fmt.Fprintf(&b, "  Time range:  %s to %s\n", timeOrNA(summary.TimeMin), timeOrNA(summary.TimeMax))
	anomPct := 0.0
	if summary.TotalBars > 0 {
		anomPct = float64(summary.Anomalies) / float64(summary.TotalBars) * 100
	}
	fmt.Fprintf(&b, "  Anomalies:   %d / %d (%.2f%%)\n", summary.Anomalies, summary.TotalBars, anomPct)
	b.WriteString("\n  Parameters:\n")
	fmt.Fprintf(&b, "    N (VWAP window):    %d\n", summary.VWAPWindow)
	fmt.Fprintf(&b, "    M (median window):  %d\n", summary.MedianWindow)
	fmt.Fprintf(&b, "    k (anomaly factor): %s\n", formatFloat(summary.AnomalyK))

	path := filepath.Join(outDir, "report.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	logger.Info("wrote report", slog.String("path", path))
	return path, nil
}

// topAnomalies returns the n most severe anomalies by volume/median ratio.
func topAnomalies(anomalies []domain.Anomaly, n int) []domain.Anomaly {
	top := append([]domain.Anomaly(nil), anomalies...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Ratio() > top[j].Ratio() })
	if len(top) > n {
		top = top[:n]
	}
	return top
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func timeOrNA(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return formatMinute(t)
}
