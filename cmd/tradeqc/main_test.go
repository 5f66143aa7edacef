package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeqc/internal/domain"
	"tradeqc/internal/exporter"
)

func TestGroupTrades(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		{Instrument: "TCBT", Timestamp: base.Add(2 * time.Minute)},
		{Instrument: "TGBT", Timestamp: base},
		{Instrument: "TCBT", Timestamp: base},
		{Instrument: "TCBT", Timestamp: base.Add(time.Minute)},
	}

	sorted := groupTrades(trades, true)
	require.Len(t, sorted, 2)
	require.Len(t, sorted["TCBT"], 3)
	assert.True(t, sorted["TCBT"][0].Timestamp.Before(sorted["TCBT"][1].Timestamp))
	assert.True(t, sorted["TCBT"][1].Timestamp.Before(sorted["TCBT"][2].Timestamp))

	unsorted := groupTrades(trades, false)
	assert.Equal(t, base.Add(2*time.Minute), unsorted["TCBT"][0].Timestamp)
}

func TestRunCmdEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "trades.csv")
	outDir := filepath.Join(dir, "output")

	// Trades arrive shuffled; run sorts per instrument by default. The
	// fourth TCBT minute has a volume spike well past k*median.
	csvData := `timestamp,instrument,price,volume,trade_id
2025-01-01T09:03:00Z,TCBT,100,1000,t4
2025-01-01T09:00:00Z,TCBT,100,10,t1
2025-01-01T09:01:00Z,TCBT,100,10,t2
2025-01-01T09:02:00Z,TCBT,100,10,t3
2025-01-01T09:00:30Z,TGBT,20,5,t5
bad row
2025-01-01T09:02:00Z,TCBT,100,10,t3
`
	require.NoError(t, os.WriteFile(input, []byte(csvData), 0o644))

	err := runCmd(context.Background(), []string{
		"-input", input,
		"-outdir", outDir,
		"-n", "2",
		"-m", "3",
		"-k", "10",
	})
	require.NoError(t, err)

	for _, name := range []string{"cleaned_trades.csv", "aggregated_TCBT.csv", "aggregated_TGBT.csv", "report.txt", "run_summary.json"} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, name)
	}

	artifact, err := exporter.ReadRunArtifact(outDir)
	require.NoError(t, err)
	assert.Equal(t, 5, artifact.TotalTrades)
	assert.Equal(t, 5, artifact.TotalBars)
	assert.Equal(t, 1, artifact.Anomalies)
	assert.NotEmpty(t, artifact.RunID)
	assert.Equal(t, 7, artifact.Cleaning.Total)
	assert.Equal(t, 2, artifact.Cleaning.Skipped)
}

func TestRunCmdBadInput(t *testing.T) {
	err := runCmd(context.Background(), []string{
		"-input", filepath.Join(t.TempDir(), "missing.csv"),
		"-outdir", t.TempDir(),
	})
	require.Error(t, err)
}
