package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tradeqc/internal/cleaning"
	"tradeqc/internal/domain"
	"tradeqc/internal/engine"
)

func fptr(f float64) *float64 { return &f }

var testParams = engine.Params{VWAPWindow: 2, MedianWindow: 3, AnomalyK: 10}

func testBars() []domain.EnrichedBar {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	mk := func(i int, close, volume float64) domain.Bar {
		return domain.Bar{
			Instrument:  "TCBT",
			MinuteStart: base.Add(time.Duration(i) * time.Minute),
			Open:        close, High: close, Low: close, Close: close,
			Volume: volume,
		}
	}
	return []domain.EnrichedBar{
		{Bar: mk(0, 100.125, 10)},
		{Bar: mk(1, 101, 10), RollingVWAP: fptr(100.5)},
		{Bar: mk(2, 99, 10), RollingVWAP: fptr(100), MedianVolume: fptr(10)},
		{Bar: mk(3, 98, 1000), RollingVWAP: fptr(98.0196), MedianVolume: fptr(10), IsAnomaly: true},
	}
}

func testSummary() domain.RunSummary {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	return domain.RunSummary{
		RunID:     "run-1",
		InputFile: "trades.csv",
		Instruments: []domain.InstrumentSummary{{
			Instrument:  "TCBT",
			Trades:      4,
			Bars:        4,
			TotalVolume: 1030,
			PriceLow:    98,
			PriceHigh:   101,
			Anomalies: []domain.Anomaly{
				{MinuteStart: base.Add(3 * time.Minute), Volume: 1000, MedianVolume: 10},
			},
			FirstMinute: base,
			LastMinute:  base.Add(3 * time.Minute),
		}},
		TotalTrades:  4,
		TotalBars:    4,
		Anomalies:    1,
		TimeMin:      base,
		TimeMax:      base.Add(3 * time.Minute),
		VWAPWindow:   2,
		MedianWindow: 3,
		AnomalyK:     10,
	}
}

func TestWriteInstrumentCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := NewCSVWriter(dir, nil).WriteInstrument("TCBT", testBars(), testParams)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "aggregated_TCBT.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "minute_start,open,high,low,close,volume,vwap_rolling2,medianvol_3,is_anomaly", lines[0])
	assert.Equal(t, "2025-01-01T09:00:00Z,100.125,100.125,100.125,100.125,10,,,false", lines[1])
	assert.Equal(t, "2025-01-01T09:01:00Z,101,101,101,101,10,100.5,,false", lines[2])
	assert.Equal(t, "2025-01-01T09:02:00Z,99,99,99,99,10,100,10,false", lines[3])
	assert.Equal(t, "2025-01-01T09:03:00Z,98,98,98,98,1000,98.0196,10,true", lines[4])
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	stats := cleaning.Stats{
		Total:   10,
		Kept:    8,
		Skipped: 2,
		Reasons: map[string]int{"invalid_price": 1, "duplicate_trade_id": 1},
	}

	path, err := WriteReport(dir, testSummary(), stats, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)

	assert.Contains(t, report, "=== Data Cleaning ===")
	assert.Contains(t, report, "Rows read:      10")
	assert.Contains(t, report, "Rows kept:      8")
	assert.Contains(t, report, "Rows dropped:   2")
	assert.Contains(t, report, "duplicate_trade_id: 1")
	assert.Contains(t, report, "invalid_price: 1")

	assert.Contains(t, report, "=== Per-Instrument Detail ===")
	assert.Contains(t, report, "  TCBT\n")
	assert.Contains(t, report, "Bars:         4")
	assert.Contains(t, report, "Price range:  98 - 101")
	assert.Contains(t, report, "Anomalies:    1")
	assert.Contains(t, report, "ratio=100.00")

	assert.Contains(t, report, "=== Overall Summary ===")
	assert.Contains(t, report, "Instruments: 1")
	assert.Contains(t, report, "Anomalies:   1 / 4 (25.00%)")
	assert.Contains(t, report, "Time range:  2025-01-01T09:00:00Z to 2025-01-01T09:03:00Z")
	assert.Contains(t, report, "N (VWAP window):    2")
	assert.Contains(t, report, "M (median window):  3")
	assert.Contains(t, report, "k (anomaly factor): 10")
}

func TestWriteReportNoBars(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteReport(dir, domain.RunSummary{}, cleaning.Stats{}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Time range:  N/A to N/A")
	assert.Contains(t, string(data), "Anomalies:   0 / 0 (0.00%)")
}

func TestRunArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stats := cleaning.Stats{Total: 4, Kept: 4}

	_, err := WriteRunArtifact(dir, testSummary(), stats)
	require.NoError(t, err)

	artifact, err := ReadRunArtifact(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", artifact.RunID)
	assert.Equal(t, 4, artifact.Cleaning.Total)
	assert.Equal(t, 4, artifact.TotalBars)
	require.Len(t, artifact.Instruments, 1)
	assert.Equal(t, "TCBT", artifact.Instruments[0].Instrument)
	assert.False(t, artifact.GeneratedAt.IsZero())
}

func TestReadRunArtifactMissing(t *testing.T) {
	_, err := ReadRunArtifact(t.TempDir())
	require.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	results := []engine.Result{{
		Instrument: "TCBT",
		Bars:       testBars(),
		Summary:    testSummary().Instruments[0],
	}}

	path, err := WriteWorkbook(dir, results, testSummary(), cleaning.Stats{Total: 4, Kept: 4}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Summary", "TCBT"}, f.GetSheetList())

	rows, err := f.GetRows("TCBT")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "minute_start", rows[0][0])
	assert.Equal(t, "2025-01-01T09:03:00Z", rows[4][0])

	got, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Run ID", got)
}

func TestWriteParquet(t *testing.T) {
	dir := t.TempDir()
	results := []engine.Result{{Instrument: "TCBT", Bars: testBars()}}

	path, err := WriteParquet(dir, results, nil)
	require.NoError(t, err)

	rows, err := parquetReadFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "TCBT", rows[0].Instrument)
	assert.Nil(t, rows[0].RollingVWAP)
	require.NotNil(t, rows[3].MedianVolume)
	assert.Equal(t, 10.0, *rows[3].MedianVolume)
	assert.True(t, rows[3].IsAnomaly)
}

func parquetReadFile(path string) ([]barRow, error) {
	return parquet.ReadFile[barRow](path)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1.2346", formatFloat(1.23456))
	assert.Equal(t, "10", formatFloat(10.0))
	assert.Equal(t, "", formatOptFloat(nil))
	assert.Equal(t, "2.5", formatOptFloat(fptr(2.5)))
	assert.Equal(t, "true", formatBool(true))
	assert.Equal(t, "false", formatBool(false))
}
