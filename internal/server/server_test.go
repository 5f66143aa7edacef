package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeqc/internal/cleaning"
	"tradeqc/internal/domain"
	"tradeqc/internal/engine"
	"tradeqc/internal/exporter"
)

// prepareRun writes a minimal completed run into dir.
func prepareRun(t *testing.T, dir string) {
	t.Helper()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	vwap := 100.0
	median := 10.0
	bars := []domain.EnrichedBar{
		{Bar: domain.Bar{Instrument: "TCBT", MinuteStart: base, Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}},
		{
			Bar:          domain.Bar{Instrument: "TCBT", MinuteStart: base.Add(time.Minute), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1000},
			RollingVWAP:  &vwap,
			MedianVolume: &median,
			IsAnomaly:    true,
		},
	}

	params := engine.Params{VWAPWindow: 2, MedianWindow: 1, AnomalyK: 10}
	_, err := exporter.NewCSVWriter(dir, nil).WriteInstrument("TCBT", bars, params)
	require.NoError(t, err)

	summary := domain.RunSummary{
		RunID:     "test-run",
		InputFile: "trades.csv",
		Instruments: []domain.InstrumentSummary{
			{Instrument: "TCBT", Trades: 2, Bars: 2},
		},
		TotalTrades:  2,
		TotalBars:    2,
		Anomalies:    1,
		VWAPWindow:   2,
		MedianWindow: 1,
		AnomalyK:     10,
	}
	_, err = exporter.WriteRunArtifact(dir, summary, cleaning.Stats{Total: 2, Kept: 2})
	require.NoError(t, err)
}

func newTestServer(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(dir, nil).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, t.TempDir())

	var body map[string]string
	code := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestSummaryEndpoint(t *testing.T) {
	dir := t.TempDir()
	prepareRun(t, dir)
	ts := newTestServer(t, dir)

	var artifact exporter.RunArtifact
	code := getJSON(t, ts.URL+"/api/summary", &artifact)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "test-run", artifact.RunID)
	assert.Equal(t, 2, artifact.TotalBars)
	assert.Equal(t, 2, artifact.Cleaning.Kept)
}

func TestSummaryWithoutRun(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	code := getJSON(t, ts.URL+"/api/summary", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestInstrumentsEndpoint(t *testing.T) {
	dir := t.TempDir()
	prepareRun(t, dir)
	ts := newTestServer(t, dir)

	var instruments []string
	code := getJSON(t, ts.URL+"/api/instruments", &instruments)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"TCBT"}, instruments)
}

func TestInstrumentBarsEndpoint(t *testing.T) {
	dir := t.TempDir()
	prepareRun(t, dir)
	ts := newTestServer(t, dir)

	var bars []domain.EnrichedBar
	code := getJSON(t, ts.URL+"/api/instruments/TCBT/bars", &bars)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, bars, 2)
	assert.True(t, bars[1].IsAnomaly)
	require.NotNil(t, bars[1].MedianVolume)
	assert.Equal(t, 10.0, *bars[1].MedianVolume)
}

func TestInstrumentBarsUnknown(t *testing.T) {
	dir := t.TempDir()
	prepareRun(t, dir)
	ts := newTestServer(t, dir)

	code := getJSON(t, ts.URL+"/api/instruments/NOPE/bars", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	dir := t.TempDir()
	prepareRun(t, dir)
	ts := newTestServer(t, dir)

	// Load the artifact so the run gauges are published.
	code := getJSON(t, ts.URL+"/api/summary", nil)
	require.Equal(t, http.StatusOK, code)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "tradeqc_run_bars_total 2")
	assert.Contains(t, body, "tradeqc_run_anomalies_total 1")
	assert.Contains(t, body, "tradeqc_http_requests_total")
}
