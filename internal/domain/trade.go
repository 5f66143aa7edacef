package domain

import (
	"time"
)

// Trade represents a single validated trade for one instrument.
// Trades are delivered to the engine in non-decreasing timestamp order
// per instrument; the Cleaning Filter guarantees positive price and volume.
type Trade struct {
	Timestamp  time.Time `json:"timestamp" db:"trade_time"`
	Instrument string    `json:"instrument" db:"instrument" validate:"required"`
	Price      float64   `json:"price" db:"price" validate:"required,gt=0"`
	Volume     float64   `json:"volume" db:"volume" validate:"required,gt=0"`
	TradeID    string    `json:"trade_id" db:"trade_id" validate:"required"`
}

// Minute returns the 1-minute bucket that contains the trade.
func (t Trade) Minute() time.Time {
	return t.Timestamp.UTC().Truncate(time.Minute)
}

// Bar is an aggregated OHLCV record for one instrument over one minute.
// A Bar is immutable once it has been closed by the accumulator.
type Bar struct {
	Instrument  string    `json:"instrument" db:"instrument"`
	MinuteStart time.Time `json:"minute_start" db:"minute_start"`
	Open        float64   `json:"open" db:"open"`
	High        float64   `json:"high" db:"high"`
	Low         float64   `json:"low" db:"low"`
	Close       float64   `json:"close" db:"close"`
	Volume      float64   `json:"volume" db:"volume"`
}

// IsValid checks the OHLC invariants of a closed bar.
func (b Bar) IsValid() bool {
	return b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0 &&
		b.Volume >= 0 &&
		b.High >= b.Low && b.High >= b.Open && b.High >= b.Close &&
		b.Low <= b.Open && b.Low <= b.Close
}

// EnrichedBar is a closed Bar plus the rolling statistics computed for it.
// RollingVWAP and MedianVolume are nil while the corresponding window is
// still warming up, and RollingVWAP is also nil when the windowed volume
// sum is zero.
type EnrichedBar struct {
	Bar
	RollingVWAP  *float64 `json:"vwap_rolling,omitempty" db:"vwap_rolling"`
	MedianVolume *float64 `json:"median_volume,omitempty" db:"median_volume"`
	IsAnomaly    bool     `json:"is_anomaly" db:"is_anomaly"`
}

// Anomaly describes one anomalous bar for reporting.
type Anomaly struct {
	MinuteStart  time.Time `json:"minute_start"`
	Volume       float64   `json:"volume"`
	MedianVolume float64   `json:"median_volume"`
}

// Ratio is the anomaly severity used to rank anomalies in the report.
func (a Anomaly) Ratio() float64 {
	if a.MedianVolume == 0 {
		return 0
	}
	return a.Volume / a.MedianVolume
}

// InstrumentSummary aggregates per-instrument counters for the report.
type InstrumentSummary struct {
	Instrument  string    `json:"instrument"`
	Trades      int       `json:"trades"`
	Bars        int       `json:"bars"`
	TotalVolume float64   `json:"total_volume"`
	PriceLow    float64   `json:"price_low"`
	PriceHigh   float64   `json:"price_high"`
	Anomalies   []Anomaly `json:"anomalies"`
	FirstMinute time.Time `json:"first_minute"`
	LastMinute  time.Time `json:"last_minute"`
}

// RunSummary aggregates overall counters across all instruments.
type RunSummary struct {
	RunID       string              `json:"run_id"`
	InputFile   string              `json:"input_file"`
	Instruments []InstrumentSummary `json:"instruments"`
	TotalTrades int                 `json:"total_trades"`
	TotalBars   int                 `json:"total_bars"`
	Anomalies   int                 `json:"anomalies"`
	TimeMin     time.Time           `json:"time_min"`
	TimeMax     time.Time           `json:"time_max"`
	VWAPWindow  int                 `json:"vwap_window"`
	MedianWindow int                `json:"median_window"`
	AnomalyK    float64             `json:"anomaly_k"`
}
