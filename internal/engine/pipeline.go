package engine

import (
	"fmt"

	"tradeqc/internal/domain"
)

// Params are the run-time parameters of an instrument pipeline. All three
// must be set by the caller; the engine performs no defaulting.
type Params struct {
	VWAPWindow   int     // N, bars per rolling VWAP window
	MedianWindow int     // M, bars per rolling median volume window
	AnomalyK     float64 // k, anomaly threshold multiplier
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.VWAPWindow <= 0 {
		return fmt.Errorf("vwap window must be positive, got %d", p.VWAPWindow)
	}
	if p.MedianWindow <= 0 {
		return fmt.Errorf("median window must be positive, got %d", p.MedianWindow)
	}
	if p.AnomalyK <= 0 {
		return fmt.Errorf("anomaly multiplier must be positive, got %g", p.AnomalyK)
	}
	return nil
}

// Pipeline composes the bar accumulator, both sliding windows and the
// anomaly classifier for a single instrument. Trades go in, enriched bars
// come out in bar-close order. A Pipeline is not safe for concurrent use;
// run one goroutine per instrument instead.
type Pipeline struct {
	instrument string
	params     Params
	acc        *Accumulator
	vwap       *VWAPWindow
	median     *MedianWindow
	summary    domain.InstrumentSummary
	flushed    bool
}

// NewPipeline creates a pipeline for one instrument. params must have been
// validated by the caller.
func NewPipeline(instrument string, params Params) *Pipeline {
	return &Pipeline{
		instrument: instrument,
		params:     params,
		acc:        NewAccumulator(instrument),
		vwap:       NewVWAPWindow(params.VWAPWindow),
		median:     NewMedianWindow(params.MedianWindow),
		summary:    domain.InstrumentSummary{Instrument: instrument},
	}
}

// Feed folds one trade into the pipeline. It returns an enriched bar when
// the trade closed the previously open minute, nil otherwise. An
// out-of-order trade returns an *OutOfOrderError; the pipeline must not be
// fed further after an error.
func (p *Pipeline) Feed(t domain.Trade) (*domain.EnrichedBar, error) {
	closed, err := p.acc.Observe(t)
	if err != nil {
		return nil, err
	}
	p.summary.Trades++
	if closed == nil {
		return nil, nil
	}
	return p.enrich(closed), nil
}

// Flush closes the still-open bar at end of stream and returns its
// enriched form, or nil when no bar is open. Calling Flush more than once
// is harmless; subsequent calls return nil.
func (p *Pipeline) Flush() *domain.EnrichedBar {
	if p.flushed {
		return nil
	}
	p.flushed = true
	closed := p.acc.Flush()
	if closed == nil {
		return nil
	}
	return p.enrich(closed)
}

// Summary returns the per-instrument counters accumulated so far.
func (p *Pipeline) Summary() domain.InstrumentSummary {
	return p.summary
}

func (p *Pipeline) enrich(bar *domain.Bar) *domain.EnrichedBar {
	eb := &domain.EnrichedBar{Bar: *bar}

	if vwap, ok := p.vwap.Push(bar.Close, bar.Volume); ok {
		v := vwap
		eb.RollingVWAP = &v
	}
	median, medianOK := p.median.Push(bar.Volume)
	if medianOK {
		m := median
		eb.MedianVolume = &m
	}
	eb.IsAnomaly = Classify(bar.Volume, median, medianOK, p.params.AnomalyK)

	p.observeBar(eb)
	return eb
}

func (p *Pipeline) observeBar(eb *domain.EnrichedBar) {
	s := &p.summary
	if s.Bars == 0 {
		s.PriceLow = eb.Low
		s.PriceHigh = eb.High
		s.FirstMinute = eb.MinuteStart
	}
	s.Bars++
	s.TotalVolume += eb.Volume
	if eb.Low < s.PriceLow {
		s.PriceLow = eb.Low
	}
	if eb.High > s.PriceHigh {
		s.PriceHigh = eb.High
	}
	s.LastMinute = eb.MinuteStart
	if eb.IsAnomaly {
		s.Anomalies = append(s.Anomalies, domain.Anomaly{
			MinuteStart:  eb.MinuteStart,
			Volume:       eb.Volume,
			MedianVolume: *eb.MedianVolume,
		})
	}
}
