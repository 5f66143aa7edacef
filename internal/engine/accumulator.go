package engine

import (
	"fmt"
	"time"

	"tradeqc/internal/domain"
)

// OutOfOrderError reports a trade whose minute is strictly earlier than the
// instrument's currently open bar. It signals a violated upstream ordering
// contract, not a data-quality problem, and is fatal for the instrument.
type OutOfOrderError struct {
	Instrument string
	Timestamp  time.Time
	OpenMinute time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order trade for %s: timestamp %s precedes open bar minute %s",
		e.Instrument, e.Timestamp.UTC().Format(time.RFC3339Nano), e.OpenMinute.UTC().Format(time.RFC3339))
}

// Accumulator folds one instrument's trade stream into 1-minute OHLCV bars.
// It keeps at most one bar in flight; a trade belonging to a later minute
// closes the open bar and returns it, ownership passing to the caller.
type Accumulator struct {
	instrument string
	open       *domain.Bar
}

// NewAccumulator creates an accumulator for one instrument.
func NewAccumulator(instrument string) *Accumulator {
	return &Accumulator{instrument: instrument}
}

// Observe folds a validated trade into the accumulator. It returns the
// previously open bar when the trade starts a later minute, nil otherwise.
// A trade whose minute is strictly earlier than the open bar's minute
// returns an *OutOfOrderError and leaves the open bar untouched.
func (a *Accumulator) Observe(t domain.Trade) (*domain.Bar, error) {
	minute := t.Minute()

	if a.open == nil {
		a.open = newBar(a.instrument, minute, t)
		return nil, nil
	}

	switch {
	case minute.Equal(a.open.MinuteStart):
		if t.Price > a.open.High {
			a.open.High = t.Price
		}
		if t.Price < a.open.Low {
			a.open.Low = t.Price
		}
		a.open.Close = t.Price
		a.open.Volume += t.Volume
		return nil, nil

	case minute.After(a.open.MinuteStart):
		closed := a.open
		a.open = newBar(a.instrument, minute, t)
		return closed, nil

	default:
		return nil, &OutOfOrderError{
			Instrument: a.instrument,
			Timestamp:  t.Timestamp,
			OpenMinute: a.open.MinuteStart,
		}
	}
}

// Flush closes and returns the still-open bar at end of stream, or nil if
// no bar is open. The accumulator is empty afterwards.
func (a *Accumulator) Flush() *domain.Bar {
	closed := a.open
	a.open = nil
	return closed
}

func newBar(instrument string, minute time.Time, t domain.Trade) *domain.Bar {
	return &domain.Bar{
		Instrument:  instrument,
		MinuteStart: minute,
		Open:        t.Price,
		High:        t.Price,
		Low:         t.Price,
		Close:       t.Price,
		Volume:      t.Volume,
	}
}
