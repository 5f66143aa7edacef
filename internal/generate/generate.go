// Package generate produces synthetic trade CSV files for exercising
// the pipeline. Prices are gaussian around a per-instrument level,
// volumes follow an exponential distribution, and timestamps are drawn
// uniformly from a five day window in arbitrary order.
package generate

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var instruments = []string{"TCBT", "TGBT", "TRET", "TSWE"}

// Options controls the shape of the generated file.
type Options struct {
	Trades int
	Start  time.Time
	Seed   int64
}

func (o *Options) normalize() {
	if o.Trades <= 0 {
		o.Trades = 1_000_000
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	}
}

// Write streams a trades CSV to w.
func Write(w io.Writer, opts Options) error {
	opts.normalize()
	rng := rand.New(rand.NewSource(opts.Seed))

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "instrument", "price", "volume", "trade_id"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	const windowSeconds = 60 * 60 * 24 * 5
	for i := 0; i < opts.Trades; i++ {
		inst := instruments[rng.Intn(len(instruments))]
		ts := opts.Start.
			Add(time.Duration(rng.Intn(windowSeconds+1)) * time.Second).
			Add(time.Duration(rng.Intn(1000)) * time.Millisecond)

		level := 20.0
		if inst == "TCBT" {
			level = 100.0
		}
		price := math.Round((rng.NormFloat64()*1.5+level)*10000) / 10000

		volume := int(rng.ExpFloat64() * 100)
		if volume < 1 {
			volume = 1
		}

		record := []string{
			ts.Format("2006-01-02T15:04:05.999999") + "Z",
			inst,
			strconv.FormatFloat(price, 'f', -1, 64),
			strconv.Itoa(volume),
			uuid.NewString(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write trade %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush trades: %w", err)
	}
	return nil
}
