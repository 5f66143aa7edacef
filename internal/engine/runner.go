package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tradeqc/internal/domain"
)

// Result holds one instrument's enriched bars and summary, in bar-close
// order.
type Result struct {
	Instrument string
	Bars       []domain.EnrichedBar
	Summary    domain.InstrumentSummary
}

// Runner executes instrument pipelines across a cleaned trade set.
// Per-instrument state is independent, so instruments run as parallel
// tasks; counters are merged only after every pipeline has finished, so
// the hot per-trade path shares no mutable state.
type Runner struct {
	params      Params
	logger      *slog.Logger
	concurrency int
}

// NewRunner creates a runner with the given pipeline parameters.
func NewRunner(params Params, logger *slog.Logger) (*Runner, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("validate params: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{params: params, logger: logger, concurrency: 4}, nil
}

// SetConcurrency caps the number of instruments processed at once.
func (r *Runner) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

// Run feeds each instrument's trades through its own pipeline and returns
// results ordered by instrument symbol. Trades within a slice must be in
// non-decreasing timestamp order; an ordering violation aborts the run
// with an *OutOfOrderError identifying the instrument and timestamp.
func (r *Runner) Run(ctx context.Context, trades map[string][]domain.Trade) ([]Result, error) {
	start := time.Now()

	instruments := make([]string, 0, len(trades))
	for instrument := range trades {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	r.logger.InfoContext(ctx, "starting pipeline run",
		"instruments", len(instruments),
		"vwap_window", r.params.VWAPWindow,
		"median_window", r.params.MedianWindow,
		"anomaly_k", r.params.AnomalyK,
	)

	results := make([]Result, len(instruments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, instrument := range instruments {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := r.runInstrument(gctx, instrument, trades[instrument])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "pipeline run completed",
		"instruments", len(instruments),
		"duration", time.Since(start),
	)
	return results, nil
}

func (r *Runner) runInstrument(ctx context.Context, instrument string, trades []domain.Trade) (Result, error) {
	p := NewPipeline(instrument, r.params)
	bars := make([]domain.EnrichedBar, 0, len(trades)/8+1)

	for _, t := range trades {
		eb, err := p.Feed(t)
		if err != nil {
			return Result{}, fmt.Errorf("instrument %s: %w", instrument, err)
		}
		if eb != nil {
			bars = append(bars, *eb)
		}
	}
	if eb := p.Flush(); eb != nil {
		bars = append(bars, *eb)
	}

	summary := p.Summary()
	r.logger.DebugContext(ctx, "instrument pipeline finished",
		"instrument", instrument,
		"trades", summary.Trades,
		"bars", summary.Bars,
		"anomalies", len(summary.Anomalies),
	)
	return Result{Instrument: instrument, Bars: bars, Summary: summary}, nil
}

// Summarize merges per-instrument summaries into the overall run summary.
// Merging is commutative, so result order does not affect the totals.
func Summarize(results []Result, params Params) domain.RunSummary {
	rs := domain.RunSummary{
		VWAPWindow:   params.VWAPWindow,
		MedianWindow: params.MedianWindow,
		AnomalyK:     params.AnomalyK,
	}
	for _, res := range results {
		s := res.Summary
		rs.Instruments = append(rs.Instruments, s)
		rs.TotalTrades += s.Trades
		rs.TotalBars += s.Bars
		rs.Anomalies += len(s.Anomalies)
		if s.Bars == 0 {
			continue
		}
		if rs.TimeMin.IsZero() || s.FirstMinute.Before(rs.TimeMin) {
			rs.TimeMin = s.FirstMinute
		}
		if s.LastMinute.After(rs.TimeMax) {
			rs.TimeMax = s.LastMinute
		}
	}
	return rs
}
