// Package engine implements the streaming aggregation core of tradeqc.
//
// The engine converts an ordered per-instrument trade stream into 1-minute
// OHLCV bars and maintains two rolling statistics per instrument in bounded
// memory: a volume-weighted average price over the last N bars and a median
// of bar volume over the last M bars. Bars whose volume exceeds k times the
// rolling median are flagged as anomalies.
//
// # Components
//
//   - accumulator.go: online fold of trades into 1-minute bars, one bar in
//     flight per instrument, closed the instant a later minute is observed
//   - vwap.go: fixed-size sliding window with running sums, O(1) per push
//   - median.go: fixed-size sliding median over two heaps with lazy
//     deletion, better than linear per operation
//   - classify.go: the volume anomaly predicate
//   - pipeline.go: composition of the above for one instrument
//   - runner.go: parallel execution across instruments and summary merging
//
// # Usage
//
//	p := engine.NewPipeline("TCBT", engine.Params{VWAPWindow: 5, MedianWindow: 60, AnomalyK: 10})
//	for _, t := range trades {
//	    eb, err := p.Feed(t)
//	    if err != nil {
//	        return err // out-of-order delivery, fatal for this instrument
//	    }
//	    if eb != nil {
//	        emit(*eb)
//	    }
//	}
//	if eb := p.Flush(); eb != nil {
//	    emit(*eb)
//	}
//
// Per-instrument state is fully independent, so pipelines for different
// instruments may run concurrently without coordination.
package engine
