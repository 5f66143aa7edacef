// Package exporter writes the outputs of a tradeqc run.
//
// Four sinks share the enriched bar stream produced by the engine:
//
// InstrumentCSV: one aggregated_<INSTRUMENT>.csv per instrument with the
// bar columns plus the windowed statistics and the anomaly flag.
//
// Parquet: the same bars in a single columnar file for downstream
// analytical tooling.
//
// Workbook: an Excel summary with one overview sheet and one sheet per
// instrument.
//
// Report: the human-readable report.txt with cleaning, per-instrument and
// overall sections, plus a machine-readable run_summary.json consumed by
// the results server.
package exporter
