package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"tradeqc/internal/cleaning"
	"tradeqc/internal/config"
	"tradeqc/internal/domain"
	"tradeqc/internal/engine"
	"tradeqc/internal/exporter"
	"tradeqc/internal/ingest"
	"tradeqc/internal/storage"
)

func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "tradeqc.yaml", "config file path")
	input := fs.String("input", "", "trades CSV path or http(s) URL")
	outDir := fs.String("outdir", "", "output directory")
	n := fs.Int("n", 0, "rolling VWAP window in bars")
	m := fs.Int("m", 0, "rolling median volume window in bars")
	k := fs.Float64("k", 0, "anomaly threshold multiplier")
	assumeSorted := fs.Bool("assume-sorted", false, "feed trades in file order instead of sorting per instrument")
	parquet := fs.Bool("parquet", false, "also write bars.parquet")
	excel := fs.Bool("excel", false, "also write tradeqc_report.xlsx")
	dbDSN := fs.String("db-dsn", "", "Postgres DSN for persisting the run (overrides config)")
	concurrency := fs.Int("concurrency", 0, "max instruments processed in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Paths.Input = *input
		case "outdir":
			cfg.Paths.OutDir = *outDir
		case "n":
			cfg.Windows.VWAP = *n
		case "m":
			cfg.Windows.Median = *m
		case "k":
			cfg.Windows.AnomalyK = *k
		case "db-dsn":
			cfg.Storage.DSN = *dbDSN
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Logging)
	params := engine.Params{
		VWAPWindow:   cfg.Windows.VWAP,
		MedianWindow: cfg.Windows.Median,
		AnomalyK:     cfg.Windows.AnomalyK,
	}

	started := time.Now()
	logger.InfoContext(ctx, "starting run",
		slog.String("input", cfg.Paths.Input),
		slog.String("outdir", cfg.Paths.OutDir),
		slog.Int("vwap_window", params.VWAPWindow),
		slog.Int("median_window", params.MedianWindow),
		slog.Float64("anomaly_k", params.AnomalyK))

	if err := os.MkdirAll(cfg.Paths.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	in, err := ingest.NewOpener(logger).Open(ctx, cfg.Paths.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	cleanedPath := filepath.Join(cfg.Paths.OutDir, "cleaned_trades.csv")
	cleanedFile, err := os.Create(cleanedPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", cleanedPath, err)
	}
	defer cleanedFile.Close()

	trades, stats, err := cleaning.NewCleaner(logger).Clean(ctx, in, cleanedFile)
	if err != nil {
		return fmt.Errorf("clean input: %w", err)
	}
	logger.InfoContext(ctx, "cleaning finished",
		slog.Int("total", stats.Total),
		slog.Int("kept", stats.Kept),
		slog.Int("skipped", stats.Skipped))

	byInstrument := groupTrades(trades, !*assumeSorted)

	runner, err := engine.NewRunner(params, logger)
	if err != nil {
		return err
	}
	if *concurrency > 0 {
		runner.SetConcurrency(*concurrency)
	}
	results, err := runner.Run(ctx, byInstrument)
	if err != nil {
		return err
	}

	summary := engine.Summarize(results, params)
	summary.RunID = uuid.NewString()
	summary.InputFile = cfg.Paths.Input

	csvw := exporter.NewCSVWriter(cfg.Paths.OutDir, logger)
	for _, res := range results {
		if _, err := csvw.WriteInstrument(res.Instrument, res.Bars, params); err != nil {
			return err
		}
	}
	if _, err := exporter.WriteReport(cfg.Paths.OutDir, summary, stats, logger); err != nil {
		return err
	}
	if _, err := exporter.WriteRunArtifact(cfg.Paths.OutDir, summary, stats); err != nil {
		return err
	}
	if *parquet {
		if _, err := exporter.WriteParquet(cfg.Paths.OutDir, results, logger); err != nil {
			return err
		}
	}
	if *excel {
		if _, err := exporter.WriteWorkbook(cfg.Paths.OutDir, results, summary, stats, logger); err != nil {
			return err
		}
	}

	if cfg.Storage.DSN != "" {
		store, err := storage.Connect(ctx, cfg.Storage.DSN, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		bars := make(map[string][]domain.EnrichedBar, len(results))
		for _, res := range results {
			bars[res.Instrument] = res.Bars
		}
		if err := store.SaveRun(ctx, summary, bars); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "run finished",
		slog.String("run_id", summary.RunID),
		slog.Int("instruments", len(results)),
		slog.Int("bars", summary.TotalBars),
		slog.Int("anomalies", summary.Anomalies),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

// groupTrades splits trades per instrument. When sorted is true each
// instrument's trades are ordered by timestamp (stable, so equal
// timestamps keep file order); otherwise file order is preserved and
// out-of-order input surfaces as a pipeline error.
func groupTrades(trades []domain.Trade, sorted bool) map[string][]domain.Trade {
	byInstrument := make(map[string][]domain.Trade)
	for _, t := range trades {
		byInstrument[t.Instrument] = append(byInstrument[t.Instrument], t)
	}
	if sorted {
		for _, ts := range byInstrument {
			sort.SliceStable(ts, func(i, j int) bool {
				return ts[i].Timestamp.Before(ts[j].Timestamp)
			})
		}
	}
	return byInstrument
}
