package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tradeqc/internal/generate"
)

func generateCmd(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "trades_big.csv", "output CSV path")
	trades := fs.Int("trades", 1_000_000, "number of trades to generate")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	start := fs.String("start", "2025-01-01T09:00:00Z", "window start timestamp (RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}

	if err := generate.Write(f, generate.Options{
		Trades: *trades,
		Start:  startAt,
		Seed:   *seed,
	}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	slog.Info("trades generated",
		slog.String("path", *out),
		slog.Int("trades", *trades),
		slog.Int64("seed", *seed))
	return nil
}
