// Package storage persists completed runs to PostgreSQL. The sink is
// optional: it is wired only when a DSN is configured, and the file
// exports remain the primary output.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"tradeqc/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	input_file    TEXT NOT NULL,
	total_trades  BIGINT NOT NULL,
	total_bars    BIGINT NOT NULL,
	anomaly_bars  BIGINT NOT NULL,
	vwap_window   INT NOT NULL,
	median_window INT NOT NULL,
	anomaly_k     DOUBLE PRECISION NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bars (
	run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	instrument    TEXT NOT NULL,
	minute_start  TIMESTAMPTZ NOT NULL,
	open          DOUBLE PRECISION NOT NULL,
	high          DOUBLE PRECISION NOT NULL,
	low           DOUBLE PRECISION NOT NULL,
	close         DOUBLE PRECISION NOT NULL,
	volume        DOUBLE PRECISION NOT NULL,
	vwap_rolling  DOUBLE PRECISION,
	median_volume DOUBLE PRECISION,
	is_anomaly    BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, instrument, minute_start)
);`

// Store writes run summaries and enriched bars to PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Connect opens a connection pool, verifies it with a ping and ensures
// the schema exists.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logger.InfoContext(ctx, "connected to PostgreSQL")
	return &Store{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type runRow struct {
	RunID        string  `db:"run_id"`
	InputFile    string  `db:"input_file"`
	TotalTrades  int     `db:"total_trades"`
	TotalBars    int     `db:"total_bars"`
	AnomalyBars  int     `db:"anomaly_bars"`
	VWAPWindow   int     `db:"vwap_window"`
	MedianWindow int     `db:"median_window"`
	AnomalyK     float64 `db:"anomaly_k"`
}

type barRow struct {
	RunID        string    `db:"run_id"`
	Instrument   string    `db:"instrument"`
	MinuteStart  time.Time `db:"minute_start"`
	Open         float64   `db:"open"`
	High         float64   `db:"high"`
	Low          float64   `db:"low"`
	Close        float64   `db:"close"`
	Volume       float64   `db:"volume"`
	RollingVWAP  *float64  `db:"vwap_rolling"`
	MedianVolume *float64  `db:"median_volume"`
	IsAnomaly    bool      `db:"is_anomaly"`
}

// SaveRun stores the run summary and all enriched bars in one
// transaction. Bars are keyed by run id, so repeated runs never
// collide.
func (s *Store) SaveRun(ctx context.Context, summary domain.RunSummary, bars map[string][]domain.EnrichedBar) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, input_file, total_trades, total_bars, anomaly_bars, vwap_window, median_window, anomaly_k)
		VALUES (:run_id, :input_file, :total_trades, :total_bars, :anomaly_bars, :vwap_window, :median_window, :anomaly_k)`,
		runRow{
			RunID:        summary.RunID,
			InputFile:    summary.InputFile,
			TotalTrades:  summary.TotalTrades,
			TotalBars:    summary.TotalBars,
			AnomalyBars:  summary.Anomalies,
			VWAPWindow:   summary.VWAPWindow,
			MedianWindow: summary.MedianWindow,
			AnomalyK:     summary.AnomalyK,
		})
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.RunID, err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO bars (run_id, instrument, minute_start, open, high, low, close, volume, vwap_rolling, median_volume, is_anomaly)
		VALUES (:run_id, :instrument, :minute_start, :open, :high, :low, :close, :volume, :vwap_rolling, :median_volume, :is_anomaly)`)
	if err != nil {
		return fmt.Errorf("prepare bar insert: %w", err)
	}
	defer stmt.Close()

	var count int
	for instrument, enriched := range bars {
		for _, b := range enriched {
			if _, err := stmt.ExecContext(ctx, barRow{
				RunID:        summary.RunID,
				Instrument:   instrument,
				MinuteStart:  b.MinuteStart,
				Open:         b.Open,
				High:         b.High,
				Low:          b.Low,
				Close:        b.Close,
				Volume:       b.Volume,
				RollingVWAP:  b.RollingVWAP,
				MedianVolume: b.MedianVolume,
				IsAnomaly:    b.IsAnomaly,
			}); err != nil {
				return fmt.Errorf("insert bar %s/%s: %w", instrument, b.MinuteStart.Format(time.RFC3339), err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", summary.RunID, err)
	}

	s.logger.InfoContext(ctx, "run persisted",
		slog.String("run_id", summary.RunID),
		slog.Int("bars", count))
	return nil
}
