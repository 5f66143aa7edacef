// Package cleaning implements the validation gate in front of the
// aggregation engine. It reads raw trade CSVs, drops malformed and
// duplicate rows with per-reason counters, and hands validated trades
// downstream. The engine never sees a row that fails these checks.
package cleaning

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tradeqc/internal/domain"
)

// TradesHeader is the expected raw CSV header.
var TradesHeader = []string{"timestamp", "instrument", "price", "volume", "trade_id"}

// Skip reasons, counted per dropped row.
const (
	ReasonBadColumnCount    = "bad_column_count"
	ReasonInvalidPrice      = "invalid_price"
	ReasonInvalidVolume     = "invalid_volume"
	ReasonInvalidTimestamp  = "invalid_timestamp"
	ReasonMissingInstrument = "missing_instrument"
	ReasonMissingTradeID    = "missing_trade_id"
	ReasonDuplicateTradeID  = "duplicate_trade_id"
)

// Stats summarizes one cleaning pass.
type Stats struct {
	Total   int            `json:"total"`
	Kept    int            `json:"kept"`
	Skipped int            `json:"skipped"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

// record is the parsed form of a raw row, validated as a whole once the
// field-level parsing has succeeded.
type record struct {
	Timestamp  time.Time `validate:"required"`
	Instrument string    `validate:"required"`
	Price      float64   `validate:"required,gt=0"`
	Volume     float64   `validate:"required,gt=0"`
	TradeID    string    `validate:"required"`
}

// Cleaner validates raw trade rows and deduplicates them by trade id.
type Cleaner struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCleaner creates a cleaner.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Clean reads raw trade rows from r, writes the kept rows to w as CSV
// (pass nil to skip writing a cleaned copy), and returns the validated
// trades in input order together with cleaning statistics.
func (c *Cleaner) Clean(ctx context.Context, r io.Reader, w io.Writer) ([]domain.Trade, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // column count is a skip reason, not a parse error

	var writer *csv.Writer
	if w != nil {
		writer = csv.NewWriter(w)
		defer writer.Flush()
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, Stats{}, fmt.Errorf("input is empty")
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}
	if !equalHeader(header, TradesHeader) {
		c.logger.WarnContext(ctx, "unexpected trades header",
			"got", strings.Join(header, ","),
			"want", strings.Join(TradesHeader, ","),
		)
	}
	if writer != nil {
		if err := writer.Write(header); err != nil {
			return nil, Stats{}, fmt.Errorf("write header: %w", err)
		}
	}

	stats := Stats{Reasons: make(map[string]int)}
	seen := make(map[string]struct{})
	var trades []domain.Trade

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Stats{}, fmt.Errorf("read row %d: %w", stats.Total+1, err)
		}
		stats.Total++

		trade, reason := c.validateRow(row)
		if reason == "" {
			if _, dup := seen[trade.TradeID]; dup {
				reason = ReasonDuplicateTradeID
			}
		}
		if reason != "" {
			stats.Reasons[reason]++
			continue
		}
		seen[trade.TradeID] = struct{}{}

		if writer != nil {
			if err := writer.Write(row); err != nil {
				return nil, Stats{}, fmt.Errorf("write row: %w", err)
			}
		}
		trades = append(trades, trade)
		stats.Kept++
	}

	for _, n := range stats.Reasons {
		stats.Skipped += n
	}
	if len(stats.Reasons) == 0 {
		stats.Reasons = nil
	}

	c.logger.InfoContext(ctx, "cleaning completed",
		"rows_read", stats.Total,
		"rows_kept", stats.Kept,
		"rows_dropped", stats.Skipped,
	)
	return trades, stats, nil
}

// validateRow parses and validates one raw row. It returns the trade and
// an empty reason on success, or the zero trade and the skip reason.
func (c *Cleaner) validateRow(row []string) (domain.Trade, string) {
	if len(row) != len(TradesHeader) {
		return domain.Trade{}, ReasonBadColumnCount
	}

	rec := record{
		Instrument: strings.TrimSpace(row[1]),
		TradeID:    strings.TrimSpace(row[4]),
	}

	price, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return domain.Trade{}, ReasonInvalidPrice
	}
	rec.Price = price

	volume, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return domain.Trade{}, ReasonInvalidVolume
	}
	rec.Volume = volume

	ts, err := ParseTimestamp(row[0])
	if err != nil {
		return domain.Trade{}, ReasonInvalidTimestamp
	}
	rec.Timestamp = ts

	if err := c.validate.Struct(rec); err != nil {
		return domain.Trade{}, structReason(err)
	}

	return domain.Trade{
		Timestamp:  rec.Timestamp,
		Instrument: rec.Instrument,
		Price:      rec.Price,
		Volume:     rec.Volume,
		TradeID:    rec.TradeID,
	}, ""
}

// structReason maps a validator error to the skip reason of the first
// offending field.
func structReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ReasonBadColumnCount
	}
	switch verrs[0].StructField() {
	case "Price":
		return ReasonInvalidPrice
	case "Volume":
		return ReasonInvalidVolume
	case "Timestamp":
		return ReasonInvalidTimestamp
	case "Instrument":
		return ReasonMissingInstrument
	case "TradeID":
		return ReasonMissingTradeID
	default:
		return ReasonBadColumnCount
	}
}

// ParseTimestamp parses an ISO-8601 UTC timestamp, accepting both the Z
// suffix and a numeric offset, with or without fractional seconds.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}
