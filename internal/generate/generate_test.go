package generate

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeqc/internal/cleaning"
)

func generateRecords(t *testing.T, opts Options) [][]string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, opts))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteShape(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	records := generateRecords(t, Options{Trades: 500, Start: start, Seed: 1})

	require.Len(t, records, 501)
	assert.Equal(t, []string{"timestamp", "instrument", "price", "volume", "trade_id"}, records[0])

	end := start.Add(5*24*time.Hour + time.Second)
	seen := map[string]bool{}
	for _, rec := range records[1:] {
		ts, err := cleaning.ParseTimestamp(rec[0])
		require.NoError(t, err)
		assert.False(t, ts.Before(start))
		assert.False(t, ts.After(end))

		assert.Contains(t, instruments, rec[1])
		seen[rec[1]] = true

		volume, err := strconv.Atoi(rec[3])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, volume, 1)

		_, err = uuid.Parse(rec[4])
		require.NoError(t, err)
	}
	assert.Len(t, seen, len(instruments), "all instruments should appear in 500 trades")
}

func TestWritePriceLevels(t *testing.T) {
	records := generateRecords(t, Options{Trades: 2000, Seed: 7})

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, rec := range records[1:] {
		price, err := strconv.ParseFloat(rec[2], 64)
		require.NoError(t, err)
		sums[rec[1]] += price
		counts[rec[1]]++
	}

	assert.InDelta(t, 100, sums["TCBT"]/float64(counts["TCBT"]), 1)
	assert.InDelta(t, 20, sums["TGBT"]/float64(counts["TGBT"]), 1)
}

func TestWriteDeterministicBySeed(t *testing.T) {
	opts := Options{Trades: 50, Seed: 42}

	a := generateRecords(t, opts)
	b := generateRecords(t, opts)

	require.Len(t, b, len(a))
	for i := range a {
		// trade ids come from crypto randomness, compare the rest
		assert.Equal(t, a[i][:4], b[i][:4], "row %d", i)
	}
}
