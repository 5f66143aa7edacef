package engine

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeqc/internal/domain"
)

func mkTrade(instrument string, ts time.Time, price, volume float64) domain.Trade {
	return domain.Trade{
		Timestamp:  ts,
		Instrument: instrument,
		Price:      price,
		Volume:     volume,
		TradeID:    "t",
	}
}

func TestAccumulatorSingleMinute(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	acc := NewAccumulator("TCBT")

	bar, err := acc.Observe(mkTrade("TCBT", base.Add(5*time.Second), 100, 10))
	require.NoError(t, err)
	assert.Nil(t, bar)

	bar, err = acc.Observe(mkTrade("TCBT", base.Add(20*time.Second), 103, 5))
	require.NoError(t, err)
	assert.Nil(t, bar)

	bar, err = acc.Observe(mkTrade("TCBT", base.Add(40*time.Second), 99, 2))
	require.NoError(t, err)
	assert.Nil(t, bar)

	closed := acc.Flush()
	require.NotNil(t, closed)
	assert.Equal(t, "TCBT", closed.Instrument)
	assert.Equal(t, base, closed.MinuteStart)
	assert.Equal(t, 100.0, closed.Open)
	assert.Equal(t, 103.0, closed.High)
	assert.Equal(t, 99.0, closed.Low)
	assert.Equal(t, 99.0, closed.Close)
	assert.Equal(t, 17.0, closed.Volume)

	assert.Nil(t, acc.Flush(), "second flush returns nothing")
}

func TestAccumulatorMinuteRollover(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	acc := NewAccumulator("TCBT")

	_, err := acc.Observe(mkTrade("TCBT", base.Add(59*time.Second), 100, 1))
	require.NoError(t, err)

	// Next trade is in the following minute: the first bar closes.
	closed, err := acc.Observe(mkTrade("TCBT", base.Add(61*time.Second), 101, 2))
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, base, closed.MinuteStart)
	assert.Equal(t, 100.0, closed.Close)

	// A gap of several minutes still yields exactly one close.
	closed, err = acc.Observe(mkTrade("TCBT", base.Add(10*time.Minute), 102, 3))
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, base.Add(time.Minute), closed.MinuteStart)

	final := acc.Flush()
	require.NotNil(t, final)
	assert.Equal(t, base.Add(10*time.Minute), final.MinuteStart)
}

func TestAccumulatorOutOfOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 5, 0, 0, time.UTC)
	acc := NewAccumulator("TGBT")

	_, err := acc.Observe(mkTrade("TGBT", base, 20, 1))
	require.NoError(t, err)

	// Earlier second within the same open minute is fine.
	_, err = acc.Observe(mkTrade("TGBT", base.Add(-30*time.Second).Add(30*time.Second), 20, 1))
	require.NoError(t, err)

	// A strictly earlier minute violates the ordering contract.
	_, err = acc.Observe(mkTrade("TGBT", base.Add(-time.Minute), 20, 1))
	require.Error(t, err)

	var oooErr *OutOfOrderError
	require.True(t, errors.As(err, &oooErr))
	assert.Equal(t, "TGBT", oooErr.Instrument)
	assert.Equal(t, base.Add(-time.Minute), oooErr.Timestamp)
	assert.Equal(t, base, oooErr.OpenMinute)
	assert.Contains(t, oooErr.Error(), "TGBT")
}

// TestAccumulatorBarCountEqualsDistinctMinutes checks that the number of
// emitted bars equals the number of distinct minute buckets touched.
func TestAccumulatorBarCountEqualsDistinctMinutes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	for trial := 0; trial < 50; trial++ {
		acc := NewAccumulator("X")
		minutes := make(map[time.Time]struct{})
		bars := 0

		ts := base
		for i := 0; i < 200; i++ {
			ts = ts.Add(time.Duration(rng.Intn(45)) * time.Second)
			tr := mkTrade("X", ts, 1+rng.Float64()*100, float64(1+rng.Intn(500)))
			minutes[tr.Minute()] = struct{}{}

			closed, err := acc.Observe(tr)
			require.NoError(t, err)
			if closed != nil {
				bars++
				assert.True(t, closed.IsValid(), "OHLC invariants must hold: %+v", closed)
			}
		}
		if closed := acc.Flush(); closed != nil {
			bars++
			assert.True(t, closed.IsValid())
		}
		assert.Equal(t, len(minutes), bars)
	}
}
