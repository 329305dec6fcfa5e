package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(ts string, price, qty float64) Tick {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return Tick{Time: t, Symbol: "BTCUSDT", Price: price, Quantity: qty}
}

func TestBarBuilderAggregates(t *testing.T) {
	b := NewBarBuilder(time.Minute)

	_, ok := b.Update(tick("2024-01-01T00:00:01Z", 100, 1))
	assert.False(t, ok)
	_, ok = b.Update(tick("2024-01-01T00:00:20Z", 110, 2))
	assert.False(t, ok)
	_, ok = b.Update(tick("2024-01-01T00:00:59Z", 95, 1))
	assert.False(t, ok)

	closed, ok := b.Update(tick("2024-01-01T00:01:00Z", 96, 1))
	require.True(t, ok)
	assert.Equal(t, 100.0, closed.Open)
	assert.Equal(t, 110.0, closed.High)
	assert.Equal(t, 95.0, closed.Low)
	assert.Equal(t, 95.0, closed.Close)
	assert.Equal(t, 4.0, closed.Volume)
	assert.Equal(t, "2024-01-01T00:00:00Z", closed.Start.Format(time.RFC3339))
}

func TestBarBuilderGapProducesNoSyntheticBars(t *testing.T) {
	b := NewBarBuilder(time.Minute)

	b.Update(tick("2024-01-01T00:00:00Z", 100, 1))
	// Next tick is three minutes later: exactly one bar closes, none are
	// invented for the silent minutes.
	closed, ok := b.Update(tick("2024-01-01T00:03:30Z", 104, 1))
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T00:00:00Z", closed.Start.Format(time.RFC3339))

	final, ok := b.Flush()
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T00:03:00Z", final.Start.Format(time.RFC3339))
	assert.Equal(t, 104.0, final.Open)
}

func TestBarBuilderFlushEmpty(t *testing.T) {
	b := NewBarBuilder(time.Minute)
	_, ok := b.Flush()
	assert.False(t, ok)
}

func TestSeriesBounded(t *testing.T) {
	s := NewSeries(3)
	for i := 0; i < 5; i++ {
		s.Append(Bar{Close: float64(i)})
	}
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 2.0, s.Bars()[0].Close)
	assert.Equal(t, 4.0, s.Bars()[2].Close)

	last := s.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, 3.0, last[0].Close)
	assert.Nil(t, s.Last(0))
}
