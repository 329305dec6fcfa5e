package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/market"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func openFill(qty, price float64) broker.Fill {
	return broker.Fill{
		OrderID: "o", Symbol: "BTCUSDT", Side: market.Long,
		Quantity: qty, Price: price, Commission: qty * price * 0.0004, Time: t0,
	}
}

func closeFill(qty, price float64) broker.Fill {
	f := openFill(qty, price)
	f.ReduceOnly = true
	return f
}

func TestWeightedAverageEntry(t *testing.T) {
	l := New(nil)

	_, err := l.ApplyFill(openFill(0.01, 90_000))
	require.NoError(t, err)
	_, err = l.ApplyFill(openFill(0.015, 89_000))
	require.NoError(t, err)

	pos, ok := l.Position("BTCUSDT", Main)
	require.True(t, ok)
	// (0.01*90000 + 0.015*89000) / 0.025 = 89400
	assert.InDelta(t, 89_400.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 0.025, pos.Size, 1e-12)

	// Fees never perturb the weighted price, only the cost total.
	notional := 0.01*90_000 + 0.015*89_000
	assert.Greater(t, pos.CostWithFees, notional)
	assert.InDelta(t, notional*(1+0.0004), pos.CostWithFees, 1e-6)
}

func TestEntryPriceIndependentOfFillOrder(t *testing.T) {
	a := New(nil)
	a.ApplyFill(openFill(0.01, 90_000))
	a.ApplyFill(openFill(0.015, 89_000))
	a.ApplyFill(openFill(0.02, 88_500))

	b := New(nil)
	b.ApplyFill(openFill(0.02, 88_500))
	b.ApplyFill(openFill(0.01, 90_000))
	b.ApplyFill(openFill(0.015, 89_000))

	pa, _ := a.Position("BTCUSDT", Main)
	pb, _ := b.Position("BTCUSDT", Main)
	assert.InDelta(t, pa.EntryPrice, pb.EntryPrice, 1e-9)
	assert.InDelta(t, pa.Size, pb.Size, 1e-12)
}

func TestConservationOfSize(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.01, 90_000))
	l.ApplyFill(openFill(0.02, 89_000))
	l.ApplyFill(openFill(0.03, 88_000))

	res, err := l.ApplyFill(closeFill(0.04, 89_500))
	require.NoError(t, err)
	assert.InDelta(t, 0.02, res.RemainingSize, 1e-12)

	// Offsetting the remainder exactly zeroes the record.
	res, err = l.ApplyFill(closeFill(0.02, 89_500))
	require.NoError(t, err)
	assert.Zero(t, res.RemainingSize)
	_, ok := l.Position("BTCUSDT", Main)
	assert.False(t, ok)
}

func TestRealizedPnLLongAndShort(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.01, 90_000))

	res, err := l.ApplyFill(closeFill(0.01, 91_000))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.RealizedPnL, 1e-9)
	assert.True(t, res.Win)

	short := broker.Fill{Symbol: "ETHUSDT", Side: market.Short, Quantity: 1, Price: 3000, Time: t0}
	_, err = l.ApplyFill(short)
	require.NoError(t, err)

	shortClose := short
	shortClose.ReduceOnly = true
	shortClose.Price = 2900
	res, err = l.ApplyFill(shortClose)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.RealizedPnL, 1e-9)

	trades, wins, losses := l.Stats()
	assert.Equal(t, 2, trades)
	assert.Equal(t, 2, wins)
	assert.Equal(t, 0, losses)
	assert.InDelta(t, 110.0, l.RealizedPnL(), 1e-9)
}

func TestEntryPriceUnchangedByPartialClose(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.02, 90_000))
	l.ApplyFill(closeFill(0.01, 95_000))

	pos, ok := l.Position("BTCUSDT", Main)
	require.True(t, ok)
	assert.InDelta(t, 90_000.0, pos.EntryPrice, 1e-9)
}

func TestOverCloseFailsLoudly(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.01, 90_000))

	_, err := l.ApplyFill(closeFill(0.02, 90_000))
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Error(), "more than is open")

	// Position untouched after the failed fill.
	pos, ok := l.Position("BTCUSDT", Main)
	require.True(t, ok)
	assert.InDelta(t, 0.01, pos.Size, 1e-12)
}

func TestReduceWithNoPositionFails(t *testing.T) {
	l := New(nil)
	_, err := l.ApplyFill(closeFill(0.01, 90_000))
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestFlipAttemptFails(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.01, 90_000))

	flip := openFill(0.01, 90_000)
	flip.Side = market.Short
	_, err := l.ApplyFill(flip)
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestMarkRecomputesUnrealized(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.01, 90_000))

	hedge := broker.Fill{Symbol: "BTCUSDT", Side: market.Short, Quantity: 0.005, Price: 89_000, Hedge: true, Time: t0}
	_, err := l.ApplyFill(hedge)
	require.NoError(t, err)

	markAt := t0.Add(time.Minute)
	l.Mark("BTCUSDT", 88_000, markAt)

	main, _ := l.Position("BTCUSDT", Main)
	assert.InDelta(t, (88_000.0-90_000.0)*0.01, main.UnrealizedPnL, 1e-9)
	assert.Equal(t, markAt, main.MarkTime)

	h, _ := l.Position("BTCUSDT", Hedge)
	assert.InDelta(t, (89_000.0-88_000.0)*0.005, h.UnrealizedPnL, 1e-9)
	assert.Equal(t, markAt, h.MarkTime)

	assert.InDelta(t, main.UnrealizedPnL+h.UnrealizedPnL, l.TotalUnrealized(), 1e-9)
}

func TestBooksAreIndependent(t *testing.T) {
	l := New(nil)
	l.ApplyFill(openFill(0.01, 90_000))

	hedge := broker.Fill{Symbol: "BTCUSDT", Side: market.Short, Quantity: 0.005, Price: 89_000, Hedge: true, Time: t0}
	l.ApplyFill(hedge)

	main, _ := l.Position("BTCUSDT", Main)
	h, _ := l.Position("BTCUSDT", Hedge)
	assert.Equal(t, market.Long, main.Side)
	assert.Equal(t, market.Short, h.Side)
	assert.Len(t, l.Snapshot(), 2)
}
