package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/ledger"
	"github.com/zuchengchen/martingrid/market"
)

// recorder captures recycled amounts for assertions.
type recorder struct {
	symbol string
	total  float64
}

func (r *recorder) Recycle(symbol string, amount float64) {
	r.symbol = symbol
	r.total += amount
}

func losingLong(unrealized float64) ledger.Position {
	return ledger.Position{
		Symbol:        "BTCUSDT",
		Book:          ledger.Main,
		Side:          market.Long,
		Size:          0.04,
		EntryPrice:    90_000,
		CostWithFees:  3_600,
		UnrealizedPnL: unrealized,
		OpenTime:      t0,
	}
}

func TestActivationOnDrawdown(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)

	// -5% of cost is the threshold: -180 on 3600.
	_, ok := m.CheckActivation(losingLong(-100), t0.Add(time.Minute))
	assert.False(t, ok)

	kind, ok := m.CheckActivation(losingLong(-200), t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, TriggerDrawdown, kind)
}

func TestActivationOnTimeHeld(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)

	// Shallow loss, but held past the limit.
	kind, ok := m.CheckActivation(losingLong(-50), t0.Add(3*time.Hour))
	require.True(t, ok)
	assert.Equal(t, TriggerTime, kind)

	// Past the limit but profitable: no hedge.
	_, ok = m.CheckActivation(losingLong(+50), t0.Add(3*time.Hour))
	assert.False(t, ok)
}

func TestActivateBuildsCounterGrid(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)

	order, err := m.Activate(losingLong(-200), TriggerDrawdown, 85_500, t0.Add(time.Minute))
	require.NoError(t, err)

	// First level enters at market right away.
	assert.Equal(t, broker.MarketOrder, order.Type)
	assert.True(t, order.Hedge)
	assert.Equal(t, market.Short, order.Side)
	// Drawdown trigger: 50% of parent 0.04, split over 4 even levels.
	assert.InDelta(t, 0.005, order.Quantity, 1e-12)

	h, ok := m.Grid("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, market.Short, h.Side)
	require.Len(t, h.Entries, 4)
	assert.InDelta(t, 85_500.0, h.Entries[0].Price, 1e-6)
	// Short hedge ladders down at 0.3% steps.
	assert.InDelta(t, 85_500*(1-0.003), h.Entries[1].Price, 1e-6)
	assert.InDelta(t, 85_500*(1-0.009), h.Entries[3].Price, 1e-6)
	for _, lvl := range h.Entries {
		assert.InDelta(t, 0.005, lvl.Quantity, 1e-12)
	}
}

func TestTimeTriggerUsesSmallerFraction(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)

	order, err := m.Activate(losingLong(-50), TriggerTime, 88_000, t0.Add(3*time.Hour))
	require.NoError(t, err)
	// 30% of parent 0.04 over 4 levels.
	assert.InDelta(t, 0.003, order.Quantity, 1e-12)
}

func TestDuplicateActivationRejected(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)
	_, err := m.Activate(losingLong(-200), TriggerDrawdown, 85_500, t0)
	require.NoError(t, err)

	_, err = m.Activate(losingLong(-300), TriggerDrawdown, 85_000, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrHedgeActive)
	assert.Equal(t, 1, m.DuplicateCount())

	// And the activation check goes quiet while a hedge is on.
	_, ok := m.CheckActivation(losingLong(-300), t0.Add(time.Minute))
	assert.False(t, ok)
}

func TestHedgeEntryTriggersOnePerTick(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)
	open, err := m.Activate(losingLong(-200), TriggerDrawdown, 85_500, t0)
	require.NoError(t, err)
	m.OnFill(entryFill(open, 85_500, t0))

	// Price collapses through every remaining level: one trigger per tick.
	o := m.OnTick("BTCUSDT", 80_000)
	require.NotNil(t, o)
	assert.Equal(t, 2, *o.GridLevel)

	o = m.OnTick("BTCUSDT", 80_000)
	require.NotNil(t, o)
	assert.Equal(t, 3, *o.GridLevel)
}

func TestHedgeProfitCloseAndRecycle(t *testing.T) {
	rec := &recorder{}
	m := NewHedgeManager(DefaultHedgeConfig(), rec, nil)

	open, err := m.Activate(losingLong(-200), TriggerDrawdown, 85_500, t0)
	require.NoError(t, err)
	m.OnFill(entryFill(open, 85_500, t0))

	// Short hedge from 85500: 2% profit needs roughly a 2% drop.
	assert.Nil(t, m.CheckProfit("BTCUSDT", 85_000))

	o := m.CheckProfit("BTCUSDT", 83_500)
	require.NotNil(t, o)
	assert.True(t, o.ReduceOnly)
	assert.True(t, o.Hedge)
	assert.InDelta(t, 0.0025, o.Quantity, 1e-12) // half of 0.005

	// In-flight close suppresses a duplicate trigger.
	assert.Nil(t, m.CheckProfit("BTCUSDT", 83_000))

	m.OnFill(entryFill(o, 83_500, t0.Add(time.Minute)))

	h, ok := m.Grid("BTCUSDT")
	require.True(t, ok)
	wantPnL := (85_500.0 - 83_500.0) * 0.0025
	assert.InDelta(t, wantPnL, h.RealizedPnL, 1e-9)
	// 70% of the slice's profit is recycled; application is the policy's.
	assert.InDelta(t, wantPnL*0.7, h.TotalRecycled, 1e-9)
	assert.InDelta(t, wantPnL*0.7, rec.total, 1e-9)
	assert.Equal(t, "BTCUSDT", rec.symbol)

	// After the fill the profit check re-arms.
	assert.NotNil(t, m.CheckProfit("BTCUSDT", 82_000))
}

func TestHedgeFlatArchives(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)
	open, err := m.Activate(losingLong(-200), TriggerDrawdown, 85_500, t0)
	require.NoError(t, err)
	m.OnFill(entryFill(open, 85_500, t0))

	close := broker.Fill{
		Symbol: "BTCUSDT", Side: market.Short, Quantity: 0.005,
		Price: 84_000, ReduceOnly: true, Hedge: true, Time: t0.Add(time.Hour),
	}
	m.OnFill(close)

	_, ok := m.Grid("BTCUSDT")
	assert.False(t, ok)
	require.Len(t, m.History(), 1)
	assert.Equal(t, "hedge flat", m.History()[0].CloseReason)
}

func TestHedgeRejectRearms(t *testing.T) {
	m := NewHedgeManager(DefaultHedgeConfig(), nil, nil)
	open, err := m.Activate(losingLong(-200), TriggerDrawdown, 85_500, t0)
	require.NoError(t, err)
	m.OnFill(entryFill(open, 85_500, t0))

	o := m.OnTick("BTCUSDT", 85_000)
	require.NotNil(t, o)
	m.OnReject(*o)

	again := m.OnTick("BTCUSDT", 85_000)
	require.NotNil(t, again)
	assert.Equal(t, *o.GridLevel, *again.GridLevel)
}
