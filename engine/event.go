// Package engine runs the event-driven simulation: a time-ordered queue
// turns a tick stream into bar-close, signal, trigger, order, and fill
// events and routes them through the broker, ledger, and grid managers.
package engine

import (
	"container/heap"
	"time"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/grid"
	"github.com/zuchengchen/martingrid/market"
	"github.com/zuchengchen/martingrid/signal"
)

// EventKind enumerates the closed set of event types. The dispatcher
// switches over it exhaustively; adding a kind without a case is a
// compile-time reviewable change, not a runtime type probe.
type EventKind uint8

const (
	KindTick EventKind = iota
	KindBarClose
	KindSignal
	KindOrder
	KindFill
	KindHedgeTrigger
)

func (k EventKind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindBarClose:
		return "bar_close"
	case KindSignal:
		return "signal"
	case KindOrder:
		return "order"
	case KindFill:
		return "fill"
	case KindHedgeTrigger:
		return "hedge_trigger"
	default:
		return "unknown"
	}
}

// HedgeTrigger asks the hedge manager to activate against the symbol's
// main position.
type HedgeTrigger struct {
	Symbol string
	Kind   grid.TriggerKind
	Price  float64
}

// Event is the tagged union routed through the queue: exactly the payload
// field matching Kind is set.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Symbol string
	seq    uint64

	Tick         *market.Tick
	Bar          *market.Bar
	Signal       *signal.Signal
	Order        *broker.Order
	Fill         *broker.Fill
	HedgeTrigger *HedgeTrigger
}

// eventQueue is a min-heap keyed by (Time, seq): time order first,
// insertion order for ties, so within-tick causality is deterministic.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if !q[i].Time.Equal(q[j].Time) {
		return q[i].Time.Before(q[j].Time)
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

var _ heap.Interface = (*eventQueue)(nil)
