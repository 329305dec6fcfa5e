// Package broker provides the simulated order-matching broker: fills
// against the current mark price with fee, slippage, and margin modeling.
// The Order/Fill shapes here are the boundary contract; a live adapter
// implementing the same semantics can replace the simulator unmodified.
package broker

import (
	"fmt"
	"time"

	"github.com/zuchengchen/martingrid/market"
)

// OrderType distinguishes immediate from price-conditional execution.
type OrderType int8

const (
	MarketOrder OrderType = iota
	LimitOrder
)

func (t OrderType) String() string {
	switch t {
	case MarketOrder:
		return "market"
	case LimitOrder:
		return "limit"
	default:
		return "unknown"
	}
}

// Order is an execution request. Side is the position side the order
// affects: a ReduceOnly order with Side=Long sells to shrink a long.
// Price is nil for market orders; GridLevel is nil for orders not tied to
// a grid rung (e.g. force-close).
type Order struct {
	ID         string
	Symbol     string
	Side       market.Side
	Type       OrderType
	Quantity   float64
	Price      *float64
	ReduceOnly bool
	GridLevel  *int
	Hedge      bool
	Reason     string
}

// Fill is the broker's immutable execution result. One order yields at
// most one fill; partial fills are not modeled.
type Fill struct {
	OrderID    string
	Symbol     string
	Side       market.Side
	Quantity   float64
	Price      float64
	Commission float64
	Time       time.Time
	ReduceOnly bool
	GridLevel  *int
	Hedge      bool
	Reason     string
}

// Notional returns the fill's gross value at the fill price.
func (f Fill) Notional() float64 { return f.Quantity * f.Price }

// RejectReason classifies why an order did not fill. Rejections are
// recoverable: the order simply does not fill and the simulation goes on.
type RejectReason int8

const (
	RejectUnknownType RejectReason = iota
	RejectBadQuantity
	RejectNoMarkPrice
	RejectInsufficientMargin
	RejectNotCrossed
)

func (r RejectReason) String() string {
	switch r {
	case RejectUnknownType:
		return "unknown order type"
	case RejectBadQuantity:
		return "invalid quantity"
	case RejectNoMarkPrice:
		return "no mark price"
	case RejectInsufficientMargin:
		return "insufficient margin"
	case RejectNotCrossed:
		return "limit not crossed"
	default:
		return "rejected"
	}
}

// RejectedError reports a rejected order with enough context to log.
type RejectedError struct {
	Reason RejectReason
	Order  Order
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order %s %s %s qty=%v rejected: %s",
		e.Order.ID, e.Order.Symbol, e.Order.Side, e.Order.Quantity, e.Reason)
}
