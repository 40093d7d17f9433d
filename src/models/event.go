// backend/src/models/event.go
package models

import "time"

// EventKind classifies a recovered activity-log line.
type EventKind string

const (
	EventNew     EventKind = "NEW"
	EventFilled  EventKind = "FILLED"
	EventReplace EventKind = "REPLACE"
	EventUpdate  EventKind = "UPDATE"
)

// OrderType is the order type recovered from a log line, when present.
type OrderType string

const (
	OrderTypeMarket    OrderType = "Market"
	OrderTypeLimit     OrderType = "Limit"
	OrderTypeStop      OrderType = "Stop"
	OrderTypeStopLimit OrderType = "StopLimit"
)

// FillSide is the direction of a fill, when it could be recovered.
type FillSide string

const (
	SideBuy  FillSide = "BUY"
	SideSell FillSide = "SELL"
)

// LogEvent is one activity-log line's worth of recovered structure.
// Events are created once during extraction and never mutated afterwards;
// downstream stages treat the extracted sequence as read-only.
//
// Fields a classifier could not recover are left at their zero value rather
// than failing the whole line. The terminal's export format is not strictly
// regular, so partial recovery beats rejection.
type LogEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	Kind            EventKind `json:"kind"`
	Symbol          string    `json:"symbol,omitempty"`
	OrderType       OrderType `json:"order_type,omitempty"`
	InternalOrderID string    `json:"internal_order_id,omitempty"`
	ExchangeOrderID string    `json:"exchange_order_id,omitempty"`
	ParentOrderID   string    `json:"parent_order_id,omitempty"` // non-empty marks an attached (child) order
	Price           float64   `json:"price,omitempty"`           // order price on NEW/REPLACE events
	FeeAmount       float64   `json:"fee_amount,omitempty"`      // fee carried by UPDATE events; never stored in Price
	FillPrice       float64   `json:"fill_price,omitempty"`      // populated only on FILLED events
	FilledQuantity  int       `json:"filled_quantity,omitempty"` // populated only on FILLED events
	Side            FillSide  `json:"side,omitempty"`            // populated only on FILLED events, best effort
	Tag             string    `json:"tag,omitempty"`             // free-text broker tag
	Raw             string    `json:"raw,omitempty"`             // original line for reference
}

// IsChild reports whether the event belongs to an attached (bracket) order.
func (e LogEvent) IsChild() bool {
	return e.ParentOrderID != ""
}
