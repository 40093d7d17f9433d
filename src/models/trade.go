// backend/src/models/trade.go
package models

import "time"

// TradeStatus is the lifecycle state of a reconstructed trade. It is set
// once at construction; a parse is a one-shot batch conversion, not an
// incremental update of previously built trades.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// TradeSide is the direction of the reconstructed position.
type TradeSide string

const (
	TradeLong  TradeSide = "long"
	TradeShort TradeSide = "short"
)

// ExitReason is the inferred cause of a position's closure.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitManual     ExitReason = "manual"
)

// ParsedTrade is the externally visible unit produced by the import
// pipeline: one round-trip trade reconstructed from an order cluster.
// Exactly one trade is produced per cluster with at least one fill.
//
// Known limitation: at most two fills are consumed per cluster (entry and
// exit). Scaling in or out over more than two fills is not modelled; extra
// fills are ignored.
type ParsedTrade struct {
	ID int64 `json:"id,omitempty"` // Database primary key

	// Identifiers, kept for traceability back to the source log.
	InternalOrderID string   `json:"internal_order_id"`
	ExchangeOrderID string   `json:"exchange_order_id,omitempty"`
	ParentOrderID   string   `json:"parent_order_id,omitempty"`
	ChildOrders     []string `json:"child_orders,omitempty"` // attached SL/TP order ids

	Symbol   string    `json:"symbol"`
	Side     TradeSide `json:"side"`
	Quantity int       `json:"quantity"`

	EntryPrice float64    `json:"entry_price"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitPrice  *float64   `json:"exit_price,omitempty"` // nil while the trade is open
	ExitTime   *time.Time `json:"exit_time,omitempty"`

	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`

	Fees float64  `json:"fees"`
	Pnl  *float64 `json:"pnl,omitempty"` // realized, net of fees; nil while open

	Status     TradeStatus `json:"status"`
	ExitReason ExitReason  `json:"exit_reason,omitempty"` // set only when closed

	Tag    string `json:"tag,omitempty"`     // sanitized broker tag from the entry order
	HashID string `json:"hash_id,omitempty"` // content hash for duplicate suppression
}

// TradeSummary aggregates a user's imported trades for the dashboard.
type TradeSummary struct {
	TotalTrades  int     `json:"total_trades"`
	OpenTrades   int     `json:"open_trades"`
	ClosedTrades int     `json:"closed_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"` // percent of closed trades with positive net P&L
	NetPnl       float64 `json:"net_pnl"`
	TotalFees    float64 `json:"total_fees"`
	StopLossHits int     `json:"stop_loss_exits"`
	TargetHits   int     `json:"take_profit_exits"`
	ManualExits  int     `json:"manual_exits"`
}
