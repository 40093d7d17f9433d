// backend/src/models/cluster.go
package models

// OrderCluster groups every event that belongs to one top-level order:
// the originating entry, its attached protective orders, its fills and any
// cancel/replace modifications. Clusters are built in a single pass over the
// full event sequence and are immutable once built.
type OrderCluster struct {
	// Parent is the originating NEW event. Invariant: Parent.ParentOrderID
	// is empty and Parent.InternalOrderID is the cluster key.
	Parent LogEvent `json:"parent"`

	// StopLoss and TakeProfit hold at most one attached child each. The
	// first qualifying child per role wins; later duplicates are ignored,
	// since SL/TP changes arrive as REPLACE events on the same logical
	// child, not as a new child.
	StopLoss   *LogEvent `json:"stop_loss,omitempty"`
	TakeProfit *LogEvent `json:"take_profit,omitempty"`

	// Fills are FILLED events matching the parent by either identifier,
	// in source order. The log is append-only, so source order is
	// chronological order.
	Fills []LogEvent `json:"fills,omitempty"`

	// Modifications are REPLACE events referencing the parent, kept for
	// audit/trace purposes only.
	Modifications []LogEvent `json:"modifications,omitempty"`
}

// Key returns the cluster key, the parent's internal order id.
func (c *OrderCluster) Key() string {
	return c.Parent.InternalOrderID
}
