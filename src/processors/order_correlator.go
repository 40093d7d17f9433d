// backend/src/processors/order_correlator.go
package processors

import (
	"sort"

	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/models"
)

// ClusterSet is the correlator's output: order clusters keyed by the
// parent's internal order id, with discovery order preserved so downstream
// output stays deterministic for a given input.
type ClusterSet struct {
	byKey map[string]*models.OrderCluster
	order []string
}

// Get returns the cluster for a parent order id.
func (s *ClusterSet) Get(key string) (*models.OrderCluster, bool) {
	c, ok := s.byKey[key]
	return c, ok
}

// Ordered returns the clusters in the order their parents were discovered.
func (s *ClusterSet) Ordered() []*models.OrderCluster {
	clusters := make([]*models.OrderCluster, 0, len(s.order))
	for _, key := range s.order {
		clusters = append(clusters, s.byKey[key])
	}
	return clusters
}

// Len returns the number of clusters.
func (s *ClusterSet) Len() int { return len(s.order) }

func (s *ClusterSet) add(c *models.OrderCluster) {
	s.byKey[c.Key()] = c
	s.order = append(s.order, c.Key())
}

// OrderCorrelator groups extracted events into per-order clusters. It runs
// in one pass over the complete event sequence: a child order's defining
// line may appear many lines after its parent, so correlation cannot start
// until extraction has finished.
type OrderCorrelator struct{}

// NewOrderCorrelator creates a new instance of the OrderCorrelator.
func NewOrderCorrelator() *OrderCorrelator {
	return &OrderCorrelator{}
}

// Correlate builds the cluster set from the full event sequence.
//
// Parents are NEW events without a parent reference; a NEW event without an
// internal order id cannot be keyed and is skipped. Children attach by
// ParentOrderID, classified into the stop-loss or take-profit role by order
// type (Stop/StopLimit vs Limit), first qualifying child per role wins.
// Fills attach by either identifier, in source order. A child referencing
// an unknown parent is unattributable and dropped.
func (c *OrderCorrelator) Correlate(events []models.LogEvent) *ClusterSet {
	set := &ClusterSet{byKey: make(map[string]*models.OrderCluster)}

	// Index children and fills up front so each parent's lookups are O(1)
	// amortized instead of rescanning the full sequence per parent. Fills
	// keep their sequence number: source order is the only time order the
	// log guarantees.
	childrenByParent := make(map[string][]models.LogEvent)
	fillsByID := make(map[string][]indexedEvent)
	replacesByID := make(map[string][]models.LogEvent)
	for i, ev := range events {
		if ev.IsChild() && ev.Kind == models.EventNew {
			childrenByParent[ev.ParentOrderID] = append(childrenByParent[ev.ParentOrderID], ev)
		}
		switch ev.Kind {
		case models.EventFilled:
			for _, id := range []string{ev.InternalOrderID, ev.ExchangeOrderID} {
				if id != "" {
					fillsByID[id] = append(fillsByID[id], indexedEvent{seq: i, ev: ev})
				}
			}
		case models.EventReplace:
			for _, id := range []string{ev.InternalOrderID, ev.ParentOrderID} {
				if id != "" {
					replacesByID[id] = append(replacesByID[id], ev)
				}
			}
		}
	}

	for _, ev := range events {
		if ev.Kind != models.EventNew || ev.IsChild() {
			continue
		}
		if ev.InternalOrderID == "" {
			logger.L.Debug("Skipping parent order without internal id", "symbol", ev.Symbol)
			continue
		}
		if _, exists := set.Get(ev.InternalOrderID); exists {
			// Clusters are unique per key; a repeated NEW for the same id
			// does not open a second cluster.
			continue
		}

		cluster := &models.OrderCluster{Parent: ev}

		for _, child := range childrenByParent[ev.InternalOrderID] {
			switch child.OrderType {
			case models.OrderTypeStop, models.OrderTypeStopLimit:
				if cluster.StopLoss == nil {
					sl := child
					cluster.StopLoss = &sl
				}
			case models.OrderTypeLimit:
				if cluster.TakeProfit == nil {
					tp := child
					cluster.TakeProfit = &tp
				}
			}
		}

		cluster.Fills = matchFills(fillsByID, ev)
		cluster.Modifications = replacesByID[ev.InternalOrderID]

		set.add(cluster)
	}

	dropped := countUnattributedChildren(childrenByParent, set)
	if dropped > 0 {
		// Accepted information loss: the format sometimes references
		// parents that never produced a keyable NEW line.
		logger.L.Debug("Dropped unattributable child orders", "count", dropped)
	}
	return set
}

type indexedEvent struct {
	seq int
	ev  models.LogEvent
}

// matchFills collects fills matching the parent by either identifier while
// keeping source order and dropping duplicates when a fill line carried both
// identifiers.
func matchFills(fillsByID map[string][]indexedEvent, parent models.LogEvent) []models.LogEvent {
	var matched []indexedEvent
	seen := make(map[int]bool)
	appendFills := func(id string) {
		for _, f := range fillsByID[id] {
			if seen[f.seq] {
				continue
			}
			seen[f.seq] = true
			matched = append(matched, f)
		}
	}
	appendFills(parent.InternalOrderID)
	if parent.ExchangeOrderID != "" && parent.ExchangeOrderID != parent.InternalOrderID {
		appendFills(parent.ExchangeOrderID)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	fills := make([]models.LogEvent, 0, len(matched))
	for _, m := range matched {
		fills = append(fills, m.ev)
	}
	return fills
}

func countUnattributedChildren(childrenByParent map[string][]models.LogEvent, set *ClusterSet) int {
	dropped := 0
	for parentID, children := range childrenByParent {
		if _, ok := set.Get(parentID); !ok {
			dropped += len(children)
		}
	}
	return dropped
}
