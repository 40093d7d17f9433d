// backend/src/processors/trade_builder.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/username/traderecap/backend/src/instruments"
	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/models"
)

const (
	// exitReasonTolerance is the absolute price distance within which an
	// exit is attributed to a protective level rather than a manual close.
	exitReasonTolerance = 0.5

	// defaultPointValue is the per-unit monetary multiplier used when the
	// traded symbol has no entry in the instrument specification table.
	defaultPointValue = 20.0
)

// TradeBuilder converts order clusters into finalized trade records with
// computed P&L, exit reason and fee attribution. The per-unit monetary
// multiplier comes from the injected instrument specification lookup, keyed
// by the traded symbol.
type TradeBuilder struct {
	specs instruments.Lookup
}

// NewTradeBuilder creates a new instance of the TradeBuilder.
func NewTradeBuilder(specs instruments.Lookup) *TradeBuilder {
	return &TradeBuilder{specs: specs}
}

// Build produces one trade per cluster with at least one fill, in cluster
// discovery order. A cluster with zero fills represents an order that was
// never executed and contributes nothing.
//
// The full event sequence is needed alongside the clusters because fee
// lines are free-standing UPDATE events, attributed to a trade purely by
// timestamp (every fee at or after the entry fill, with no upper bound — a
// known over-inclusion risk across overlapping trades, kept as-is).
func (b *TradeBuilder) Build(clusters *ClusterSet, events []models.LogEvent) []models.ParsedTrade {
	var trades []models.ParsedTrade
	for _, cluster := range clusters.Ordered() {
		if len(cluster.Fills) == 0 {
			continue
		}
		trades = append(trades, b.buildTrade(cluster, events))
	}
	return trades
}

func (b *TradeBuilder) buildTrade(cluster *models.OrderCluster, events []models.LogEvent) models.ParsedTrade {
	parent := cluster.Parent
	entry := cluster.Fills[0]
	if len(cluster.Fills) > 2 {
		// Scaling in/out is not modelled; only the first two fills are
		// consumed. See the package documentation.
		logger.L.Warn("Cluster has more than two fills, extra fills ignored",
			"orderID", parent.InternalOrderID, "fills", len(cluster.Fills))
	}

	trade := models.ParsedTrade{
		InternalOrderID: parent.InternalOrderID,
		ExchangeOrderID: parent.ExchangeOrderID,
		ParentOrderID:   parent.ParentOrderID,
		Symbol:          parent.Symbol,
		Quantity:        entry.FilledQuantity,
		EntryTime:       entry.Timestamp,
		Tag:             parent.Tag,
		Status:          models.TradeOpen,
	}
	if trade.Symbol == "" {
		trade.Symbol = entry.Symbol
	}

	// Entry price comes from the first fill, falling back to the parent's
	// recorded order price when the fill line carried no price.
	trade.EntryPrice = entry.FillPrice
	if trade.EntryPrice == 0 {
		trade.EntryPrice = parent.Price
	}

	if cluster.StopLoss != nil {
		price := cluster.StopLoss.Price
		trade.StopLoss = &price
		trade.ChildOrders = append(trade.ChildOrders, cluster.StopLoss.InternalOrderID)
	}
	if cluster.TakeProfit != nil {
		price := cluster.TakeProfit.Price
		trade.TakeProfit = &price
		trade.ChildOrders = append(trade.ChildOrders, cluster.TakeProfit.InternalOrderID)
	}

	trade.Side = inferTradeSide(entry, parent)
	trade.Fees = sumFees(events, entry)

	if len(cluster.Fills) >= 2 {
		exit := cluster.Fills[1]
		exitPrice := exit.FillPrice
		exitTime := exit.Timestamp
		trade.ExitPrice = &exitPrice
		trade.ExitTime = &exitTime
		trade.Status = models.TradeClosed
		trade.ExitReason = inferExitReason(exitPrice, trade.StopLoss, trade.TakeProfit)

		pnl := b.computePnl(trade.Side, trade.Symbol, trade.EntryPrice, exitPrice, trade.Quantity) - trade.Fees
		trade.Pnl = &pnl
	}

	trade.HashID = tradeHash(trade)
	return trade
}

// inferTradeSide decides the trade direction. A recovered SELL entry fill
// means short. When no side was recovered at all, the fallback guesses short
// if the parent's reference price exceeds the entry fill price. The fallback
// is an unverified heuristic inherited from the source format, not an
// authoritative rule; it lives here in one place so it can be replaced.
// It deliberately requires a recovered fill price: comparing the parent
// price against a missing (zero) fill price would always flip the trade
// short, so those trades stay long instead.
func inferTradeSide(entry, parent models.LogEvent) models.TradeSide {
	if entry.Side == models.SideSell {
		return models.TradeShort
	}
	if entry.Side == "" && parent.Price > entry.FillPrice && entry.FillPrice > 0 {
		return models.TradeShort
	}
	return models.TradeLong
}

// inferExitReason attributes the close to a protective level within the
// fixed tolerance. Stop-loss is checked before take-profit; when both levels
// are within tolerance of the exit price, the first check wins.
func inferExitReason(exitPrice float64, stopLoss, takeProfit *float64) models.ExitReason {
	if stopLoss != nil && math.Abs(exitPrice-*stopLoss) <= exitReasonTolerance {
		return models.ExitStopLoss
	}
	if takeProfit != nil && math.Abs(exitPrice-*takeProfit) <= exitReasonTolerance {
		return models.ExitTakeProfit
	}
	return models.ExitManual
}

// sumFees totals the fee-bearing UPDATE events timestamped at or after the
// entry fill. There is deliberately no upper bound; see Build.
func sumFees(events []models.LogEvent, entry models.LogEvent) float64 {
	var total float64
	for _, ev := range events {
		if ev.Kind != models.EventUpdate || ev.FeeAmount == 0 {
			continue
		}
		if ev.Timestamp.Before(entry.Timestamp) {
			continue
		}
		total += ev.FeeAmount
	}
	return total
}

// computePnl converts the favorable price delta into money using the
// instrument's contract specification. Symbols missing from the
// specification table fall back to a default multiplier, logged so the
// gap in the table is visible.
func (b *TradeBuilder) computePnl(side models.TradeSide, symbol string, entryPrice, exitPrice float64, quantity int) float64 {
	delta := exitPrice - entryPrice
	if side == models.TradeShort {
		delta = entryPrice - exitPrice
	}

	pointValue := defaultPointValue
	if b.specs != nil {
		if spec, ok := b.specs.Lookup(symbol); ok && spec.PointValue() > 0 {
			pointValue = spec.PointValue()
		} else {
			logger.L.Warn("No instrument specification for symbol, using default point value",
				"symbol", symbol, "defaultPointValue", defaultPointValue)
		}
	}

	qty := quantity
	if qty == 0 {
		qty = 1
	}
	return delta * pointValue * float64(qty)
}

// tradeHash builds a stable content hash used for duplicate suppression
// when the same export is imported twice.
func tradeHash(t models.ParsedTrade) string {
	exitPrice := 0.0
	if t.ExitPrice != nil {
		exitPrice = *t.ExitPrice
	}
	input := fmt.Sprintf("%s|%s|%s|%s|%d|%.8f|%.8f|%s",
		t.InternalOrderID, t.ExchangeOrderID, t.Symbol, t.Side, t.Quantity,
		t.EntryPrice, exitPrice, t.EntryTime.UTC().Format("2006-01-02T15:04:05"))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}
