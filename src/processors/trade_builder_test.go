// backend/src/processors/trade_builder_test.go
package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/traderecap/backend/src/instruments"
	"github.com/username/traderecap/backend/src/models"
)

// testSpecs gives ABC a per-point value of 2.0 (tick 0.5 worth 1.0).
func testSpecs() instruments.Lookup {
	return instruments.NewStaticRegistry([]instruments.Spec{
		{Symbol: "ABC", TickSize: 0.5, TickValue: 1.0},
	})
}

// bracketedEvents reproduces the canonical round trip: one parent with an
// attached stop at 95 and target at 110, filled at 100 and again at 110,
// with a 5.0 fee after the entry fill.
func bracketedEvents() []models.LogEvent {
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Timestamp: ts(0)}
	stop := models.LogEvent{Kind: models.EventNew, InternalOrderID: "101", ParentOrderID: "100", OrderType: models.OrderTypeStop, Price: 95, Timestamp: ts(1)}
	target := models.LogEvent{Kind: models.EventNew, InternalOrderID: "102", ParentOrderID: "100", OrderType: models.OrderTypeLimit, Price: 110, Timestamp: ts(1)}
	entryFill := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 100, FilledQuantity: 1, Side: models.SideBuy, Timestamp: ts(5), Raw: "entry"}
	fee := models.LogEvent{Kind: models.EventUpdate, FeeAmount: 5, Timestamp: ts(6)}
	exitFill := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 110, FilledQuantity: 1, Side: models.SideSell, Timestamp: ts(30), Raw: "exit"}
	return []models.LogEvent{parent, stop, target, entryFill, fee, exitFill}
}

func buildTrades(t *testing.T, events []models.LogEvent) []models.ParsedTrade {
	t.Helper()
	clusters := NewOrderCorrelator().Correlate(events)
	return NewTradeBuilder(testSpecs()).Build(clusters, events)
}

func TestBuildClosedTradeWithBracket(t *testing.T) {
	trades := buildTrades(t, bracketedEvents())
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, "100", trade.InternalOrderID)
	assert.Equal(t, "ABC", trade.Symbol)
	assert.Equal(t, models.TradeLong, trade.Side)
	assert.Equal(t, 1, trade.Quantity)
	assert.Equal(t, models.TradeClosed, trade.Status)

	assert.Equal(t, 100.0, trade.EntryPrice)
	require.NotNil(t, trade.ExitPrice)
	assert.Equal(t, 110.0, *trade.ExitPrice)

	require.NotNil(t, trade.StopLoss)
	assert.Equal(t, 95.0, *trade.StopLoss)
	require.NotNil(t, trade.TakeProfit)
	assert.Equal(t, 110.0, *trade.TakeProfit)
	assert.ElementsMatch(t, []string{"101", "102"}, trade.ChildOrders)

	assert.Equal(t, models.ExitTakeProfit, trade.ExitReason)
	assert.Equal(t, 5.0, trade.Fees)

	// (110-100) points x 2.0 per point x qty 1, minus the 5.0 fee.
	require.NotNil(t, trade.Pnl)
	assert.InDelta(t, 15.0, *trade.Pnl, 1e-9)
}

func TestBuildSingleFillYieldsOpenTrade(t *testing.T) {
	events := bracketedEvents()[:5] // parent, children, entry fill, fee

	trades := buildTrades(t, events)
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, models.TradeOpen, trade.Status)
	assert.Nil(t, trade.ExitPrice)
	assert.Nil(t, trade.ExitTime)
	assert.Nil(t, trade.Pnl)
	assert.Empty(t, trade.ExitReason)
	assert.Equal(t, 5.0, trade.Fees, "fees accrue even while the trade is open")
}

func TestBuildDropsClusterWithoutFills(t *testing.T) {
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Timestamp: ts(0)}

	trades := buildTrades(t, []models.LogEvent{parent})
	assert.Empty(t, trades)
}

func TestBuildExitReasonTieBreaksToStopLoss(t *testing.T) {
	// Stop at 95, target at 95.4: an exit at 95.2 is within the 0.5
	// tolerance of both levels. Stop-loss is checked first and wins.
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Timestamp: ts(0)}
	stop := models.LogEvent{Kind: models.EventNew, InternalOrderID: "101", ParentOrderID: "100", OrderType: models.OrderTypeStop, Price: 95, Timestamp: ts(1)}
	target := models.LogEvent{Kind: models.EventNew, InternalOrderID: "102", ParentOrderID: "100", OrderType: models.OrderTypeLimit, Price: 95.4, Timestamp: ts(1)}
	entry := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 100, FilledQuantity: 1, Side: models.SideBuy, Timestamp: ts(5), Raw: "entry"}
	exit := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 95.2, FilledQuantity: 1, Side: models.SideSell, Timestamp: ts(10), Raw: "exit"}

	trades := buildTrades(t, []models.LogEvent{parent, stop, target, entry, exit})
	require.Len(t, trades, 1)
	assert.Equal(t, models.ExitStopLoss, trades[0].ExitReason)
}

func TestBuildExitReasonManualWhenOutsideTolerance(t *testing.T) {
	events := bracketedEvents()
	// Move the exit far from both protective levels.
	events[5].FillPrice = 104

	trades := buildTrades(t, events)
	require.Len(t, trades, 1)
	assert.Equal(t, models.ExitManual, trades[0].ExitReason)
}

func TestBuildShortSideFromSellEntry(t *testing.T) {
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Timestamp: ts(0)}
	entry := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 100, FilledQuantity: 1, Side: models.SideSell, Timestamp: ts(5), Raw: "entry"}
	exit := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 90, FilledQuantity: 1, Side: models.SideBuy, Timestamp: ts(10), Raw: "exit"}

	trades := buildTrades(t, []models.LogEvent{parent, entry, exit})
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, models.TradeShort, trade.Side)
	// Short: (100-90) points x 2.0 per point, no fees.
	require.NotNil(t, trade.Pnl)
	assert.InDelta(t, 20.0, *trade.Pnl, 1e-9)
}

func TestBuildShortSideHeuristicFromParentPrice(t *testing.T) {
	// No side recovered; parent reference price above the entry fill
	// price triggers the short fallback.
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Price: 105, Timestamp: ts(0)}
	entry := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 100, FilledQuantity: 1, Timestamp: ts(5), Raw: "entry"}

	trades := buildTrades(t, []models.LogEvent{parent, entry})
	require.Len(t, trades, 1)
	assert.Equal(t, models.TradeShort, trades[0].Side)
}

func TestBuildSideStaysLongWithoutFillPrice(t *testing.T) {
	// No side and no fill price recovered: the short fallback needs a real
	// fill price to compare against, so the trade stays long.
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Price: 105, Timestamp: ts(0)}
	entry := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FilledQuantity: 1, Timestamp: ts(5), Raw: "entry"}

	trades := buildTrades(t, []models.LogEvent{parent, entry})
	require.Len(t, trades, 1)
	assert.Equal(t, models.TradeLong, trades[0].Side)
}

func TestBuildEntryPriceFallsBackToParentPrice(t *testing.T) {
	parent := models.LogEvent{Kind: models.EventNew, InternalOrderID: "100", Symbol: "ABC", Price: 101.5, Timestamp: ts(0)}
	entry := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FilledQuantity: 1, Side: models.SideBuy, Timestamp: ts(5), Raw: "entry"}

	trades := buildTrades(t, []models.LogEvent{parent, entry})
	require.Len(t, trades, 1)
	assert.Equal(t, 101.5, trades[0].EntryPrice)
}

func TestBuildFeeAttributionWindowStartsAtEntryFill(t *testing.T) {
	events := bracketedEvents()
	// A fee before the entry fill must not be attributed.
	earlyFee := models.LogEvent{Kind: models.EventUpdate, FeeAmount: 99, Timestamp: ts(2)}
	events = append(events, earlyFee)

	trades := buildTrades(t, events)
	require.Len(t, trades, 1)
	assert.Equal(t, 5.0, trades[0].Fees)
}

func TestBuildFeeTransferProperty(t *testing.T) {
	// pnl_before_fees - pnl == fees, exactly, for every closed trade.
	trades := buildTrades(t, bracketedEvents())
	require.Len(t, trades, 1)

	trade := trades[0]
	require.NotNil(t, trade.Pnl)
	pnlBeforeFees := (*trade.ExitPrice - trade.EntryPrice) * 2.0 * float64(trade.Quantity)
	assert.Equal(t, trade.Fees, pnlBeforeFees-*trade.Pnl)
}

func TestBuildThirdFillIsIgnored(t *testing.T) {
	events := bracketedEvents()
	extra := models.LogEvent{Kind: models.EventFilled, InternalOrderID: "100", FillPrice: 120, FilledQuantity: 1, Timestamp: ts(40), Raw: "extra"}
	events = append(events, extra)

	trades := buildTrades(t, events)
	require.Len(t, trades, 1)
	require.NotNil(t, trades[0].ExitPrice)
	assert.Equal(t, 110.0, *trades[0].ExitPrice, "only the first two fills are consumed")
}

func TestBuildUnknownSymbolUsesDefaultPointValue(t *testing.T) {
	events := bracketedEvents()
	for i := range events {
		if events[i].Symbol == "ABC" {
			events[i].Symbol = "ZZZ"
		}
	}

	trades := buildTrades(t, events)
	require.Len(t, trades, 1)
	require.NotNil(t, trades[0].Pnl)
	// (110-100) x defaultPointValue x 1 - 5.0 fee.
	assert.InDelta(t, 10*defaultPointValue-5, *trades[0].Pnl, 1e-9)
}
