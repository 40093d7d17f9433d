// backend/src/processors/pipeline_test.go
package processors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/traderecap/backend/src/instruments"
	"github.com/username/traderecap/backend/src/models"
	"github.com/username/traderecap/backend/src/parsers/terminal"
)

const sampleActivityLog = `14.03.2024 09:29:58 Connection established to order gateway
14.03.2024 09:30:01 Order entry: NQH4.CME Buy 1 Market at 18300.00, id=100, exch=E788122, tag="morning breakout"
14.03.2024 09:30:02 New order NQH4.CME Stop at 18250.00, id=101, parent=100
14.03.2024 09:30:02 New order NQH4.CME Limit at 18350.00, id=102, parent=100
14.03.2024 09:30:05 Order id=100 was filled at 18300.00, position 0 -> 1
14.03.2024 09:31:00 Order update: commission charged 2.10, id=100
14.03.2024 10:15:00 Order id=100 was filled at 18350.00, position 1 -> 0
14.03.2024 18:00:01 Disconnected from order gateway
`

func nqSpecs() instruments.Lookup {
	// NQ: 0.25 ticks worth 5.00, i.e. 20.00 per point.
	return instruments.NewStaticRegistry([]instruments.Spec{
		{Symbol: "NQ", TickSize: 0.25, TickValue: 5.0},
	})
}

func TestPipelineEndToEnd(t *testing.T) {
	pipeline := NewTradePipeline(terminal.NewParser(), nqSpecs())

	trades, err := pipeline.Run(strings.NewReader(sampleActivityLog))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	trade := trades[0]
	assert.Equal(t, "100", trade.InternalOrderID)
	assert.Equal(t, "E788122", trade.ExchangeOrderID)
	assert.Equal(t, "NQH4.CME", trade.Symbol)
	assert.Equal(t, models.TradeLong, trade.Side)
	assert.Equal(t, models.TradeClosed, trade.Status)
	assert.Equal(t, models.ExitTakeProfit, trade.ExitReason)
	assert.Equal(t, "morning breakout", trade.Tag)
	assert.Equal(t, 2.10, trade.Fees)

	require.NotNil(t, trade.Pnl)
	// 50 points x 20.00 per point x 1 contract, minus the 2.10 commission.
	assert.InDelta(t, 997.90, *trade.Pnl, 1e-9)
}

func TestPipelineIsDeterministic(t *testing.T) {
	pipeline := NewTradePipeline(terminal.NewParser(), nqSpecs())

	first, err := pipeline.Run(strings.NewReader(sampleActivityLog))
	require.NoError(t, err)
	second, err := pipeline.Run(strings.NewReader(sampleActivityLog))
	require.NoError(t, err)

	assert.Equal(t, first, second, "the same buffer must always produce an identical trade list")
}

func TestPipelineNoiseOnlyLogYieldsNoTrades(t *testing.T) {
	log := `14.03.2024 09:29:58 Connection established to order gateway
14.03.2024 09:29:59 Open orders request acknowledged
14.03.2024 18:00:01 Connection lost
`
	pipeline := NewTradePipeline(terminal.NewParser(), nqSpecs())

	trades, err := pipeline.Run(strings.NewReader(log))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPipelineTradeCountMatchesFilledClusters(t *testing.T) {
	// Two parents: one filled twice, one never filled, one filled once.
	log := `14.03.2024 09:30:01 Order entry: ESH4.CME Buy 1 Market at 5000.00, id=1
14.03.2024 09:30:02 Order entry: ESH4.CME Sell 1 Limit at 5100.00, id=2
14.03.2024 09:30:03 Order entry: ESH4.CME Buy 1 Market at 5001.00, id=3
14.03.2024 09:31:00 Order id=1 was filled at 5000.25, position 0 -> 1
14.03.2024 09:45:00 Order id=1 was filled at 5010.25, position 1 -> 0
14.03.2024 10:00:00 Order id=3 was filled at 5001.00, position 0 -> 1
`
	pipeline := NewTradePipeline(terminal.NewParser(), nqSpecs())

	trades, err := pipeline.Run(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, trades, 2, "only clusters with at least one fill produce a trade")

	assert.Equal(t, models.TradeClosed, trades[0].Status)
	assert.Equal(t, "1", trades[0].InternalOrderID)
	assert.Equal(t, models.TradeOpen, trades[1].Status)
	assert.Equal(t, "3", trades[1].InternalOrderID)
}

func TestPipelineEmptyInputFails(t *testing.T) {
	pipeline := NewTradePipeline(terminal.NewParser(), nqSpecs())

	_, err := pipeline.Run(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event extraction failed")
}
