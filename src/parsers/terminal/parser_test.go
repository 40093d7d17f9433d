// backend/src/parsers/terminal/parser_test.go
package terminal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/models"
)

func init() {
	// Extraction logs skipped lines; the global logger must exist.
	logger.InitLogger("error")
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
}

func newTestParser() *Parser {
	p := NewParser()
	p.now = fixedClock
	return p
}

func TestParseClassifiesEventKinds(t *testing.T) {
	log := strings.Join([]string{
		`14.03.2024 09:30:01 Order entry: NQH4.CME Buy 1 Market at 18300.00, id=100, exch=E788122, tag="morning breakout"`,
		`14.03.2024 09:30:02 New order NQH4.CME Stop at 18250.00, id=101, parent=100`,
		`14.03.2024 09:30:02 New order NQH4.CME Limit at 18350.00, id=102, parent=100`,
		`14.03.2024 09:30:05 Order id=100 was filled at 18300.00, position 0 -> 1`,
		`14.03.2024 09:40:00 Cancel/Replace id=101 NQH4.CME Stop price 18250.00 -> 18260.00`,
		`14.03.2024 09:45:10 Order update: commission charged 2.10, id=100`,
		`14.03.2024 17:00:00 Exchange fee charged 1.24, id=100`,
	}, "\n")

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 7)

	entry := events[0]
	assert.Equal(t, models.EventNew, entry.Kind)
	assert.Equal(t, "NQH4.CME", entry.Symbol)
	assert.Equal(t, models.OrderTypeMarket, entry.OrderType)
	assert.Equal(t, "100", entry.InternalOrderID)
	assert.Equal(t, "E788122", entry.ExchangeOrderID)
	assert.Empty(t, entry.ParentOrderID)
	assert.Equal(t, 18300.00, entry.Price)
	assert.Equal(t, "morning breakout", entry.Tag)
	assert.Equal(t, time.Date(2024, 3, 14, 9, 30, 1, 0, time.UTC), entry.Timestamp)

	stop := events[1]
	assert.Equal(t, models.EventNew, stop.Kind)
	assert.Equal(t, models.OrderTypeStop, stop.OrderType)
	assert.Equal(t, "101", stop.InternalOrderID)
	assert.Equal(t, "100", stop.ParentOrderID)
	assert.True(t, stop.IsChild())
	assert.Equal(t, 18250.00, stop.Price)

	target := events[2]
	assert.Equal(t, models.OrderTypeLimit, target.OrderType)
	assert.Equal(t, 18350.00, target.Price)

	fill := events[3]
	assert.Equal(t, models.EventFilled, fill.Kind)
	assert.Equal(t, "100", fill.InternalOrderID)
	assert.Equal(t, 18300.00, fill.FillPrice)
	assert.Equal(t, 1, fill.FilledQuantity)
	assert.Equal(t, models.SideBuy, fill.Side)

	replace := events[4]
	assert.Equal(t, models.EventReplace, replace.Kind)
	assert.Equal(t, "101", replace.InternalOrderID)
	assert.Equal(t, 18260.00, replace.Price, "replace must carry the new price, not the old one")

	feeUpdate := events[5]
	assert.Equal(t, models.EventUpdate, feeUpdate.Kind)
	assert.Equal(t, 2.10, feeUpdate.FeeAmount)
	assert.Zero(t, feeUpdate.Price, "fees are never stored in the price field")

	standaloneFee := events[6]
	assert.Equal(t, models.EventUpdate, standaloneFee.Kind)
	assert.Equal(t, 1.24, standaloneFee.FeeAmount)
}

func TestParseSideInferenceFromPositionDelta(t *testing.T) {
	log := strings.Join([]string{
		`14.03.2024 09:30:05 Order id=1 was filled at 100.00, position 0 -> 2`,
		`14.03.2024 09:35:05 Order id=2 was filled at 101.00, position 2 -> 0`,
		`14.03.2024 09:40:05 Order id=3 was filled at 102.00, position 1 -> 1`,
	}, "\n")

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, models.SideBuy, events[0].Side)
	assert.Equal(t, 2, events[0].FilledQuantity)
	assert.Equal(t, models.SideSell, events[1].Side)
	assert.Equal(t, 2, events[1].FilledQuantity)
	// No net change: direction cannot be recovered from this line.
	assert.Empty(t, events[2].Side)
}

func TestParseDiscardsNoiseAndUnclassifiableLines(t *testing.T) {
	log := strings.Join([]string{
		``,
		`14.03.2024 09:29:58 Connection established to order gateway`,
		`14.03.2024 09:29:59 Open orders request acknowledged`,
		`14.03.2024 09:30:00 Account temporarily locked by risk manager`,
		`some random line the terminal wrote for no reason`,
		`14.03.2024 18:00:01 Disconnected from order gateway`,
	}, "\n")

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseTimestampFallsBackToWallClock(t *testing.T) {
	log := `Order entry: NQH4.CME Buy 1 Market at 18300.00, id=100`

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixedClock(), events[0].Timestamp)
}

func TestParseDateWithoutTimeUsesMidnight(t *testing.T) {
	log := `14.03.2024 Order entry: NQH4.CME Buy 1 Market at 18300.00, id=100`

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), events[0].Timestamp)
}

func TestParsePartialRecoveryKeepsLine(t *testing.T) {
	// A fee line with no symbol and no recoverable price is still useful.
	log := `14.03.2024 17:00:00 Exchange fee charged 0.85`

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventUpdate, events[0].Kind)
	assert.Equal(t, 0.85, events[0].FeeAmount)
	assert.Empty(t, events[0].Symbol)
	assert.Empty(t, events[0].InternalOrderID)
}

func TestParseMalformedFieldsDoNotAbortExtraction(t *testing.T) {
	log := strings.Join([]string{
		`14.03.2024 09:30:01 Order entry: garbage at not-a-price, id=`,
		`14.03.2024 09:30:05 Order id=100 was filled at 18300.00, position 0 -> 1`,
	}, "\n")

	events, err := newTestParser().Parse(strings.NewReader(log))
	require.NoError(t, err)
	// The malformed entry line still classifies; its fields stay unset.
	require.Len(t, events, 2)
	assert.Equal(t, models.EventNew, events[0].Kind)
	assert.Zero(t, events[0].Price)
	assert.Equal(t, models.EventFilled, events[1].Kind)
}

func TestParseReplacesInvalidUTF8(t *testing.T) {
	raw := append([]byte(`14.03.2024 09:30:05 Order id=100 was filled at 18300.00, position 0 -> 1`), 0xff, 0xfe)

	events, err := newTestParser().Parse(strings.NewReader(string(raw)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventFilled, events[0].Kind)
}

func TestParseEmptyInputFails(t *testing.T) {
	_, err := newTestParser().Parse(strings.NewReader("   \n\n  "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
