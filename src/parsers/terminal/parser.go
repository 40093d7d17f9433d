// backend/src/parsers/terminal/parser.go
package terminal

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/models"
)

// Parser recovers typed events from an exported trading-terminal activity
// log. The format is undocumented, line oriented and not strictly regular:
// each line is classified by marker substrings in a fixed priority order and
// fields are recovered best effort. A field that cannot be extracted is left
// unset; a line that matches no classifier produces no event.
type Parser struct {
	// now supplies the wall-clock fallback for lines without an embedded
	// date. Injected so tests can pin it.
	now func() time.Time
}

// NewParser creates a new activity-log parser.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Noise patterns discarded before classification: connection banners, lock
// notices and open-order-request acknowledgments carry no order state.
var noiseMarkers = []string{
	"connection established",
	"connection lost",
	"connected to",
	"disconnected",
	"locked",
	"lock notice",
	"open orders request",
}

var (
	reDate     = regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{4})\b`)
	reTime     = regexp.MustCompile(`\b(\d{2}):(\d{2}):(\d{2})\b`)
	reSymbol   = regexp.MustCompile(`\b([A-Z][A-Z0-9]{0,14})\.(CME|CBOT|NYMEX|COMEX|CBOE|EUREX|ICE|MOEX|FORTS)\b`)
	reOrderID  = regexp.MustCompile(`\bid=([A-Za-z0-9_-]+)`)
	reExchID   = regexp.MustCompile(`\bexch=([A-Za-z0-9_-]+)`)
	reParentID = regexp.MustCompile(`\bparent=([A-Za-z0-9_-]+)`)
	reType     = regexp.MustCompile(`\b(StopLimit|Stop Limit|Market|Limit|Stop)\b`)
	rePriceAt  = regexp.MustCompile(`\bat ([0-9]+(?:\.[0-9]+)?)`)
	reReprice  = regexp.MustCompile(`price\s+[0-9.]+\s*->\s*([0-9]+(?:\.[0-9]+)?)`)
	rePosition = regexp.MustCompile(`position\s+(-?[0-9]+)\s*->\s*(-?[0-9]+)`)
	reQty      = regexp.MustCompile(`\bqty=([0-9]+)`)
	reFee      = regexp.MustCompile(`(?i)(?:fee|commission) charged\s+([0-9]+(?:\.[0-9]+)?)`)
	reTag      = regexp.MustCompile(`tag="([^"]*)"`)
)

// Parse reads the full activity log and returns the ordered event sequence.
// The only fatal condition is an empty input; individual malformed lines are
// skipped, never propagated.
func (p *Parser) Parse(file io.Reader) ([]models.LogEvent, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("terminal parser: failed to read activity log: %w", err)
	}

	// The export is not declared to be strict UTF-8. Replace invalid byte
	// sequences instead of rejecting the file.
	text := strings.ToValidUTF8(string(data), "�")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("terminal parser: activity log is empty")
	}

	var events []models.LogEvent
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || isNoiseLine(line) {
			continue
		}
		if ev, ok := p.extractLine(line); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// extractLine classifies one line and recovers its fields. Extraction must
// never abort the whole parse for one malformed line, so classifier panics
// are caught here and the line is treated as unparseable.
func (p *Parser) extractLine(line string) (ev models.LogEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.L.Warn("Skipping unparseable activity-log line", "line", truncate(line, 120), "panic", r)
			ev, ok = models.LogEvent{}, false
		}
	}()

	// First matching classifier wins. The order matters: fee lines also
	// say "charged", fill lines also carry an order id, and so on.
	switch {
	case strings.Contains(line, "Order entry"):
		ev = p.parseOrderEntry(line)
	case strings.Contains(line, "was filled"):
		ev = p.parseFill(line)
	case strings.Contains(line, "Cancel/Replace"):
		ev = p.parseReplace(line)
	case strings.Contains(line, "Order update"):
		ev = p.parseUpdate(line)
	case strings.Contains(line, "New order"):
		ev = p.parseNewOrder(line)
	case reFee.MatchString(line):
		ev = p.parseFee(line)
	default:
		return models.LogEvent{}, false
	}
	return ev, true
}

func isNoiseLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range noiseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseOrderEntry handles lines logged when the user places an order from
// the terminal's entry window.
func (p *Parser) parseOrderEntry(line string) models.LogEvent {
	ev := p.baseEvent(line, models.EventNew)
	ev.Price = extractFloat(rePriceAt, line)
	return ev
}

// parseNewOrder handles broker-initiated order confirmations, which is how
// attached stop-loss/take-profit children show up in the log.
func (p *Parser) parseNewOrder(line string) models.LogEvent {
	ev := p.baseEvent(line, models.EventNew)
	ev.Price = extractFloat(rePriceAt, line)
	return ev
}

func (p *Parser) parseFill(line string) models.LogEvent {
	ev := p.baseEvent(line, models.EventFilled)
	ev.FillPrice = extractFloat(rePriceAt, line)

	// The format has no explicit buy/sell field on fills. Direction is
	// inferred from the position-quantity change embedded in the line.
	if m := rePosition.FindStringSubmatch(line); m != nil {
		before, errB := strconv.Atoi(m[1])
		after, errA := strconv.Atoi(m[2])
		if errB == nil && errA == nil {
			ev.Side = inferSideFromPositionDelta(before, after)
			if delta := after - before; delta != 0 {
				ev.FilledQuantity = abs(delta)
			}
		}
	}
	if ev.FilledQuantity == 0 {
		ev.FilledQuantity = int(extractFloat(reQty, line))
	}
	return ev
}

func (p *Parser) parseReplace(line string) models.LogEvent {
	ev := p.baseEvent(line, models.EventReplace)
	// A cancel/replace logs "price old -> new"; the new level is the one
	// that matters downstream.
	ev.Price = extractFloat(reReprice, line)
	if ev.Price == 0 {
		ev.Price = extractFloat(rePriceAt, line)
	}
	return ev
}

func (p *Parser) parseUpdate(line string) models.LogEvent {
	ev := p.baseEvent(line, models.EventUpdate)
	ev.FeeAmount = extractFloat(reFee, line)
	return ev
}

func (p *Parser) parseFee(line string) models.LogEvent {
	ev := p.baseEvent(line, models.EventUpdate)
	ev.FeeAmount = extractFloat(reFee, line)
	return ev
}

// baseEvent recovers the fields common to every classifier: timestamp,
// identifiers, symbol, order type and tag. A missing symbol does not drop
// the line; fee lines, for one, rarely carry an instrument.
func (p *Parser) baseEvent(line string, kind models.EventKind) models.LogEvent {
	ev := models.LogEvent{
		Timestamp: p.extractTimestamp(line),
		Kind:      kind,
		Raw:       line,
	}
	if m := reSymbol.FindStringSubmatch(line); m != nil {
		ev.Symbol = m[1] + "." + m[2]
	}
	if m := reOrderID.FindStringSubmatch(line); m != nil {
		ev.InternalOrderID = m[1]
	}
	if m := reExchID.FindStringSubmatch(line); m != nil {
		ev.ExchangeOrderID = m[1]
	}
	if m := reParentID.FindStringSubmatch(line); m != nil {
		ev.ParentOrderID = m[1]
	}
	if m := reType.FindStringSubmatch(line); m != nil {
		switch m[1] {
		case "Market":
			ev.OrderType = models.OrderTypeMarket
		case "Limit":
			ev.OrderType = models.OrderTypeLimit
		case "Stop":
			ev.OrderType = models.OrderTypeStop
		case "StopLimit", "Stop Limit":
			ev.OrderType = models.OrderTypeStopLimit
		}
	}
	if m := reTag.FindStringSubmatch(line); m != nil {
		ev.Tag = m[1]
	}
	return ev
}

// extractTimestamp looks for an embedded date and, when found, an adjoining
// time component. Lines without any date fall back to the wall clock at
// extraction time, a known precision loss rather than a failure.
func (p *Parser) extractTimestamp(line string) time.Time {
	dm := reDate.FindStringSubmatch(line)
	if dm == nil {
		return p.now()
	}
	day, _ := strconv.Atoi(dm[1])
	month, _ := strconv.Atoi(dm[2])
	year, _ := strconv.Atoi(dm[3])

	hour, minute, second := 0, 0, 0
	if tm := reTime.FindStringSubmatch(line); tm != nil {
		hour, _ = strconv.Atoi(tm[1])
		minute, _ = strconv.Atoi(tm[2])
		second, _ = strconv.Atoi(tm[3])
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}

// inferSideFromPositionDelta maps a position-quantity change to a fill
// direction: the position growing means a buy, shrinking means a sell.
// This is an inherent ambiguity of the source format; it is kept in one
// place so it can be replaced if better-structured input becomes available.
func inferSideFromPositionDelta(before, after int) models.FillSide {
	switch {
	case after > before:
		return models.SideBuy
	case after < before:
		return models.SideSell
	default:
		return ""
	}
}

func extractFloat(re *regexp.Regexp, line string) float64 {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
