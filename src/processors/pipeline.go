// backend/src/processors/pipeline.go
package processors

import (
	"fmt"
	"io"

	"github.com/username/traderecap/backend/src/instruments"
	"github.com/username/traderecap/backend/src/models"
	"github.com/username/traderecap/backend/src/parsers"
)

// TradePipeline is the single entry point the rest of the application needs:
// parse one activity-log buffer, return the reconstructed trade list or fail
// with a described error.
//
// The three stages run strictly in sequence, each over its predecessor's
// complete output. Correlation needs the full event sequence because a child
// order's defining line may appear long after its parent; building needs
// complete clusters before P&L can be computed. The pipeline holds no state
// between runs; construct once, run per import.
type TradePipeline struct {
	parser     parsers.Parser
	correlator *OrderCorrelator
	builder    *TradeBuilder
}

// NewTradePipeline wires a parser to the correlation and trade-building
// stages. specs may be nil, in which case every symbol uses the default
// P&L multiplier.
func NewTradePipeline(parser parsers.Parser, specs instruments.Lookup) *TradePipeline {
	return &TradePipeline{
		parser:     parser,
		correlator: NewOrderCorrelator(),
		builder:    NewTradeBuilder(specs),
	}
}

// Run executes extraction, correlation and trade building over one imported
// file. An empty trade list is a valid result, not an error; the caller
// decides how to surface "no trades found".
func (p *TradePipeline) Run(file io.Reader) ([]models.ParsedTrade, error) {
	events, err := p.parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("event extraction failed: %w", err)
	}
	clusters := p.correlator.Correlate(events)
	return p.builder.Build(clusters, events), nil
}
