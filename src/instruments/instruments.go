// backend/src/instruments/instruments.go
package instruments

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/username/traderecap/backend/src/logger"
)

// Spec is one instrument's contract specification.
type Spec struct {
	Symbol            string  `json:"symbol"`
	TickSize          float64 `json:"tick_size"`
	TickValue         float64 `json:"tick_value"`
	ContractSize      float64 `json:"contract_size"`
	MarginRequirement float64 `json:"margin_requirement"`
}

// PointValue is the monetary value of a one-point price move for one unit
// of the instrument.
func (s Spec) PointValue() float64 {
	if s.TickSize <= 0 {
		return 0
	}
	return s.TickValue / s.TickSize
}

// Lookup resolves a traded symbol to its contract specification.
// The trade builder consumes this to convert price deltas into money.
type Lookup interface {
	Lookup(symbol string) (Spec, bool)
}

// Registry is a Lookup backed by a static specification table loaded from
// a JSON data file at startup.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry loads the instrument specification table from path.
func NewRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("instruments: failed to read data file %s: %w", path, err)
	}
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("instruments: failed to parse data file %s: %w", path, err)
	}
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		r.specs[normalizeSymbol(s.Symbol)] = s
	}
	logger.L.Info("Instrument specifications loaded", "path", path, "count", len(r.specs))
	return r, nil
}

// NewStaticRegistry builds a Registry from an in-memory table. Used by tests
// and as a fallback when no data file is configured.
func NewStaticRegistry(specs []Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		r.specs[normalizeSymbol(s.Symbol)] = s
	}
	return r
}

// Lookup resolves a symbol. Exchange-segment suffixes and contract-month
// codes are tolerated: "NQH4.CME" resolves the "NQ" specification.
func (r *Registry) Lookup(symbol string) (Spec, bool) {
	key := normalizeSymbol(symbol)
	if spec, ok := r.specs[key]; ok {
		return spec, true
	}
	// Retry with the contract-month/year suffix stripped (e.g. NQH4 -> NQ).
	for len(key) > 1 {
		key = key[:len(key)-1]
		if spec, ok := r.specs[key]; ok {
			return spec, true
		}
	}
	return Spec{}, false
}

func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}
