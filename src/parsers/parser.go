// backend/src/parsers/parser.go
package parsers

import (
	"fmt"
	"io"
	"strings"

	"github.com/username/traderecap/backend/src/models"
	"github.com/username/traderecap/backend/src/parsers/terminal"
)

// Parser converts one exported activity log into an ordered event sequence.
type Parser interface {
	Parse(file io.Reader) ([]models.LogEvent, error)
}

// GetParser returns the parser registered for the given import source.
func GetParser(source string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "terminal":
		return terminal.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser registered for source '%s'", source)
	}
}
