// backend/src/services/interfaces.go
package services

import (
	"errors"
	"io"

	"github.com/username/traderecap/backend/src/models"
)

// ImportResult is the outcome of processing one activity-log import. It
// contains only data derived from the newly imported file.
type ImportResult struct {
	Trades        []models.ParsedTrade `json:"trades"`
	TradeCount    int                  `json:"trade_count"`
	OpenCount     int                  `json:"open_count"`
	ClosedCount   int                  `json:"closed_count"`
	InsertedRows  int                  `json:"inserted_rows"`   // new rows actually persisted (duplicates skipped)
	NoTradesFound bool                 `json:"no_trades_found"` // surfaced as a user-visible condition, not an error
}

// Define common service errors
var (
	ErrParsingFailed  = errors.New("activity log parsing failed")
	ErrUnknownSource  = errors.New("unknown import source")
	ErrUnknownAccount = errors.New("account not found for user")
)

// ImportService defines the interface for the core import processing logic.
type ImportService interface {
	ProcessImport(fileReader io.Reader, userID, accountID int64, source, filename string, filesize int64) (*ImportResult, error)
	GetTrades(userID, accountID int64) ([]models.ParsedTrade, error)
	GetTradeSummary(userID, accountID int64) (*models.TradeSummary, error)
	DeleteAllTrades(userID, accountID int64) error
	InvalidateUserCache(userID, accountID int64)
}
