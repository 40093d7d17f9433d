// backend/src/services/import_service.go
package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/traderecap/backend/src/database"
	"github.com/username/traderecap/backend/src/instruments"
	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/model"
	"github.com/username/traderecap/backend/src/models"
	"github.com/username/traderecap/backend/src/parsers"
	"github.com/username/traderecap/backend/src/processors"
	"github.com/username/traderecap/backend/src/security/validation"
	"github.com/username/traderecap/backend/src/utils"
)

const (
	ckAllTrades            = "res_all_trades_user_%d_acct_%d"
	ckTradeSummary         = "agg_trade_summary_user_%d_acct_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type importServiceImpl struct {
	specs       instruments.Lookup
	reportCache *cache.Cache
}

func NewImportService(specs instruments.Lookup, reportCache *cache.Cache) ImportService {
	return &importServiceImpl{
		specs:       specs,
		reportCache: reportCache,
	}
}

// ProcessImport runs the parse pipeline over one uploaded activity log and
// persists the reconstructed trades. Re-importing the same export is safe:
// rows deduplicate on the trade content hash.
func (s *importServiceImpl) ProcessImport(fileReader io.Reader, userID, accountID int64, source, filename string, filesize int64) (*ImportResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessImport START", "userID", userID, "accountID", accountID, "source", source)

	// parsed_trades rows reference accounts; verify the target account
	// exists and belongs to this user before doing any parse work.
	if _, err := model.GetAccountForUser(database.DB, accountID, userID); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: account %d", ErrUnknownAccount, accountID)
		}
		return nil, fmt.Errorf("failed to verify import account: %w", err)
	}

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSource, err)
	}
	pipeline := processors.NewTradePipeline(parser, s.specs)
	trades, err := pipeline.Run(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	result := &ImportResult{Trades: trades, TradeCount: len(trades)}
	for _, t := range trades {
		if t.Status == models.TradeOpen {
			result.OpenCount++
		} else {
			result.ClosedCount++
		}
	}
	if len(trades) == 0 {
		// A log full of noise lines is a valid import that found nothing.
		result.Trades = []models.ParsedTrade{}
		result.NoTradesFound = true
		logger.L.Info("ProcessImport found no trades", "userID", userID, "source", source)
		return result, nil
	}

	inserted, err := s.persistTrades(trades, userID, accountID)
	if err != nil {
		return nil, err
	}
	result.InsertedRows = inserted

	if inserted > 0 {
		if err := s.recordImport(userID, accountID, source, filename, filesize, inserted); err != nil {
			logger.L.Error("Failed to record import history", "userID", userID, "error", err)
		}
		if err := model.IncrementImportCount(database.DB, userID); err != nil {
			logger.L.Error("Failed to update user import count", "userID", userID, "error", err)
		}
	}
	s.InvalidateUserCache(userID, accountID)

	logger.L.Info("ProcessImport END", "userID", userID, "trades", len(trades),
		"inserted", inserted, "duration", time.Since(overallStartTime))
	return result, nil
}

func (s *importServiceImpl) persistTrades(trades []models.ParsedTrade, userID, accountID int64) (int, error) {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO parsed_trades
		(user_id, account_id, internal_order_id, exchange_order_id, parent_order_id, child_orders,
		symbol, side, quantity, entry_price, entry_time, exit_price, exit_time,
		stop_loss, take_profit, fees, pnl, status, exit_reason, tag, hash_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	insertedCount := 0
	for _, t := range trades {
		childOrders, _ := json.Marshal(t.ChildOrders)
		_, err := stmt.Exec(
			userID, accountID, t.InternalOrderID, t.ExchangeOrderID, t.ParentOrderID, string(childOrders),
			t.Symbol, string(t.Side), t.Quantity, t.EntryPrice, t.EntryTime,
			nullFloat(t.ExitPrice), nullTime(t.ExitTime),
			nullFloat(t.StopLoss), nullFloat(t.TakeProfit),
			t.Fees, nullFloat(t.Pnl), string(t.Status), string(t.ExitReason),
			validation.SanitizeText(validation.StripUnprintable(t.Tag)), t.HashID,
		)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate trade on import", "userID", userID, "hash_id", t.HashID)
				continue
			}
			return 0, fmt.Errorf("error inserting trade (OrderID: %s): %w", t.InternalOrderID, err)
		}
		insertedCount++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing trades: %w", err)
	}
	return insertedCount, nil
}

func (s *importServiceImpl) recordImport(userID, accountID int64, source, filename string, filesize int64, tradeCount int) error {
	_, err := database.DB.Exec(`
		INSERT INTO imports_history (user_id, account_id, source, filename, file_size, trade_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, accountID, source, filename, filesize, tradeCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record import in history: %w", err)
	}
	return nil
}

func (s *importServiceImpl) GetTrades(userID, accountID int64) ([]models.ParsedTrade, error) {
	cacheKey := fmt.Sprintf(ckAllTrades, userID, accountID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.ParsedTrade), nil
	}
	trades, err := fetchUserTrades(userID, accountID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, trades, DefaultCacheExpiration)
	return trades, nil
}

func (s *importServiceImpl) GetTradeSummary(userID, accountID int64) (*models.TradeSummary, error) {
	cacheKey := fmt.Sprintf(ckTradeSummary, userID, accountID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.TradeSummary), nil
	}
	trades, err := s.GetTrades(userID, accountID)
	if err != nil {
		return nil, err
	}

	summary := &models.TradeSummary{TotalTrades: len(trades)}
	for _, t := range trades {
		summary.TotalFees += t.Fees
		if t.Status == models.TradeOpen {
			summary.OpenTrades++
			continue
		}
		summary.ClosedTrades++
		if t.Pnl != nil {
			summary.NetPnl += *t.Pnl
			if *t.Pnl > 0 {
				summary.Wins++
			} else {
				summary.Losses++
			}
		}
		switch t.ExitReason {
		case models.ExitStopLoss:
			summary.StopLossHits++
		case models.ExitTakeProfit:
			summary.TargetHits++
		case models.ExitManual:
			summary.ManualExits++
		}
	}
	if summary.ClosedTrades > 0 {
		summary.WinRate = utils.RoundFloat(float64(summary.Wins)/float64(summary.ClosedTrades)*100, 2)
	}
	summary.NetPnl = utils.RoundFloat(summary.NetPnl, 2)
	summary.TotalFees = utils.RoundFloat(summary.TotalFees, 2)

	s.reportCache.Set(cacheKey, summary, DefaultCacheExpiration)
	return summary, nil
}

func (s *importServiceImpl) DeleteAllTrades(userID, accountID int64) error {
	_, err := database.DB.Exec(`DELETE FROM parsed_trades WHERE user_id = ? AND account_id = ?`, userID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete trades for user %d: %w", userID, err)
	}
	s.InvalidateUserCache(userID, accountID)
	return nil
}

func (s *importServiceImpl) InvalidateUserCache(userID, accountID int64) {
	keysToDelete := []string{
		fmt.Sprintf(ckAllTrades, userID, accountID),
		fmt.Sprintf(ckTradeSummary, userID, accountID),
	}
	for _, key := range keysToDelete {
		s.reportCache.Delete(key)
	}
}

func fetchUserTrades(userID, accountID int64) ([]models.ParsedTrade, error) {
	logger.L.Debug("Fetching parsed trades from DB", "userID", userID, "accountID", accountID)
	query := `
		SELECT id, internal_order_id, exchange_order_id, parent_order_id, child_orders,
		       symbol, side, quantity, entry_price, entry_time, exit_price, exit_time,
		       stop_loss, take_profit, fees, pnl, status, exit_reason, tag, hash_id
		FROM parsed_trades
		WHERE user_id = ? AND account_id = ?
		ORDER BY entry_time ASC, id ASC`
	rows, err := database.DB.Query(query, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("error querying trades for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var trades []models.ParsedTrade
	for rows.Next() {
		var t models.ParsedTrade
		var childOrders string
		var exitPrice, stopLoss, takeProfit, pnl sql.NullFloat64
		var exitTime sql.NullTime
		var exitReason sql.NullString
		scanErr := rows.Scan(
			&t.ID, &t.InternalOrderID, &t.ExchangeOrderID, &t.ParentOrderID, &childOrders,
			&t.Symbol, &t.Side, &t.Quantity, &t.EntryPrice, &t.EntryTime, &exitPrice, &exitTime,
			&stopLoss, &takeProfit, &t.Fees, &pnl, &t.Status, &exitReason, &t.Tag, &t.HashID,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning trade row for userID %d: %w", userID, scanErr)
		}
		if childOrders != "" {
			_ = json.Unmarshal([]byte(childOrders), &t.ChildOrders)
		}
		if exitPrice.Valid {
			t.ExitPrice = &exitPrice.Float64
		}
		if exitTime.Valid {
			ts := exitTime.Time
			t.ExitTime = &ts
		}
		if stopLoss.Valid {
			t.StopLoss = &stopLoss.Float64
		}
		if takeProfit.Valid {
			t.TakeProfit = &takeProfit.Float64
		}
		if pnl.Valid {
			t.Pnl = &pnl.Float64
		}
		if exitReason.Valid {
			t.ExitReason = models.ExitReason(exitReason.String)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over trade rows for userID %d: %w", userID, err)
	}
	return trades, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}
