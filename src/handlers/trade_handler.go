// backend/src/handlers/trade_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/models"
	"github.com/username/traderecap/backend/src/services"
	"github.com/username/traderecap/backend/src/utils"
)

type TradeHandler struct {
	importService services.ImportService
}

func NewTradeHandler(service services.ImportService) *TradeHandler {
	return &TradeHandler{importService: service}
}

// HandleGetTrades lists the user's reconstructed trades with ETag support.
func (h *TradeHandler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	accountID, err := accountIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	trades, err := h.importService.GetTrades(userID, accountID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error retrieving trades", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving trades: %v", err), http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.ParsedTrade{}
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	currentETag, etagErr := utils.GenerateETag(trades)
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		logger.L.Warn("Proceeding without ETag check", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trades); err != nil {
		logger.L.Error("Error encoding trades response", "userID", userID, "error", err)
	}
}

// HandleGetTradeSummary returns aggregate statistics over the user's trades.
func (h *TradeHandler) HandleGetTradeSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	accountID, err := accountIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.InfoFromContext(r.Context(), "Handling GetTradeSummary request", "userID", userID, "accountID", accountID)

	summary, err := h.importService.GetTradeSummary(userID, accountID)
	if err != nil {
		logger.L.Error("Error retrieving trade summary", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving trade summary: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleDeleteAllTrades wipes the account's imported trades.
func (h *TradeHandler) HandleDeleteAllTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	accountID, err := accountIDFromRequest(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.importService.DeleteAllTrades(userID, accountID); err != nil {
		logger.L.Error("Error deleting trades", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to delete trades", http.StatusInternalServerError)
		return
	}
	logger.L.Info("All trades deleted", "userID", userID, "accountID", accountID)
	w.WriteHeader(http.StatusNoContent)
}
