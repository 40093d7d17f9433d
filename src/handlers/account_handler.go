// backend/src/handlers/account_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/traderecap/backend/src/database"
	"github.com/username/traderecap/backend/src/logger"
	"github.com/username/traderecap/backend/src/model"
	"github.com/username/traderecap/backend/src/security/validation"
)

type AccountHandler struct{}

func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

type createAccountRequest struct {
	Name string `json:"name"`
}

// HandleCreateAccount creates an additional trading account for the user,
// beyond the default one made at registration.
func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	if req.Name == "" {
		sendJSONError(w, "Account name is required", http.StatusBadRequest)
		return
	}

	accountID, err := model.CreateAccount(database.DB, userID, req.Name)
	if err != nil {
		logger.L.Error("Failed to create account", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Account created", "userID", userID, "accountID", accountID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"account_id": accountID})
}

// HandleListAccounts returns the user's accounts.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	accounts, err := model.ListAccountsForUser(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to list accounts", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(accounts); err != nil {
		logger.L.Error("Error encoding accounts response", "userID", userID, "error", err)
	}
}
