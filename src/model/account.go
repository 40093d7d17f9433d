// backend/src/model/account.go
package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// Account scopes imported trades: every import lands under one of the
// user's accounts. Registration creates a default account so the import
// flow works out of the box.
type Account struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAccount inserts a new account for the user and returns its id.
func CreateAccount(db *sql.DB, userID int64, name string) (int64, error) {
	res, err := db.Exec(`INSERT INTO accounts (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create account for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new account id: %w", err)
	}
	return id, nil
}

// GetAccountForUser fetches an account, verifying it belongs to the user.
func GetAccountForUser(db *sql.DB, accountID, userID int64) (*Account, error) {
	var a Account
	err := db.QueryRow(
		`SELECT id, user_id, name, created_at FROM accounts WHERE id = ? AND user_id = ?`,
		accountID, userID,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account row: %w", err)
	}
	return &a, nil
}

// ListAccountsForUser returns the user's accounts in creation order.
func ListAccountsForUser(db *sql.DB, userID int64) ([]Account, error) {
	rows, err := db.Query(
		`SELECT id, user_id, name, created_at FROM accounts WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for user %d: %w", userID, err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", err)
	}
	return accounts, nil
}
