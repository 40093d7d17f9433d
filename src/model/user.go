// backend/src/model/user.go
package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is the database representation of an account holder.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ImportCount  int       `json:"import_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser inserts a new user and returns its id.
func CreateUser(db *sql.DB, username, email, passwordHash string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new user id: %w", err)
	}
	return id, nil
}

// GetUserByID fetches a user by primary key.
func GetUserByID(db *sql.DB, id int64) (*User, error) {
	return scanUser(db.QueryRow(
		`SELECT id, username, email, password_hash, import_count, created_at FROM users WHERE id = ?`, id))
}

// GetUserByUsername fetches a user by username.
func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	return scanUser(db.QueryRow(
		`SELECT id, username, email, password_hash, import_count, created_at FROM users WHERE username = ?`, username))
}

// IncrementImportCount bumps the user's lifetime import counter.
func IncrementImportCount(db *sql.DB, userID int64) error {
	_, err := db.Exec(`UPDATE users SET import_count = import_count + 1 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to increment import count for user %d: %w", userID, err)
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ImportCount, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return &u, nil
}
