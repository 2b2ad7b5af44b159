package models

import (
	"fmt"
	"net/http"

	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

// Active statuses. Transitions only happen through ToggleActiveStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User is one account. PasswordHash is opaque and never the plaintext.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Active       string
	Coins        int64
	StockID      *int64
}

// RedactedUser is the projection of a user safe for export or transport.
// It omits the password hash.
type RedactedUser struct {
	ID       int64  `json:"userID"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Active   string `json:"active"`
	Coins    int64  `json:"coins"`
	StockID  *int64 `json:"stockID"`
}

// Redacted returns the export view of the user.
func (u *User) Redacted() RedactedUser {
	return RedactedUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Active:   u.Active,
		Coins:    u.Coins,
		StockID:  u.StockID,
	}
}

// ToggleActiveStatus flips between online and offline. It is its own
// inverse; no other states exist.
func (u *User) ToggleActiveStatus() {
	if u.Active == StatusOnline {
		u.Active = StatusOffline
	} else {
		u.Active = StatusOnline
	}
}

// AddCoins increases the balance.
func (u *User) AddCoins(amount int64) {
	u.Coins += amount
}

// DeductCoins decreases the balance only if sufficient funds exist.
// On insufficient funds the balance is unchanged and the caller gets a
// typed failure instead of a silent no-op.
func (u *User) DeductCoins(amount int64) error {
	if amount > u.Coins {
		return apperrors.User(
			fmt.Sprintf("insufficient funds: have %d, need %d", u.Coins, amount),
			http.StatusBadRequest,
		)
	}
	u.Coins -= amount
	return nil
}
