package repository

import (
	"context"

	"github.com/tradechamp/tradechamp-server/internal/models"
)

// NewUser is the input for creating an account. Password is the
// plaintext and is hashed before it ever reaches storage.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     string
	Active   string
	Coins    *int64
	StockID  *int64
}

type UserRepository interface {
	FetchByID(ctx context.Context, id int64) (*models.User, error)
	FetchByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, input NewUser) (bool, error)
	// UpdateBalance applies delta to the stored balance, refusing to
	// drive it negative. Returns the new balance.
	UpdateBalance(ctx context.Context, userID, delta int64) (int64, error)
	SetActiveStatus(ctx context.Context, userID int64, status string) error
	// ExportJSON writes the redacted view of a user to
	// <destDir><username>.json, pretty-printed.
	ExportJSON(ctx context.Context, userID int64, destDir string) error
}
