package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tradechamp/tradechamp-server/internal/auth"
	"github.com/tradechamp/tradechamp-server/internal/database"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/observability"
	"github.com/tradechamp/tradechamp-server/internal/models"
	repo "github.com/tradechamp/tradechamp-server/internal/repository"
	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

// MySQLUserRepository translates between the user table and User
// entities. Every call acquires and releases its own connection through
// the pool; nothing is held across calls.
type MySQLUserRepository struct {
	db     *database.DB
	hasher *auth.Authenticator
}

func NewMySQLUserRepository(db *database.DB, hasher *auth.Authenticator) *MySQLUserRepository {
	return &MySQLUserRepository{db: db, hasher: hasher}
}

// observe records the call counter and duration metrics for one
// repository method.
func observe(method string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RepositoryCalls.WithLabelValues(method, status).Inc()
	observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (r *MySQLUserRepository) FetchByID(ctx context.Context, id int64) (user *models.User, err error) {
	start := time.Now()
	defer func() { observe("FetchByID", start, err) }()
	result, err := r.db.QueryParams(ctx, `SELECT userID, username, email, userPassword, role, active, coins, stockID FROM user WHERE userID = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, apperrors.User(fmt.Sprintf("user with ID %d not found", id), http.StatusNotFound)
	}
	return scanUser(result.Rows[0])
}

func (r *MySQLUserRepository) FetchByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, apperrors.InvalidInput("username must not be empty")
	}
	result, err := r.db.QueryParams(ctx, `SELECT userID, username, email, userPassword, role, active, coins, stockID FROM user WHERE username = ?`, username)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, apperrors.User(fmt.Sprintf("user %q not found", username), http.StatusNotFound)
	}
	return scanUser(result.Rows[0])
}

// Create hashes the plaintext password before persisting. Coins defaults
// to 0 and stockID to null when absent. Any persistence error, duplicate
// username or email included, surfaces as a generic creation failure.
func (r *MySQLUserRepository) Create(ctx context.Context, input repo.NewUser) (created bool, err error) {
	start := time.Now()
	defer func() { observe("Create", start, err) }()

	hash, err := r.hasher.Hash(input.Password)
	if err != nil {
		return false, err
	}

	role := input.Role
	if role == "" {
		role = "user"
	}
	active := input.Active
	if active == "" {
		active = models.StatusOffline
	}
	var coins int64
	if input.Coins != nil {
		coins = *input.Coins
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO user (username, email, userPassword, role, active, coins, stockID) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		input.Username, input.Email, hash, role, active, coins, input.StockID,
	)
	if err != nil {
		if database.IsDuplicateEntry(err) {
			slog.Warn("duplicate username or email", "username", input.Username)
		} else {
			slog.Error("failed to create user", "username", input.Username, "error", err)
		}
		return false, apperrors.User("could not create user", http.StatusBadRequest)
	}
	return true, nil
}

func (r *MySQLUserRepository) UpdateBalance(ctx context.Context, userID, delta int64) (balance int64, err error) {
	start := time.Now()
	defer func() { observe("UpdateBalance", start, err) }()

	affected, err := r.db.Exec(ctx,
		`UPDATE user SET coins = coins + ? WHERE userID = ? AND coins + ? >= 0`,
		delta, userID, delta,
	)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, apperrors.User(
			fmt.Sprintf("user %d not found or insufficient funds", userID),
			http.StatusBadRequest,
		)
	}
	user, err := r.FetchByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Coins, nil
}

func (r *MySQLUserRepository) SetActiveStatus(ctx context.Context, userID int64, status string) error {
	if status != models.StatusOnline && status != models.StatusOffline {
		return apperrors.InvalidInput(fmt.Sprintf("unknown active status %q", status))
	}
	affected, err := r.db.Exec(ctx, `UPDATE user SET active = ? WHERE userID = ?`, status, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.User(fmt.Sprintf("user with ID %d not found", userID), http.StatusNotFound)
	}
	return nil
}

// ExportJSON writes the redacted view of a user to
// <destDir><username>.json, pretty-printed. The password hash never
// leaves the database.
func (r *MySQLUserRepository) ExportJSON(ctx context.Context, userID int64, destDir string) error {
	user, err := r.FetchByID(ctx, userID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(user.Redacted(), "", "  ")
	if err != nil {
		return apperrors.Internal("failed to serialize user", err)
	}

	path := destDir + user.Username + ".json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Internal("failed to write user export", err)
	}
	slog.Info("user exported", "user_id", userID, "path", path)
	return nil
}

func scanUser(row database.RowMap) (*models.User, error) {
	user := &models.User{}
	var err error
	if user.ID, err = toInt64(row["userID"]); err != nil {
		return nil, apperrors.Internal("malformed user row", err)
	}
	user.Username = toString(row["username"])
	user.Email = toString(row["email"])
	user.PasswordHash = toString(row["userPassword"])
	user.Role = toString(row["role"])
	user.Active = toString(row["active"])
	if user.Coins, err = toInt64(row["coins"]); err != nil {
		return nil, apperrors.Internal("malformed user row", err)
	}
	if row["stockID"] != nil {
		stockID, err := toInt64(row["stockID"])
		if err != nil {
			return nil, apperrors.Internal("malformed user row", err)
		}
		user.StockID = &stockID
	}
	return user, nil
}

// The text and binary MySQL protocols disagree on how numerics come
// back, so row values are coerced rather than asserted.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case string:
		var parsed int64
		_, err := fmt.Sscan(n, &parsed)
		return parsed, err
	case []byte:
		var parsed int64
		_, err := fmt.Sscan(string(n), &parsed)
		return parsed, err
	default:
		return 0, fmt.Errorf("unexpected column type %T", v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
