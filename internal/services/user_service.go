package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/tradechamp/tradechamp-server/internal/auth"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/kafka"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/redis"
	"github.com/tradechamp/tradechamp-server/internal/infrastructure/token"
	"github.com/tradechamp/tradechamp-server/internal/repository"
	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

const tracerName = "tradechamp-server"

// RegisterInput carries the registration payload. Username, Email and
// Password are required; everything else defaults in the repository.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"userPassword"`
	Role     string `json:"role"`
	Active   string `json:"active"`
	Coins    *int64 `json:"coins"`
	StockID  *int64 `json:"stockID"`
}

// LoginResult reports a login attempt. A wrong password is Match=false,
// never an error.
type LoginResult struct {
	Match  bool
	UserID int64
	Token  string
}

type UserService interface {
	Register(ctx context.Context, input RegisterInput) (bool, error)
	Login(ctx context.Context, username, password string) (LoginResult, error)
	Balance(ctx context.Context, userID int64) (int64, error)
	Deposit(ctx context.Context, userID, amount int64) (int64, error)
	Withdraw(ctx context.Context, userID, amount int64) (int64, error)
	ToggleStatus(ctx context.Context, userID int64) (string, error)
	Export(ctx context.Context, userID int64, destDir string) error
}

type userService struct {
	userRepo      repository.UserRepository
	authenticator *auth.Authenticator
	redisClient   redis.RedisClient
	kafkaProducer kafka.KafkaProducer
	jwtSecret     string
}

func NewUserService(
	userRepo repository.UserRepository,
	authenticator *auth.Authenticator,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	jwtSecret string,
) *userService {
	return &userService{
		userRepo:      userRepo,
		authenticator: authenticator,
		redisClient:   redisClient,
		kafkaProducer: kafkaProducer,
		jwtSecret:     jwtSecret,
	}
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (bool, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Register")
	defer span.End()

	if input.Username == "" || input.Email == "" || input.Password == "" {
		span.SetStatus(codes.Error, "missing required field")
		return false, apperrors.InvalidInput("username, email and userPassword are required")
	}

	created, err := s.userRepo.Create(ctx, repository.NewUser{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
		Active:   input.Active,
		Coins:    input.Coins,
		StockID:  input.StockID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		return false, err
	}

	s.publishRegistered(input.Username)

	slog.Info("user registered", "username", input.Username)
	return created, nil
}

// publishRegistered emits the registration event asynchronously; delivery
// failures are retried and then logged, never surfaced to the caller.
func (s *userService) publishRegistered(username string) {
	if s.kafkaProducer == nil {
		return
	}
	event := map[string]any{
		"event_type": "user_registered",
		"username":   username,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal registration event", "username", username, "error", err)
		return
	}
	go func() {
		const retries = 3
		for i := 0; i < retries; i++ {
			if err := s.kafkaProducer.Send(context.Background(), "users", time.Now().UnixNano(), eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send registration event after retries", "username", username)
	}()
}

func (s *userService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Login")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, "missing required field")
		return LoginResult{}, apperrors.InvalidInput("username and userPassword are required")
	}

	user, err := s.userRepo.FetchByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return LoginResult{}, err
	}

	match, err := s.authenticator.Verify(user.PasswordHash, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hash comparison failed")
		return LoginResult{}, err
	}
	if !match {
		slog.Warn("invalid password", "username", username)
		return LoginResult{Match: false}, nil
	}

	tokenString, err := token.Generate(user.ID, s.jwtSecret, time.Hour)
	if err != nil {
		span.RecordError(err)
		return LoginResult{}, apperrors.Internal("failed to generate token", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%d:token", user.ID), tokenString, time.Hour); err != nil {
			slog.Error("failed to cache token", "user_id", user.ID, "error", err)
		}
	}

	slog.Info("user logged in", "username", username, "user_id", user.ID)
	return LoginResult{Match: true, UserID: user.ID, Token: tokenString}, nil
}

func (s *userService) Balance(ctx context.Context, userID int64) (int64, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Balance")
	defer span.End()

	user, err := s.userRepo.FetchByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return user.Coins, nil
}

func (s *userService) Deposit(ctx context.Context, userID, amount int64) (int64, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Deposit")
	defer span.End()

	if amount <= 0 {
		return 0, apperrors.InvalidInput("amount must be positive")
	}
	balance, err := s.userRepo.UpdateBalance(ctx, userID, amount)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	slog.Info("coins added", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

func (s *userService) Withdraw(ctx context.Context, userID, amount int64) (int64, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Withdraw")
	defer span.End()

	if amount <= 0 {
		return 0, apperrors.InvalidInput("amount must be positive")
	}
	balance, err := s.userRepo.UpdateBalance(ctx, userID, -amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "withdrawal rejected")
		return 0, err
	}
	slog.Info("coins deducted", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

func (s *userService) ToggleStatus(ctx context.Context, userID int64) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ToggleStatus")
	defer span.End()

	user, err := s.userRepo.FetchByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	user.ToggleActiveStatus()
	if err := s.userRepo.SetActiveStatus(ctx, userID, user.Active); err != nil {
		span.RecordError(err)
		return "", err
	}
	return user.Active, nil
}

func (s *userService) Export(ctx context.Context, userID int64, destDir string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Export")
	defer span.End()

	if err := s.userRepo.ExportJSON(ctx, userID, destDir); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
