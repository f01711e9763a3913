package auth

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/eye-diagnosis/internal/logging"
	"github.com/example/eye-diagnosis/internal/store"
)

var (
	// ErrValidation indicates missing or malformed registration input.
	ErrValidation = errors.New("all fields are required")
	// ErrInvalidEmail indicates the email does not look like local@domain.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrConflict indicates the username or email is already registered.
	ErrConflict = errors.New("username or email already exists")
	// ErrInvalidCredentials is returned for any login failure. It is
	// deliberately uniform so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// UserStore defines the credential persistence operations needed by the service.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (string, error)
	FindByUsername(ctx context.Context, username string) (*store.User, error)
}

// Service implements registration and login against the credential store.
type Service struct {
	users  UserStore
	logger *zap.Logger
}

func NewService(users UserStore, logger *zap.Logger) *Service {
	return &Service{users: users, logger: logger.Named("auth")}
}

// Register validates the input, hashes the password, and stores the user.
// Returns the new user id as a hex string.
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	if username == "" || email == "" || password == "" {
		return "", ErrValidation
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", logging.NewOperationError("auth.hash_password", "", err)
	}

	userID, err := s.users.Create(ctx, username, email, string(hashed))
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrConflict
		}
		wrapped := logging.NewOperationError("auth.create_user", "", err)
		s.logger.Error("failed to create user", zap.Error(wrapped), zap.String("username", username))
		return "", wrapped
	}
	return userID, nil
}

// Authenticate looks the user up by username and verifies the password.
// Every failure path returns ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("user lookup failed", zap.Error(err), zap.String("username", username))
		}
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return user.ID.Hex(), nil
}
