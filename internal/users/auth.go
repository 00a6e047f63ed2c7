package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicsuite/hospital-portal/internal/http/middleware"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// AuthStore is the account lookup Login needs.
type AuthStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Authenticator verifies credentials and issues bearer tokens.
type Authenticator struct {
	store  AuthStore
	secret string
	ttl    time.Duration
	logger *logging.Logger
}

func NewAuthenticator(store AuthStore, secret string, ttl time.Duration, logger *logging.Logger) *Authenticator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Authenticator{store: store, secret: secret, ttl: ttl, logger: logger}
}

// Login checks the password and returns a signed token plus the account.
// Unknown usernames, wrong passwords and disabled accounts all surface as
// ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *User, error) {
	u, err := a.store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !u.Active || !u.CheckPassword(password) {
		a.logger.Warn("login rejected", "username", username)
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.IssueToken(u)
	if err != nil {
		return "", nil, err
	}
	a.logger.Info("login succeeded", "user_id", u.ID, "role", u.Role)
	return token, u, nil
}

// IssueToken signs a bearer token carrying the user's id and role.
func (a *Authenticator) IssueToken(u *User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		UserID: u.ID,
		Role:   u.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.secret))
	if err != nil {
		return "", fmt.Errorf("users: sign token: %w", err)
	}
	return token, nil
}
