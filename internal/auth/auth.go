// Package auth resolves the token a client presents on the socket to the
// user it belongs to.
package auth

import (
	"context"
	"errors"
	"fmt"

	"go.ember.chat/internal/common/repository"
	"go.ember.chat/internal/models"
)

var (
	// ErrInvalidSession indicates the token does not resolve to a usable account
	ErrInvalidSession = errors.New("invalid session")

	// ErrOnboardingNotFinished indicates the account has not picked a username yet
	ErrOnboardingNotFinished = errors.New("onboarding not finished")
)

// Authenticator resolves a client token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// UserStore is the storage an authenticator reads from
type UserStore interface {
	FetchUser(ctx context.Context, id string) (*models.User, error)
	FetchUserBySessionToken(ctx context.Context, tokenHash string) (*models.User, error)
}

// Config selects and configures an authenticator
type Config struct {
	Mode string // "session" or "jwt"

	Issuer        string
	Audience      string
	HMACSecret    string
	PublicKeyPath string
}

// New creates the authenticator named by cfg.Mode
func New(cfg Config, users UserStore) (Authenticator, error) {
	switch cfg.Mode {
	case "", "session":
		return NewSessionAuthenticator(users), nil
	case "jwt":
		return NewJWTAuthenticatorFromConfig(cfg, users)
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
}

// checkUser rejects accounts that may not open a session
func checkUser(u *models.User) (*models.User, error) {
	if u.HasFlag(models.UserFlagSuspended) || u.HasFlag(models.UserFlagDeleted) || u.HasFlag(models.UserFlagBanned) {
		return nil, ErrInvalidSession
	}
	if u.Username == "" {
		return nil, ErrOnboardingNotFinished
	}
	return u, nil
}

// lookupError maps a storage failure to ErrInvalidSession when the entity is missing
func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidSession
	}
	return fmt.Errorf("failed to load user: %w", err)
}
