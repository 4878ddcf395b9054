package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"

	"go.ember.chat/internal/models"
)

// SessionAuthenticator accepts the opaque session tokens issued at login.
// Only the token hash is stored, so lookups hash first.
type SessionAuthenticator struct {
	users UserStore
}

// NewSessionAuthenticator creates a session token authenticator
func NewSessionAuthenticator(users UserStore) *SessionAuthenticator {
	return &SessionAuthenticator{users: users}
}

// Authenticate implements Authenticator
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	u, err := a.users.FetchUserBySessionToken(ctx, HashToken(token))
	if err != nil {
		return nil, lookupError(err)
	}
	return checkUser(u)
}

// HashToken creates a SHA-256 hash of a token for storage
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
