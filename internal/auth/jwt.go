package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"go.ember.chat/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoKey        = errors.New("jwt mode needs an hmac secret or a public key")
)

// JWTAuthenticator accepts signed tokens whose subject is a user id
type JWTAuthenticator struct {
	users  UserStore
	parser *jwt.Parser
	secret []byte
	pubKey *rsa.PublicKey
}

// NewJWTAuthenticator creates an authenticator for HS256 tokens when secret
// is set, RS256 tokens when pubKey is set. Exactly one must be provided.
func NewJWTAuthenticator(users UserStore, issuer, audience string, secret []byte, pubKey *rsa.PublicKey) (*JWTAuthenticator, error) {
	if (len(secret) == 0) == (pubKey == nil) {
		return nil, ErrNoKey
	}

	method := jwt.SigningMethodHS256.Alg()
	if pubKey != nil {
		method = jwt.SigningMethodRS256.Alg()
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{method}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTAuthenticator{
		users:  users,
		parser: jwt.NewParser(opts...),
		secret: secret,
		pubKey: pubKey,
	}, nil
}

// NewJWTAuthenticatorFromConfig loads the verification key named by cfg
func NewJWTAuthenticatorFromConfig(cfg Config, users UserStore) (*JWTAuthenticator, error) {
	if cfg.PublicKeyPath != "" {
		key, err := LoadPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded JWT public key", "path", cfg.PublicKeyPath, "keyId", KeyID(key))
		return NewJWTAuthenticator(users, cfg.Issuer, cfg.Audience, nil, key)
	}
	return NewJWTAuthenticator(users, cfg.Issuer, cfg.Audience, []byte(cfg.HMACSecret), nil)
}

// Authenticate implements Authenticator
func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	sub, err := a.ValidateToken(token)
	if err != nil {
		slog.Debug("Rejected socket token", "error", err)
		return nil, ErrInvalidSession
	}

	u, err := a.users.FetchUser(ctx, sub)
	if err != nil {
		return nil, lookupError(err)
	}
	return checkUser(u)
}

// ValidateToken checks the signature and registered claims and returns the subject
func (a *JWTAuthenticator) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, a.key)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (a *JWTAuthenticator) key(token *jwt.Token) (interface{}, error) {
	if a.pubKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return a.pubKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return a.secret, nil
}
