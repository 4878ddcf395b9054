package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go.ember.chat/internal/models"
	"go.ember.chat/internal/storage"
)

func users() *storage.MemoryStorage {
	s := storage.NewMemoryStorage()
	s.PutUser(models.User{ID: "A", Username: "alice"})
	s.PutUser(models.User{ID: "B", Username: "bob", Flags: models.UserFlagBanned})
	s.PutUser(models.User{ID: "C"})
	s.PutSession(models.Session{ID: "s1", UserID: "A", TokenHash: HashToken("token-a")})
	s.PutSession(models.Session{ID: "s2", UserID: "B", TokenHash: HashToken("token-b")})
	s.PutSession(models.Session{ID: "s3", UserID: "C", TokenHash: HashToken("token-c")})
	s.PutSession(models.Session{ID: "s4", UserID: "gone", TokenHash: HashToken("token-gone")})
	return s
}

func TestHashToken(t *testing.T) {
	if HashToken("x") != HashToken("x") {
		t.Error("Expected hashing to be deterministic")
	}
	if HashToken("x") == HashToken("y") {
		t.Error("Expected different tokens to hash differently")
	}
	if got := len(HashToken("x")); got != 43 {
		t.Errorf("Expected 43 character hash, got %d", got)
	}
}

func TestSessionAuthenticator(t *testing.T) {
	a := NewSessionAuthenticator(users())

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantErr error
	}{
		{"valid", "token-a", "A", nil},
		{"banned", "token-b", "", ErrInvalidSession},
		{"no username", "token-c", "", ErrOnboardingNotFinished},
		{"unknown token", "nope", "", ErrInvalidSession},
		{"missing user", "token-gone", "", ErrInvalidSession},
		{"empty", "", "", ErrInvalidSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := a.Authenticate(context.Background(), tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && u.ID != tt.wantID {
				t.Errorf("Expected user %s, got %s", tt.wantID, u.ID)
			}
		})
	}
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func claims(sub string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    "ember",
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func TestJWTAuthenticator_HMAC(t *testing.T) {
	secret := []byte("shh")
	a, err := NewJWTAuthenticator(users(), "ember", "", secret, nil)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator failed: %v", err)
	}
	ctx := context.Background()

	u, err := a.Authenticate(ctx, sign(t, jwt.SigningMethodHS256, secret, claims("A", time.Hour)))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if u.ID != "A" {
		t.Errorf("Expected user A, got %s", u.ID)
	}

	if _, err := a.ValidateToken(sign(t, jwt.SigningMethodHS256, secret, claims("A", -time.Minute))); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}

	wrongIssuer := claims("A", time.Hour)
	wrongIssuer.Issuer = "elsewhere"
	if _, err := a.ValidateToken(sign(t, jwt.SigningMethodHS256, secret, wrongIssuer)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for issuer, got %v", err)
	}

	if _, err := a.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte("other"), claims("A", time.Hour))); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for signature, got %v", err)
	}

	if _, err := a.Authenticate(ctx, sign(t, jwt.SigningMethodHS256, secret, claims("B", time.Hour))); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected banned user to be rejected, got %v", err)
	}

	if _, err := a.Authenticate(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Expected ErrInvalidSession, got %v", err)
	}
}

func TestJWTAuthenticator_RSA(t *testing.T) {
	dir := t.TempDir()
	priv, err := GenerateKeyPair(dir)
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	a, err := New(Config{Mode: "jwt", Issuer: "ember", PublicKeyPath: filepath.Join(dir, "public.pem")}, users())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	u, err := a.Authenticate(context.Background(), sign(t, jwt.SigningMethodRS256, priv, claims("A", time.Hour)))
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if u.ID != "A" {
		t.Errorf("Expected user A, got %s", u.ID)
	}

	// An HMAC token signed with the public key bytes must not pass
	jwtAuth := a.(*JWTAuthenticator)
	if _, err := jwtAuth.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte("public"), claims("A", time.Hour))); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for algorithm, got %v", err)
	}
}

func TestNew(t *testing.T) {
	if a, err := New(Config{}, users()); err != nil {
		t.Fatalf("New failed: %v", err)
	} else if _, ok := a.(*SessionAuthenticator); !ok {
		t.Errorf("Expected SessionAuthenticator by default, got %T", a)
	}

	if _, err := New(Config{Mode: "jwt"}, users()); !errors.Is(err, ErrNoKey) {
		t.Errorf("Expected ErrNoKey, got %v", err)
	}

	if _, err := New(Config{Mode: "ldap"}, users()); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	if _, err := ParsePublicKey([]byte("garbage")); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("Expected ErrInvalidKeyFormat, got %v", err)
	}
}
