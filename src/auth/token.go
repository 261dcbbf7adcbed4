// Package auth manages the signed JWT used to authenticate against the Cube API.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSigning indicates the configured secret could not produce a signed token.
var ErrSigning = errors.New("token signing failed")

// DefaultTokenTTL is how long a generated token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// TokenManager holds a single signed token and regenerates it lazily once it
// expires. Safe for concurrent use.
type TokenManager struct {
	secret []byte
	claims map[string]any
	ttl    time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenManager creates a token manager signing with the given secret.
// The claims map is merged into every token alongside the standard iat/exp
// claims.
func NewTokenManager(secret string, claims map[string]any) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		claims: claims,
		ttl:    DefaultTokenTTL,
	}
}

// NewTokenManagerTTL is NewTokenManager with an explicit expiry window.
func NewTokenManagerTTL(secret string, claims map[string]any, ttl time.Duration) *TokenManager {
	m := NewTokenManager(secret, claims)
	m.ttl = ttl
	return m
}

// Token returns the held token, generating a new one if none exists or the
// held one has expired.
func (m *TokenManager) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.expiresAt) {
		return m.token, nil
	}
	return m.generate()
}

// Refresh discards the held token and generates a fresh one. Used when the
// remote API rejects a token that has not yet hit its local expiry.
func (m *TokenManager) Refresh() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generate()
}

// generate signs a new token and replaces the held one. Caller must hold mu.
func (m *TokenManager) generate() (string, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)

	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	for k, v := range m.claims {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}

	m.token = signed
	m.expiresAt = expiresAt
	return signed, nil
}
