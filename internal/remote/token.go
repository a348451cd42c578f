// Package remote implements the backend-facing collaborators: per-entity
// HTTP repositories, the bearer-token source, and the connectivity monitor.
package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig holds the signing parameters for backend requests.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Subject  string
	TenantID string
	TTL      time.Duration
}

// TokenSource mints and caches short-lived HS256 bearer tokens for the
// backend API. Tokens are refreshed shortly before expiry.
type TokenSource struct {
	cfg TokenConfig

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource constructs a TokenSource.
func NewTokenSource(cfg TokenConfig) *TokenSource {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &TokenSource{cfg: cfg}
}

// Token returns a valid bearer token, minting a new one if the cached token
// is within a minute of expiry.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.token != "" && now.Add(time.Minute).Before(s.expires) {
		return s.token, nil
	}

	expires := now.Add(s.cfg.TTL)
	claims := jwt.MapClaims{
		"sub":       s.cfg.Subject,
		"tenant_id": s.cfg.TenantID,
		"scopes":    "workouts:write routines:write exercises:write",
		"iss":       s.cfg.Issuer,
		"iat":       now.Unix(),
		"exp":       expires.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}
