// Package session issues and verifies the bearer tokens clients keep after login.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshBufferSeconds is how early a token counts as expired, so clients refresh
// before the server starts rejecting it.
const RefreshBufferSeconds = 300

var ErrInvalidToken = errors.New("invalid session token")

type Claims struct {
	UserID string `json:"uid"`
	OpenID string `json:"oid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, issuer: "doin-challenge", now: time.Now}
}

// Issue signs a token for the user and returns it with its expiry.
func (m *Manager) Issue(userID, openID, role string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		UserID: userID,
		OpenID: openID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies the signature, issuer and expiry.
func (m *Manager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether a token expiring at expiresAt should be treated as expired at now.
// Tokens inside the refresh buffer count as expired.
func IsExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt.Add(-RefreshBufferSeconds * time.Second))
}

// NeedsRefresh applies IsExpired to a parsed token.
func (m *Manager) NeedsRefresh(c *Claims) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return IsExpired(c.ExpiresAt.Time, m.now())
}
