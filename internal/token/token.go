// Package token issues and verifies the signed access and refresh tokens
// used by the session layer.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Kind selects which secret and lifetime a token uses.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of both token kinds. Email is only set on access tokens.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Kind   Kind   `json:"kind"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         clockwork.Clock
}

func NewManager(cfg Config, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		clock:         clock,
	}
}

func (m *Manager) IssueAccessToken(userID, email string) (string, error) {
	return m.issue(Claims{UserID: userID, Email: email, Kind: KindAccess}, m.accessSecret, m.accessTTL)
}

func (m *Manager) IssueRefreshToken(userID string) (string, error) {
	return m.issue(Claims{UserID: userID, Kind: KindRefresh}, m.refreshSecret, m.refreshTTL)
}

// Verify checks signature, expiry and kind. Any failure is ErrInvalidToken.
func (m *Manager) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret := m.accessSecret
	if kind == KindRefresh {
		secret = m.refreshSecret
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != kind || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (m *Manager) issue(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := m.clock.Now()
	// jti keeps two tokens minted in the same second distinct; rotation relies on it.
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Kind, err)
	}
	return signed, nil
}
