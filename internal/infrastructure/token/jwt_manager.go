package token

import (
	"errors"
	"time"

	domain "nailbliss/session/internal/domain/session"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid means a session access token cannot be validated.
var ErrTokenInvalid = errors.New("token invalid or expired")

// JWTManager issues and reads session access tokens.
// Without a secret it decodes tokens without verifying the signature; the
// auth service remains the authority on every request.
type JWTManager struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	nowFunc    func() time.Time
}

// NewJWTManager constructs a manager with the provided secret and expiration.
func NewJWTManager(secret string, expiration time.Duration, issuer string) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
		nowFunc:    time.Now,
	}
}

// Claims mirrors the claims a GoTrue-compatible service puts in access tokens.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the backend identity carried by the claims.
func (c *Claims) Identity() *domain.Identity {
	return &domain.Identity{
		ID:       c.Subject,
		Email:    c.Email,
		Metadata: c.UserMetadata,
	}
}

// Generate creates a signed access token for the identity.
func (m *JWTManager) Generate(identity domain.Identity) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is required to issue tokens")
	}
	now := m.nowFunc().UTC()
	expiresAt := now.Add(m.expiration)
	claims := Claims{
		Email:        identity.Email,
		Role:         "authenticated",
		UserMetadata: identity.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse reads the token claims, verifying the signature when a secret is
// configured. Expired tokens and tokens without a subject are rejected.
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if len(m.secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, errors.Join(ErrTokenInvalid, err)
		}
		if claims.ExpiresAt != nil && !claims.ExpiresAt.After(m.nowFunc()) {
			return nil, ErrTokenInvalid
		}
	} else {
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return m.secret, nil
		}, jwt.WithTimeFunc(m.nowFunc))
		if err != nil {
			return nil, errors.Join(ErrTokenInvalid, err)
		}
		if !token.Valid {
			return nil, ErrTokenInvalid
		}
	}

	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
