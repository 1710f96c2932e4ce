// Package token mints and verifies the short-lived room tokens clients
// exchange before opening a chat websocket.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the room grant inside the JWT.
type Claims struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Issuer signs room tokens with an HS256 shared secret.
type Issuer struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
}

// NewIssuer creates an issuer. defaultTTL applies when a request omits one.
func NewIssuer(secret []byte, issuer string, defaultTTL time.Duration) *Issuer {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &Issuer{secret: secret, issuer: issuer, defaultTTL: defaultTTL}
}

// Issue signs a token granting identity access to room for ttl.
func (i *Issuer) Issue(room, identity string, ttl time.Duration) (string, error) {
	if room == "" {
		return "", errors.New("room is required")
	}
	if identity == "" {
		return "", errors.New("identity is required")
	}
	if ttl <= 0 {
		ttl = i.defaultTTL
	}

	now := time.Now()
	claims := Claims{
		Room:     room,
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses and validates a signed room token.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
