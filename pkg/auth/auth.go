// Package auth issues and verifies signed tokens naming the user an
// editing request acts for.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Issuer is the iss claim of every token
const Issuer = "msedit"

// Tokens signs and verifies HS256 tokens whose subject is the user
type Tokens struct {
	key []byte
	ttl time.Duration
}

// NewTokens creates a token service. Issued tokens expire after ttl.
func NewTokens(key []byte, ttl time.Duration) (*Tokens, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("token key must be at least 16 bytes, got %d", len(key))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %v", ttl)
	}
	return &Tokens{key: key, ttl: ttl}, nil
}

// Issue returns a token for user
func (t *Tokens) Issue(user string) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", fmt.Errorf("issue token: blank user")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Verify checks token and returns the user it names
func (t *Tokens) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	user, err := parsed.Claims.GetSubject()
	if err != nil || user == "" {
		return "", ErrInvalidToken
	}
	return user, nil
}

// FromHeader verifies the bearer token of an Authorization header value
func (t *Tokens) FromHeader(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return t.Verify(strings.TrimSpace(token))
}
