// Package auth turns bearer tokens into user identities.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer   = "realblog-api"
	audience = "realblog-client"
)

// ErrInvalidToken is returned for any token that does not authenticate a user.
var ErrInvalidToken = errors.New("invalid or expired token")

// Authenticator resolves a bearer token to the id of the user it was issued for.
type Authenticator interface {
	Authenticate(token string) (uint, error)
}

// TokenIssuer mints tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
}

// JWTAuthenticator issues and verifies HS256 tokens carrying the user id in "sub".
type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTAuthenticator creates a JWT authenticator; ttl defaults to 72h.
func NewJWTAuthenticator(secret string, ttl time.Duration) *JWTAuthenticator {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &JWTAuthenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID.
func (a *JWTAuthenticator) Issue(userID uint) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates the token and returns its subject as a user id.
func (a *JWTAuthenticator) Authenticate(tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}
