// Package auth issues and checks session tokens, hashes passwords and talks
// to GitHub for OAuth login.
//
// SESSION FLOW:
//  1. The user logs in (GitHub OAuth or email/password).
//  2. The server issues a signed JWT and stores it in an HttpOnly cookie.
//  3. RequireAuth reads the cookie (or a Bearer header), validates the JWT
//     and puts the user ID in the request context.
//
// Tokens are stateless: the "sub" claim carries the user ID and the HMAC
// signature proves the server issued it. Logging out clears the cookie.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/snippet-vault/internal/clock"
)

const (
	issuer = "snippet-vault"

	// SessionLifetime is how long a login lasts before the user must sign in
	// again. The cookie MaxAge matches it.
	SessionLifetime = 7 * 24 * time.Hour

	minSecretLen = 16
)

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	clock  clock.Clock
}

// NewTokenService creates a TokenService. The secret should be at least
// 32 bytes of random data in production: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, c clock.Clock) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLen)
	}
	if c == nil {
		c = clock.Real{}
	}
	return &TokenService{secret: []byte(secret), clock: c}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a session token for userID valid for SessionLifetime.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionLifetime)
}

// GenerateWithDuration issues a token with a custom lifetime.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a subject")
	}
	now := s.clock.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, algorithm, issuer and expiry, and returns the
// user ID from the "sub" claim.
//
// Restricting the accepted methods to HS256 blocks the "alg: none" and
// RS/HS confusion attacks.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
