// Package session gives every playground visitor their own executor.
//
// SESSION FLOW OVERVIEW:
//  1. A browser makes its first request without a session cookie
//  2. Ensure mints a session ID (xid), signs it into a JWT, and sets the
//     playground_session cookie
//  3. Later requests carry the cookie; Ensure verifies it and puts the
//     session ID in the request context
//  4. Handlers ask the Registry for that session's executor, creating it on
//     first use
//  5. Sessions idle past the timeout are evicted and their executors closed
//
// WHY SIGN AN ANONYMOUS ID?
// There are no accounts, but the executor behind a session holds that
// visitor's event log. A bare random ID in a cookie could be swapped for
// someone else's; a signed one can only come from this server.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"<session id>","iss":"jsmemes","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "jsmemes"

// TokenService signs and verifies session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. Tokens it issues expire after ttl.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("session: secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("session: token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// RandomSecret returns a fresh 32-byte hex secret. Sessions signed with it
// do not survive a restart.
func RandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Generate signs a token for sessionID with the configured lifetime.
func (s *TokenService) Generate(sessionID string) (string, error) {
	return s.GenerateWithDuration(sessionID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Used in tests.
func (s *TokenService) GenerateWithDuration(sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("session: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token and returns the session ID it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired
//   - Issuer is "jsmemes"
//   - Algorithm is HS256 (no "none", no algorithm confusion)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("session: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("session: token expired")
		}
		return "", fmt.Errorf("session: invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("session: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("session: token has no subject")
	}
	return c.Subject, nil
}
