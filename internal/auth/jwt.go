// Package auth issues and checks the portal's credentials.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A provider authenticates the user: GitHub OAuth (oauth.go) or a local
//     email + password account (password.go).
//  2. The auth service publishes identity.SignedIn so the profile exists.
//  3. The server issues a session JWT and stores it in an HttpOnly cookie.
//     Non-browser clients (the CLI, scripts) send it as a Bearer token.
//  4. Middleware validates the JWT on each request and puts the userID in
//     the request context.
//
// TOKEN PURPOSES:
// One HMAC secret signs two kinds of token, told apart by the audience claim:
//
//	session         → sub = internal user ID, lives for the session TTL
//	password-reset  → sub = provider UID, lives for ResetTTL
//
// A reset token is never accepted as a session and vice versa.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "nexusmena"

const (
	// DefaultSessionTTL applies when NewTokenService is given no TTL.
	DefaultSessionTTL = 24 * time.Hour
	// ResetTTL bounds how long an emailed reset link stays usable.
	ResetTTL = 30 * time.Minute
)

// Purpose is stored in the token's audience claim.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "password-reset"
)

// ErrTokenExpired is returned by Validate for expired tokens so callers can
// word the message differently ("your link has expired").
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewTokenService returns a TokenService signing with secret. The secret must
// be at least 16 characters. A non-positive sessionTTL selects DefaultSessionTTL.
func NewTokenService(secret string, sessionTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), sessionTTL: sessionTTL, now: time.Now}, nil
}

// SessionTTL is how long Generate's tokens live. Handlers use it for the
// cookie's MaxAge.
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates a session token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, PurposeSession, s.sessionTTL)
}

// GenerateWithDuration creates a session token with a custom lifetime.
// A negative duration yields an already expired token, which tests use.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.sign(userID, PurposeSession, d)
}

// GenerateReset creates a password-reset token for the account with the given UID.
func (s *TokenService) GenerateReset(uid string) (string, error) {
	return s.sign(uid, PurposeReset, ResetTTL)
}

// Validate checks a session token and returns the userID it carries.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	return s.parse(tokenStr, PurposeSession)
}

// ValidateReset checks a reset token and returns the account UID.
func (s *TokenService) ValidateReset(tokenStr string) (string, error) {
	return s.parse(tokenStr, PurposeReset)
}

func (s *TokenService) sign(subject string, purpose Purpose, d time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// parse validates signature, algorithm, issuer, audience and expiry.
//
// The keyfunc double-checks the algorithm family. WithValidMethods already
// rejects "none" and RS256 tokens, but the explicit check keeps the
// algorithm-confusion guard visible where the key is handed out.
func (s *TokenService) parse(tokenStr string, purpose Purpose) (string, error) {
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
		jwt.WithAudience(string(purpose)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
