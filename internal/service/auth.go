// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the identity providers:
//
//	AuthHandler (HTTP) → AuthService → GitHubProvider / local credentials
//	                                 ↘ identity.Hub (SignedIn / SignedOut)
//	                                 ↘ TokenService (session JWT)
//
// SIGN-IN SEQUENCE (both providers):
//  1. The provider authenticates the user and yields an identity.Identity.
//  2. AuthService publishes identity.SignedIn. The portal's subscriber
//     creates or refreshes the profile and seeds default preferences.
//  3. AuthService reads the profile back by UID and issues the session JWT.
//
// The service never sets cookies or reads requests; that is the handler's job.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/auth"
	"github.com/sakif/nexusmena/internal/identity"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/repository"
)

// errBadLogin is returned for unknown emails and wrong passwords alike so
// the response does not reveal which accounts exist.
var errBadLogin = apperror.Unauthorized("invalid email or password")

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	creds     repository.CredentialRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	hub       *identity.Hub
	mailer    auth.Mailer
	resetURL  string
	logger    *slog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithMailer sets how reset links are delivered and the page they point at.
// resetURL receives the token as a "token" query parameter.
func WithMailer(m auth.Mailer, resetURL string) AuthOption {
	return func(s *AuthService) {
		s.mailer = m
		s.resetURL = resetURL
	}
}

// NewAuthService wires the service. Without WithMailer reset links are
// logged through auth.LogMailer.
func NewAuthService(
	users repository.UserRepository,
	creds repository.CredentialRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	hub *identity.Hub,
	logger *slog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		users:     users,
		creds:     creds,
		tokens:    tokens,
		passwords: passwords,
		hub:       hub,
		mailer:    auth.LogMailer{Logger: logger},
		resetURL:  "/reset-password",
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AuthResult bundles the profile and the issued session JWT so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SessionTTL is the lifetime of issued session tokens.
func (s *AuthService) SessionTTL() int {
	return int(s.tokens.SessionTTL().Seconds())
}

// LoginOrRegisterGitHub signs in the GitHub user returned by the OAuth
// callback. First sign-in creates the profile.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	return s.signIn(ctx, ghUser.Identity(), "github")
}

// SignUp creates a local account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if len(name) > 100 {
		return nil, apperror.ValidationFailed("name", "name must be 100 characters or fewer")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("password must be %d to %d characters", auth.MinPasswordLength, auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	cred := &model.Credential{
		UID:          "local:" + xid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.creds.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "an account with this email already exists",
				Field:   "email",
			}
		}
		return nil, fmt.Errorf("service/auth: creating credential: %w", err)
	}

	return s.signIn(ctx, credentialIdentity(cred), "local")
}

// Login signs in a local account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	cred, err := s.creds.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadLogin
		}
		return nil, fmt.Errorf("service/auth: looking up credential: %w", err)
	}

	if err := s.passwords.Verify(cred.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("failed login", slog.String("uid", cred.UID))
			return nil, errBadLogin
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.signIn(ctx, credentialIdentity(cred), "local")
}

// Logout publishes SignedOut so in-flight work for the user is abandoned.
// There is no server-side session to destroy; the handler clears the cookie.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := s.hub.Publish(ctx, identity.SignedOut{UserID: userID}); err != nil {
		return fmt.Errorf("service/auth: publishing sign-out: %w", err)
	}
	return nil
}

// RequestPasswordReset emails a reset link if the address has a local
// account. It reports success either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	cred, err := s.creds.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Debug("password reset for unknown email")
			return nil
		}
		return fmt.Errorf("service/auth: looking up credential: %w", err)
	}

	token, err := s.tokens.GenerateReset(cred.UID)
	if err != nil {
		return fmt.Errorf("service/auth: generating reset token: %w", err)
	}
	link := s.resetURL + "?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, cred.Email, link); err != nil {
		return fmt.Errorf("service/auth: sending reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a token from the reset email.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	uid, err := s.tokens.ValidateReset(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return apperror.ValidationFailed("token", "reset link has expired")
		}
		return apperror.ValidationFailed("token", "reset link is invalid")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return apperror.ValidationFailed("password",
				fmt.Sprintf("password must be %d to %d characters", auth.MinPasswordLength, auth.MaxPasswordBytes))
		}
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.creds.UpdatePassword(ctx, uid, hash); err != nil {
		return fmt.Errorf("service/auth: updating password: %w", err)
	}
	s.logger.Info("password reset", slog.String("uid", uid))
	return nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a session JWT and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) signIn(ctx context.Context, id identity.Identity, provider string) (*AuthResult, error) {
	if err := s.hub.Publish(ctx, identity.SignedIn{Identity: id}); err != nil {
		return nil, fmt.Errorf("service/auth: publishing sign-in for %s: %w", id.UID, err)
	}

	user, err := s.users.GetUserByUID(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading profile for %s: %w", id.UID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", provider),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

func credentialIdentity(c *model.Credential) identity.Identity {
	return identity.Identity{UID: c.UID, DisplayName: c.Name, Email: c.Email}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return strings.ToLower(addr.Address), nil
}
