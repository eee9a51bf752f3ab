package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/campus-rooms/internal/auth"
	"github.com/example/campus-rooms/internal/persistence"
)

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUserCredentials(ctx context.Context, id int64) (UserCredentials, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string, at time.Time) error
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID int64, role string) (auth.Token, error)
	Parse(token string) (*auth.Claims, error)
}

// TokenRevoker tracks tokens that were signed out before they expired.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// LoginParams carries the credentials presented at sign in.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult is returned after a successful sign in.
type LoginResult struct {
	User  User
	Token auth.Token
}

// AuthService coordinates sign in, sign out, and per-request authentication.
type AuthService struct {
	credentials    CredentialStore
	tokens         TokenIssuer
	revocations    TokenRevoker
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens TokenIssuer, revocations TokenRevoker, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(credentials, tokens, revocations, nil, nil, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with explicit password functions and logger.
func NewAuthServiceWithLogger(credentials CredentialStore, tokens TokenIssuer, revocations TokenRevoker, verify PasswordVerifier, hash PasswordHasher, now func() time.Time, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if hash == nil {
		hash = HashPassword
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials:    credentials,
		tokens:         tokens,
		revocations:    revocations,
		verifyPassword: verify,
		hashPassword:   hash,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Login validates credentials and issues a bearer token for an active user.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	if s == nil || s.credentials == nil || s.tokens == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}
	if !creds.User.Active() {
		err = ErrAccountDisabled
		return
	}

	var token auth.Token
	token, err = s.tokens.Issue(creds.User.ID, string(creds.User.Role))
	if err != nil {
		return
	}

	result = LoginResult{User: creds.User, Token: token}
	return
}

// Logout revokes a token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s == nil || s.tokens == nil {
		return fmt.Errorf("auth service not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "Logout", "token_present", trimmed != "")

	claims, err := s.tokens.Parse(trimmed)
	if err != nil {
		logger.WarnContext(ctx, "logout with invalid token", "error", err)
		return ErrUnauthenticated
	}
	if s.revocations == nil {
		return nil
	}

	until := s.now().Add(time.Minute)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, until); err != nil {
		logger.ErrorContext(ctx, "failed to revoke token", "error", err)
		return err
	}
	logger.InfoContext(ctx, "token revoked", "user_id", claims.UserID)
	return nil
}

// Authenticate verifies a bearer token and reloads the user behind it so
// role and status changes take effect on the next request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil || s.credentials == nil || s.tokens == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "Authenticate", "token_present", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "token rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "token accepted")
	}()

	if trimmed == "" {
		err = ErrUnauthenticated
		return
	}

	claims, parseErr := s.tokens.Parse(trimmed)
	if parseErr != nil {
		err = fmt.Errorf("%w: %v", ErrUnauthenticated, parseErr)
		return
	}

	if s.revocations != nil {
		var revoked bool
		revoked, err = s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return
		}
		if revoked {
			err = fmt.Errorf("%w: token revoked", ErrUnauthenticated)
			return
		}
	}

	var user User
	user, err = s.credentials.GetUser(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
		}
		return
	}
	if !user.Active() {
		err = ErrAccountDisabled
		return
	}

	principal = Principal{UserID: user.ID, Role: user.Role}
	return
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, principal Principal) (User, error) {
	if s == nil || s.credentials == nil {
		return User{}, fmt.Errorf("auth service not configured")
	}
	user, err := s.credentials.GetUser(ctx, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// ChangePassword replaces the caller's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, principal Principal, current, next string) (err error) {
	if s == nil || s.credentials == nil {
		return fmt.Errorf("auth service not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to change password", "password changed")
	}()

	vErr := validatePassword("newPassword", next)
	if current == "" {
		vErr.add("currentPassword", "current password is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	creds, err := s.credentials.GetUserCredentials(ctx, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if err = s.verifyPassword(creds.PasswordHash, current); err != nil {
		return NewValidationError("currentPassword", "current password is incorrect")
	}

	hash, err := s.hashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.credentials.UpdatePassword(ctx, principal.UserID, hash, s.now())
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
