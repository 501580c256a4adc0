package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/example/desk-booking/internal/persistence"
)

// AuthService resolves opaque session tokens into principals. Credentials are
// verified elsewhere; this service only issues, validates and revokes
// sessions. Tokens are never stored: the store keeps a keyed BLAKE2b digest.
type AuthService struct {
	sessions       persistence.SessionRepository
	users          UserDirectory
	key            []byte
	tokenGenerator func() string
	idGenerator    func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(sessions persistence.SessionRepository, users UserDirectory, secret []byte, tokenGenerator, idGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(sessions, users, secret, tokenGenerator, idGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(sessions persistence.SessionRepository, users UserDirectory, secret []byte, tokenGenerator, idGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	key := secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &AuthService{
		sessions:       sessions,
		users:          users,
		key:            key,
		tokenGenerator: tokenGenerator,
		idGenerator:    idGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Digest returns the keyed digest under which a token is stored.
func (s *AuthService) Digest(token string) (string, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return "", fmt.Errorf("session digest: %w", err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IssueSession creates a session for an active user and returns its token.
// The token is only available in the returned value.
func (s *AuthService) IssueSession(ctx context.Context, userID string) (result IssuedSession, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil || s.users == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "IssueSession", "user_id", userID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "session issue failed", err)
			return
		}
		logger.InfoContext(ctx, "session issued", "session_id", result.ID, "expires_at", result.ExpiresAt)
	}()

	var user persistence.User
	if user, err = s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}
	if !user.Active {
		err = fieldError("user_id", "user is inactive")
		return
	}

	token := s.tokenGenerator()
	if token == "" {
		err = fmt.Errorf("token generator returned an empty token")
		return
	}
	var digest string
	if digest, err = s.Digest(token); err != nil {
		return
	}

	now := s.now()
	if _, err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return
	}
	session := persistence.Session{
		ID:          s.idGenerator(),
		UserID:      user.ID,
		TokenDigest: digest,
		ExpiresAt:   now.Add(s.sessionTTL),
		CreatedAt:   now,
	}
	if err = s.sessions.CreateSession(ctx, session); err != nil {
		return
	}

	result = IssuedSession{ID: session.ID, UserID: user.ID, Token: token, ExpiresAt: session.ExpiresAt}
	return
}

// ValidateSession verifies that the token belongs to a live session of an
// active user and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil || s.users == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "session validation failed", err)
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrUnauthenticated
		return
	}

	var digest string
	if digest, err = s.Digest(trimmed); err != nil {
		return
	}
	var session persistence.Session
	if session, err = s.sessions.GetSessionByDigest(ctx, digest); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUnauthenticated
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var user persistence.User
	if user, err = s.users.GetUser(ctx, session.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUnauthenticated
		}
		return
	}
	if !user.Active {
		err = ErrUnauthenticated
		return
	}

	principal = Principal{UserID: user.ID, Role: user.Role}
	return
}

// RevokeSession invalidates the session behind token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrUnauthenticated
	}

	logger := s.loggerWith(ctx, "RevokeSession")

	digest, err := s.Digest(trimmed)
	if err != nil {
		return err
	}
	session, err := s.sessions.GetSessionByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			logFailure(ctx, logger, "failed to revoke session", ErrUnauthenticated)
			return ErrUnauthenticated
		}
		logFailure(ctx, logger, "failed to revoke session", err)
		return err
	}
	if err := s.sessions.RevokeSession(ctx, session.ID, s.now()); err != nil {
		logFailure(ctx, logger, "failed to revoke session", err)
		return err
	}

	logger.InfoContext(ctx, "session revoked", "session_id", session.ID, "user_id", session.UserID)
	return nil
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	if s == nil || s.sessions == nil {
		return 0, fmt.Errorf("session repository not configured")
	}
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}
