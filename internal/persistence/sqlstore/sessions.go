package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/desk-booking/internal/persistence"
)

// CreateSession stores a session.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO sessions (id, user_id, token_digest, expires_at, created_at, revoked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.TokenDigest, formatTime(session.ExpiresAt), formatTime(session.CreatedAt),
		formatOptionalTime(session.RevokedAt),
	)
	return s.mapError(err)
}

// GetSessionByDigest retrieves a session by the digest of its token.
func (s *Store) GetSessionByDigest(ctx context.Context, digest string) (persistence.Session, error) {
	var (
		session              persistence.Session
		expiresAt, createdAt string
		revokedAt            sql.NullString
	)
	row := s.queryRow(ctx, s.db,
		`SELECT id, user_id, token_digest, expires_at, created_at, revoked_at FROM sessions WHERE token_digest = ?`, digest)
	if err := row.Scan(&session.ID, &session.UserID, &session.TokenDigest, &expiresAt, &createdAt, &revokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, fmt.Errorf("scan session: %w", err)
	}

	var err error
	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseOptionalTime(revokedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// RevokeSession marks a session as revoked.
func (s *Store) RevokeSession(ctx context.Context, id string, revokedAt time.Time) error {
	res, err := s.exec(ctx, s.db, `UPDATE sessions SET revoked_at = ? WHERE id = ?`, formatTime(revokedAt), id)
	if err != nil {
		return s.mapError(err)
	}
	return expectAffected(res)
}

// DeleteExpiredSessions removes sessions that expired before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM sessions WHERE expires_at < ?`, formatTime(reference))
	if err != nil {
		return 0, s.mapError(err)
	}
	return res.RowsAffected()
}
