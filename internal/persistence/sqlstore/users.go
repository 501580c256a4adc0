package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/desk-booking/internal/persistence"
)

const userColumns = `id, email, display_name, role, active, created_at, updated_at`

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, strings.ToLower(user.Email), user.DisplayName, user.Role, boolToInt(user.Active),
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	return s.mapError(err)
}

// UpdateUser replaces the mutable fields of a user.
func (s *Store) UpdateUser(ctx context.Context, user persistence.User) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE users SET email = ?, display_name = ?, role = ?, active = ?, updated_at = ? WHERE id = ?`,
		strings.ToLower(user.Email), user.DisplayName, user.Role, boolToInt(user.Active), formatTime(user.UpdatedAt), user.ID,
	)
	if err != nil {
		return s.mapError(err)
	}
	return expectAffected(res)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.scanUser(row)
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
	return s.scanUser(row)
}

// ListUsers returns all users ordered by creation.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		active               int64
		createdAt, updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.Active = active != 0

	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
