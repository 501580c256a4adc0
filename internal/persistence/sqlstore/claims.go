package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// insertClaims writes every claim inside q. A key collision is reported as
// ErrCellSlotTaken or ErrUserDayTaken depending on the table, whatever text the
// driver used to name the key.
func (s *Store) insertClaims(ctx context.Context, q querier, claims scheduler.Claims) error {
	for _, c := range claims.Cells {
		_, err := s.exec(ctx, q,
			`INSERT INTO cell_day_claims (cell_id, claim_date, half, owner_kind, owner_id) VALUES (?, ?, ?, ?, ?)`,
			c.CellID, c.Day.String(), string(c.Half), string(c.OwnerKind), c.OwnerID,
		)
		if err != nil {
			return s.claimError(err, persistence.ErrCellSlotTaken, fmt.Sprintf("cell %s on %s %s", c.CellID, c.Day, c.Half))
		}
	}
	for _, c := range claims.Users {
		_, err := s.exec(ctx, q,
			`INSERT INTO user_day_claims (user_id, claim_date, owner_kind, owner_id) VALUES (?, ?, ?, ?)`,
			c.UserID, c.Day.String(), string(c.OwnerKind), c.OwnerID,
		)
		if err != nil {
			return s.claimError(err, persistence.ErrUserDayTaken, fmt.Sprintf("user %s on %s", c.UserID, c.Day))
		}
	}
	return nil
}

func (s *Store) claimError(err, taken error, what string) error {
	mapped := s.mapError(err)
	if errors.Is(mapped, persistence.ErrDuplicate) || errors.Is(mapped, persistence.ErrCellSlotTaken) || errors.Is(mapped, persistence.ErrUserDayTaken) {
		return fmt.Errorf("%w: %s", taken, what)
	}
	return mapped
}

// releaseClaims deletes the claims owned by ownerID, only on day when given.
func (s *Store) releaseClaims(ctx context.Context, q querier, ownerID string, day *scheduler.Date) error {
	for _, table := range []string{"cell_day_claims", "user_day_claims"} {
		query := `DELETE FROM ` + table + ` WHERE owner_id = ?`
		args := []any{ownerID}
		if day != nil {
			query += ` AND claim_date = ?`
			args = append(args, day.String())
		}
		if _, err := s.exec(ctx, q, query, args...); err != nil {
			return s.mapError(err)
		}
	}
	return nil
}

// repointClaims hands the claims of from after the given day over to to.
func (s *Store) repointClaims(ctx context.Context, q querier, from, to string, after scheduler.Date) error {
	for _, table := range []string{"cell_day_claims", "user_day_claims"} {
		_, err := s.exec(ctx, q,
			`UPDATE `+table+` SET owner_id = ? WHERE owner_id = ? AND claim_date > ?`,
			to, from, after.String(),
		)
		if err != nil {
			return s.mapError(err)
		}
	}
	return nil
}
