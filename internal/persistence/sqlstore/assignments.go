package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

const assignmentColumns = `id, cell_id, room_id, assigned_to, date_start, date_end, created_by, created_at, updated_at`

// GetFixedAssignment retrieves a fixed assignment by ID.
func (s *Store) GetFixedAssignment(ctx context.Context, id string) (persistence.FixedAssignment, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+assignmentColumns+` FROM fixed_assignments WHERE id = ?`, id)
	return scanAssignment(row)
}

// ListFixedAssignments returns matching assignments ordered by start date.
func (s *Store) ListFixedAssignments(ctx context.Context, filter persistence.AssignmentFilter) ([]persistence.FixedAssignment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CellID != "" {
		conds = append(conds, "cell_id = ?")
		args = append(args, filter.CellID)
	}
	if len(filter.RoomIDs) > 0 {
		conds = append(conds, "room_id IN ("+placeholders(len(filter.RoomIDs))+")")
		for _, id := range filter.RoomIDs {
			args = append(args, id)
		}
	}
	if filter.UserID != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.UserID)
	}
	if filter.Overlapping != nil {
		conds = append(conds, "date_start <= ? AND date_end >= ?")
		args = append(args, filter.Overlapping.End.String(), filter.Overlapping.Start.String())
	}

	query := `SELECT ` + assignmentColumns + ` FROM fixed_assignments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date_start, id`

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.FixedAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateFixedAssignment inserts an assignment and its claims atomically.
func (s *Store) CreateFixedAssignment(ctx context.Context, assignment persistence.FixedAssignment, claims scheduler.Claims) error {
	return s.withTransaction(ctx, func(q querier) error {
		if err := s.insertAssignment(ctx, q, assignment); err != nil {
			return err
		}
		return s.insertClaims(ctx, q, claims)
	})
}

func (s *Store) insertAssignment(ctx context.Context, q querier, a persistence.FixedAssignment) error {
	_, err := s.exec(ctx, q,
		`INSERT INTO fixed_assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CellID, a.RoomID, a.AssignedTo, a.DateStart.String(), a.DateEnd.String(), a.CreatedBy,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert fixed assignment %s: %w", a.ID, s.mapError(err))
	}
	return nil
}

// ReleaseFixedAssignmentDay narrows, splits or removes an assignment. Every
// statement is guarded on the expected range so a concurrent release of the
// same assignment fails with ErrStaleWrite instead of clobbering it.
func (s *Store) ReleaseFixedAssignmentDay(ctx context.Context, release persistence.DayRelease) error {
	return s.withTransaction(ctx, func(q querier) error {
		var (
			res sql.Result
			err error
		)
		expectedStart, expectedEnd := release.Expected.Start.String(), release.Expected.End.String()
		if release.Remove {
			res, err = s.exec(ctx, q,
				`DELETE FROM fixed_assignments WHERE id = ? AND date_start = ? AND date_end = ?`,
				release.AssignmentID, expectedStart, expectedEnd,
			)
		} else {
			res, err = s.exec(ctx, q,
				`UPDATE fixed_assignments SET date_start = ?, date_end = ?, updated_at = ?
				WHERE id = ? AND date_start = ? AND date_end = ?`,
				release.Keep.Start.String(), release.Keep.End.String(), formatTime(release.UpdatedAt),
				release.AssignmentID, expectedStart, expectedEnd,
			)
		}
		if err != nil {
			return s.mapError(err)
		}
		if err := expectAffected(res); err != nil {
			row := s.queryRow(ctx, q, `SELECT `+assignmentColumns+` FROM fixed_assignments WHERE id = ?`, release.AssignmentID)
			if _, getErr := scanAssignment(row); getErr != nil {
				return getErr
			}
			return fmt.Errorf("%w: fixed assignment %s changed", persistence.ErrStaleWrite, release.AssignmentID)
		}

		day := release.Day
		if err := s.releaseClaims(ctx, q, release.AssignmentID, &day); err != nil {
			return err
		}
		if release.Split != nil {
			if err := s.insertAssignment(ctx, q, *release.Split); err != nil {
				return err
			}
			if err := s.repointClaims(ctx, q, release.AssignmentID, release.Split.ID, day); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteFixedAssignment removes an assignment and every claim it holds.
func (s *Store) DeleteFixedAssignment(ctx context.Context, id string) error {
	return s.withTransaction(ctx, func(q querier) error {
		res, err := s.exec(ctx, q, `DELETE FROM fixed_assignments WHERE id = ?`, id)
		if err != nil {
			return s.mapError(err)
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return s.releaseClaims(ctx, q, id, nil)
	})
}

func scanAssignment(row rowScanner) (persistence.FixedAssignment, error) {
	var (
		a                    persistence.FixedAssignment
		start, end           string
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.CellID, &a.RoomID, &a.AssignedTo, &start, &end, &a.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.FixedAssignment{}, persistence.ErrNotFound
		}
		return persistence.FixedAssignment{}, fmt.Errorf("scan fixed assignment: %w", err)
	}
	if a.DateStart, err = parseDate(start); err != nil {
		return persistence.FixedAssignment{}, err
	}
	if a.DateEnd, err = parseDate(end); err != nil {
		return persistence.FixedAssignment{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.FixedAssignment{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.FixedAssignment{}, err
	}
	return a, nil
}
