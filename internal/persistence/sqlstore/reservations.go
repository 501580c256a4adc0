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

const reservationColumns = `id, cell_id, room_id, user_id, date_start, date_end, time_segment, status,
	approved_by, approved_at, created_at, updated_at`

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return s.getReservation(ctx, s.db, id)
}

func (s *Store) getReservation(ctx context.Context, q querier, id string) (persistence.Reservation, error) {
	row := s.queryRow(ctx, q, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

// ListReservations returns matching reservations ordered by start date then creation.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
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
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.Overlapping != nil {
		conds = append(conds, "date_start <= ? AND date_end >= ?")
		args = append(args, filter.Overlapping.End.String(), filter.Overlapping.Start.String())
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date_start, created_at, id`

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]persistence.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateReservations inserts every write and its claims in one transaction.
func (s *Store) CreateReservations(ctx context.Context, writes []persistence.ReservationWrite) error {
	if len(writes) == 0 {
		return nil
	}
	return s.withTransaction(ctx, func(q querier) error {
		for _, w := range writes {
			r := w.Reservation
			_, err := s.exec(ctx, q,
				`INSERT INTO reservations (`+reservationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.CellID, r.RoomID, r.UserID, r.DateStart.String(), r.DateEnd.String(),
				string(r.Segment), string(r.Status), nullableString(r.ApprovedBy), formatOptionalTime(r.ApprovedAt),
				formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("insert reservation %s: %w", r.ID, s.mapError(err))
			}
			if err := s.insertClaims(ctx, q, w.Claims); err != nil {
				return err
			}
		}
		return nil
	})
}

// ChangeReservationStatus applies a status change guarded on the current
// status, releasing and acquiring claims in the same transaction.
func (s *Store) ChangeReservationStatus(ctx context.Context, change persistence.StatusChange) (persistence.Reservation, error) {
	var updated persistence.Reservation
	err := s.withTransaction(ctx, func(q querier) error {
		res, err := s.exec(ctx, q,
			`UPDATE reservations SET status = ?, approved_by = COALESCE(?, approved_by), approved_at = COALESCE(?, approved_at), updated_at = ?
			WHERE id = ? AND status = ?`,
			string(change.To), nullableString(change.ApprovedBy), formatOptionalTime(change.ApprovedAt), formatTime(change.UpdatedAt),
			change.ID, string(change.From),
		)
		if err != nil {
			return s.mapError(err)
		}
		if err := expectAffected(res); err != nil {
			current, getErr := s.getReservation(ctx, q, change.ID)
			if getErr != nil {
				return getErr
			}
			return &persistence.StaleStatusError{ReservationID: change.ID, Current: current.Status}
		}

		if change.Release {
			if err := s.releaseClaims(ctx, q, change.ID, nil); err != nil {
				return err
			}
		}
		if err := s.insertClaims(ctx, q, change.Acquire); err != nil {
			return err
		}

		updated, err = s.getReservation(ctx, q, change.ID)
		return err
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return updated, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		r                    persistence.Reservation
		start, end           string
		segment, status      string
		approvedBy           sql.NullString
		approvedAt           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.CellID, &r.RoomID, &r.UserID, &start, &end, &segment, &status,
		&approvedBy, &approvedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, fmt.Errorf("scan reservation: %w", err)
	}

	if r.DateStart, err = parseDate(start); err != nil {
		return persistence.Reservation{}, err
	}
	if r.DateEnd, err = parseDate(end); err != nil {
		return persistence.Reservation{}, err
	}
	r.Segment = scheduler.Segment(segment)
	r.Status = scheduler.Status(status)
	r.ApprovedBy = optionalString(approvedBy)
	if r.ApprovedAt, err = parseOptionalTime(approvedAt); err != nil {
		return persistence.Reservation{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return r, nil
}
