package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/desk-booking/internal/persistence"
)

// CreateRoom stores a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO rooms (id, name, grid_rows, grid_cols, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.GridRows, room.GridCols, formatTime(room.CreatedAt), formatTime(room.UpdatedAt),
	)
	return s.mapError(err)
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := s.queryRow(ctx, s.db, `SELECT id, name, grid_rows, grid_cols, created_at, updated_at FROM rooms WHERE id = ?`, id)
	return scanRoom(row)
}

// ListRooms returns rooms ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, grid_rows, grid_cols, created_at, updated_at FROM rooms ORDER BY name, id`)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		createdAt, updatedAt string
	)
	if err := row.Scan(&room.ID, &room.Name, &room.GridRows, &room.GridCols, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Room{}, persistence.ErrNotFound
		}
		return persistence.Room{}, fmt.Errorf("scan room: %w", err)
	}
	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

const cellColumns = `id, room_id, row_index, col_index, cell_type, label, created_at`

// CreateCell stores a cell.
func (s *Store) CreateCell(ctx context.Context, cell persistence.Cell) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO room_cells (`+cellColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cell.ID, cell.RoomID, cell.Row, cell.Col, cell.Type, nullableString(cell.Label), formatTime(cell.CreatedAt),
	)
	return s.mapError(err)
}

// GetCell retrieves a cell by ID.
func (s *Store) GetCell(ctx context.Context, id string) (persistence.Cell, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+cellColumns+` FROM room_cells WHERE id = ?`, id)
	return scanCell(row)
}

// ListCells returns the cells of a room in row-major order.
func (s *Store) ListCells(ctx context.Context, roomID string) ([]persistence.Cell, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+cellColumns+` FROM room_cells WHERE room_id = ? ORDER BY row_index, col_index`, roomID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var cells []persistence.Cell
	for rows.Next() {
		cell, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

func scanCell(row rowScanner) (persistence.Cell, error) {
	var (
		cell      persistence.Cell
		label     sql.NullString
		createdAt string
	)
	if err := row.Scan(&cell.ID, &cell.RoomID, &cell.Row, &cell.Col, &cell.Type, &label, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Cell{}, persistence.ErrNotFound
		}
		return persistence.Cell{}, fmt.Errorf("scan cell: %w", err)
	}
	cell.Label = optionalString(label)
	var err error
	if cell.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Cell{}, err
	}
	return cell, nil
}

// UpsertRoomAccess creates or updates a grant.
func (s *Store) UpsertRoomAccess(ctx context.Context, access persistence.RoomAccess) error {
	_, err := s.exec(ctx, s.db, s.d.upsertAccess(), access.RoomID, access.UserID, access.Role, formatTime(access.CreatedAt))
	return s.mapError(err)
}

// DeleteRoomAccess removes a grant.
func (s *Store) DeleteRoomAccess(ctx context.Context, roomID, userID string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM room_access WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return s.mapError(err)
	}
	return expectAffected(res)
}

// GetRoomAccess retrieves the grant of a user on a room.
func (s *Store) GetRoomAccess(ctx context.Context, roomID, userID string) (persistence.RoomAccess, error) {
	row := s.queryRow(ctx, s.db, `SELECT room_id, user_id, role, created_at FROM room_access WHERE room_id = ? AND user_id = ?`, roomID, userID)
	return scanAccess(row)
}

// ListRoomAccessForUser returns all grants of a user ordered by room.
func (s *Store) ListRoomAccessForUser(ctx context.Context, userID string) ([]persistence.RoomAccess, error) {
	rows, err := s.query(ctx, s.db, `SELECT room_id, user_id, role, created_at FROM room_access WHERE user_id = ? ORDER BY room_id`, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	var grants []persistence.RoomAccess
	for rows.Next() {
		grant, err := scanAccess(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func scanAccess(row rowScanner) (persistence.RoomAccess, error) {
	var (
		access    persistence.RoomAccess
		createdAt string
	)
	if err := row.Scan(&access.RoomID, &access.UserID, &access.Role, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.RoomAccess{}, persistence.ErrNotFound
		}
		return persistence.RoomAccess{}, fmt.Errorf("scan room access: %w", err)
	}
	var err error
	if access.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.RoomAccess{}, err
	}
	return access, nil
}
