package application

import (
	"context"

	"github.com/example/desk-booking/internal/persistence"
)

// AccessStore exposes the room grants the access resolver reads.
type AccessStore interface {
	GetRoomAccess(ctx context.Context, roomID, userID string) (persistence.RoomAccess, error)
	ListRoomAccessForUser(ctx context.Context, userID string) ([]persistence.RoomAccess, error)
}

// CellCatalog exposes room and cell lookups.
type CellCatalog interface {
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	GetCell(ctx context.Context, id string) (persistence.Cell, error)
	ListCells(ctx context.Context, roomID string) ([]persistence.Cell, error)
}

// UserDirectory exposes user lookups.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// BookingStore captures the reservation and fixed assignment persistence the
// engine needs. Implementations reject claim collisions with
// persistence.ErrCellSlotTaken and persistence.ErrUserDayTaken.
type BookingStore interface {
	persistence.ReservationRepository
	persistence.FixedAssignmentRepository
}

// DirectoryStore captures the directory persistence used for administration.
type DirectoryStore interface {
	persistence.UserRepository
	persistence.RoomRepository
	persistence.RoomAccessRepository
}
