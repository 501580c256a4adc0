package persistence

import (
	"context"
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// UserRepository exposes directory operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// RoomRepository exposes rooms and their cells.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	CreateCell(ctx context.Context, cell Cell) error
	GetCell(ctx context.Context, id string) (Cell, error)
	ListCells(ctx context.Context, roomID string) ([]Cell, error)
}

// RoomAccessRepository stores per-room grants.
type RoomAccessRepository interface {
	UpsertRoomAccess(ctx context.Context, access RoomAccess) error
	DeleteRoomAccess(ctx context.Context, roomID, userID string) error
	GetRoomAccess(ctx context.Context, roomID, userID string) (RoomAccess, error)
	ListRoomAccessForUser(ctx context.Context, userID string) ([]RoomAccess, error)
}

// ReservationFilter narrows reservation queries. Empty fields do not filter.
type ReservationFilter struct {
	CellID      string
	RoomIDs     []string
	UserID      string
	Statuses    []scheduler.Status
	Overlapping *scheduler.Range
}

// ReservationWrite is a reservation together with the claims it must hold.
type ReservationWrite struct {
	Reservation Reservation
	Claims      scheduler.Claims
}

// StatusChange moves a reservation from one status to another. The update only
// applies while the stored status still equals From.
type StatusChange struct {
	ID         string
	From       scheduler.Status
	To         scheduler.Status
	ApprovedBy *string
	ApprovedAt *time.Time
	UpdatedAt  time.Time
	// Acquire lists claims inserted alongside the change.
	Acquire scheduler.Claims
	// Release drops every claim owned by the reservation.
	Release bool
}

// ReservationRepository stores reservations and their claims.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	// CreateReservations inserts every write or none of them.
	CreateReservations(ctx context.Context, writes []ReservationWrite) error
	ChangeReservationStatus(ctx context.Context, change StatusChange) (Reservation, error)
}

// AssignmentFilter narrows fixed assignment queries. Empty fields do not filter.
type AssignmentFilter struct {
	CellID      string
	RoomIDs     []string
	UserID      string
	Overlapping *scheduler.Range
}

// DayRelease gives up one day of a fixed assignment. Expected guards against
// concurrent releases: the update applies only while the stored range still
// equals it.
type DayRelease struct {
	AssignmentID string
	Expected     scheduler.Range
	Day          scheduler.Date
	Remove       bool
	Keep         scheduler.Range
	Split        *FixedAssignment
	UpdatedAt    time.Time
}

// FixedAssignmentRepository stores fixed assignments and their claims.
type FixedAssignmentRepository interface {
	GetFixedAssignment(ctx context.Context, id string) (FixedAssignment, error)
	ListFixedAssignments(ctx context.Context, filter AssignmentFilter) ([]FixedAssignment, error)
	CreateFixedAssignment(ctx context.Context, assignment FixedAssignment, claims scheduler.Claims) error
	ReleaseFixedAssignmentDay(ctx context.Context, release DayRelease) error
	DeleteFixedAssignment(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByDigest(ctx context.Context, digest string) (Session, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// Store is the full set of repositories a backend provides.
type Store interface {
	UserRepository
	RoomRepository
	RoomAccessRepository
	ReservationRepository
	FixedAssignmentRepository
	SessionRepository
	Ping(ctx context.Context) error
	Close() error
}
