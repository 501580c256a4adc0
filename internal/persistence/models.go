package persistence

import (
	"time"

	"github.com/example/desk-booking/internal/scheduler"
)

// User is a directory entry. Credentials live with the external identity provider.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Room is a bookable area laid out as a grid of cells.
type Room struct {
	ID        string
	Name      string
	GridRows  int
	GridCols  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cell is a desk slot at a grid coordinate inside a room.
type Cell struct {
	ID        string
	RoomID    string
	Row       int
	Col       int
	Type      string
	Label     *string
	CreatedAt time.Time
}

// RoomAccess grants a user admin or member rights on one room.
type RoomAccess struct {
	RoomID    string
	UserID    string
	Role      string
	CreatedAt time.Time
}

// Reservation is a request for a cell over an inclusive range of days.
type Reservation struct {
	ID         string
	CellID     string
	RoomID     string
	UserID     string
	DateStart  scheduler.Date
	DateEnd    scheduler.Date
	Segment    scheduler.Segment
	Status     scheduler.Status
	ApprovedBy *string
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FixedAssignment is a standing claim on a cell outside the approval workflow.
type FixedAssignment struct {
	ID         string
	CellID     string
	RoomID     string
	AssignedTo string
	DateStart  scheduler.Date
	DateEnd    scheduler.Date
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session is a server-side login session keyed by the digest of its token.
type Session struct {
	ID          string
	UserID      string
	TokenDigest string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}
