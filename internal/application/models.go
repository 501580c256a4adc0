package application

import (
	"time"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// Global roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Room access roles.
const (
	AccessAdmin  = "admin"
	AccessMember = "member"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the principal holds the global admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) authenticated() bool {
	return p.UserID != ""
}

// Reservation is a desk reservation as returned to callers.
type Reservation struct {
	ID         string            `json:"id"`
	CellID     string            `json:"cell_id"`
	RoomID     string            `json:"room_id"`
	UserID     string            `json:"user_id"`
	DateStart  scheduler.Date    `json:"date_start"`
	DateEnd    scheduler.Date    `json:"date_end"`
	Segment    scheduler.Segment `json:"time_segment"`
	Status     scheduler.Status  `json:"status"`
	ApprovedBy *string           `json:"approved_by,omitempty"`
	ApprovedAt *time.Time        `json:"approved_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// FixedAssignment is a standing cell claim as returned to callers.
type FixedAssignment struct {
	ID         string         `json:"id"`
	CellID     string         `json:"cell_id"`
	RoomID     string         `json:"room_id"`
	AssignedTo string         `json:"assigned_to"`
	DateStart  scheduler.Date `json:"date_start"`
	DateEnd    scheduler.Date `json:"date_end"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// BookingList groups reservations and fixed assignments returned by list operations.
type BookingList struct {
	Reservations     []Reservation     `json:"reservations"`
	FixedAssignments []FixedAssignment `json:"fixed_assignments"`
}

// AssignmentRelease reports the outcome of releasing a fixed assignment or one of its days.
type AssignmentRelease struct {
	AssignmentID string           `json:"assignment_id"`
	Deleted      bool             `json:"deleted"`
	Released     *scheduler.Date  `json:"released_day,omitempty"`
	Remaining    *FixedAssignment `json:"remaining,omitempty"`
	Split        *FixedAssignment `json:"split,omitempty"`
}

// Occupant names who holds a segment of a cell on a day.
type Occupant struct {
	Kind    scheduler.BookingKind `json:"kind"`
	ID      string                `json:"id"`
	UserID  string                `json:"user_id"`
	Segment scheduler.Segment     `json:"time_segment"`
	Status  scheduler.Status      `json:"status"`
}

// DayAvailability lists the free half-days of a cell on one day.
type DayAvailability struct {
	Date      scheduler.Date      `json:"date"`
	Free      []scheduler.Segment `json:"free"`
	Occupants []Occupant          `json:"occupants,omitempty"`
}

// CellAvailability is the availability of one cell over a range.
type CellAvailability struct {
	CellID string            `json:"cell_id"`
	RoomID string            `json:"room_id"`
	Label  *string           `json:"label,omitempty"`
	Days   []DayAvailability `json:"days"`
}

// User is a directory entry.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Room is a bookable area.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GridRows  int       `json:"grid_rows"`
	GridCols  int       `json:"grid_cols"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cell is a desk slot in a room.
type Cell struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Type      string    `json:"type"`
	Label     *string   `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomAccess is a per-room grant.
type RoomAccess struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IssuedSession is returned once when a session is created. Only the digest
// of Token is stored.
type IssuedSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toReservation(model persistence.Reservation) Reservation {
	return Reservation{
		ID:         model.ID,
		CellID:     model.CellID,
		RoomID:     model.RoomID,
		UserID:     model.UserID,
		DateStart:  model.DateStart,
		DateEnd:    model.DateEnd,
		Segment:    model.Segment,
		Status:     model.Status,
		ApprovedBy: cloneString(model.ApprovedBy),
		ApprovedAt: cloneTime(model.ApprovedAt),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toReservations(models []persistence.Reservation) []Reservation {
	out := make([]Reservation, 0, len(models))
	for _, m := range models {
		out = append(out, toReservation(m))
	}
	return out
}

func toFixedAssignment(model persistence.FixedAssignment) FixedAssignment {
	return FixedAssignment{
		ID:         model.ID,
		CellID:     model.CellID,
		RoomID:     model.RoomID,
		AssignedTo: model.AssignedTo,
		DateStart:  model.DateStart,
		DateEnd:    model.DateEnd,
		CreatedBy:  model.CreatedBy,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toFixedAssignments(models []persistence.FixedAssignment) []FixedAssignment {
	out := make([]FixedAssignment, 0, len(models))
	for _, m := range models {
		out = append(out, toFixedAssignment(m))
	}
	return out
}

func toUser(model persistence.User) User {
	return User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        model.Role,
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toRoom(model persistence.Room) Room {
	return Room{
		ID:        model.ID,
		Name:      model.Name,
		GridRows:  model.GridRows,
		GridCols:  model.GridCols,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toCell(model persistence.Cell) Cell {
	return Cell{
		ID:        model.ID,
		RoomID:    model.RoomID,
		Row:       model.Row,
		Col:       model.Col,
		Type:      model.Type,
		Label:     cloneString(model.Label),
		CreatedAt: model.CreatedAt,
	}
}

func toRoomAccess(model persistence.RoomAccess) RoomAccess {
	return RoomAccess{
		RoomID:    model.RoomID,
		UserID:    model.UserID,
		Role:      model.Role,
		CreatedAt: model.CreatedAt,
	}
}

func reservationBooking(model persistence.Reservation) scheduler.Booking {
	return scheduler.Booking{
		Kind:    scheduler.KindReservation,
		ID:      model.ID,
		CellID:  model.CellID,
		RoomID:  model.RoomID,
		UserID:  model.UserID,
		Range:   scheduler.Range{Start: model.DateStart, End: model.DateEnd},
		Segment: model.Segment,
		Status:  model.Status,
	}
}

func assignmentBooking(model persistence.FixedAssignment) scheduler.Booking {
	return scheduler.FixedAssignmentBooking(model.ID, model.CellID, model.RoomID, model.AssignedTo,
		scheduler.Range{Start: model.DateStart, End: model.DateEnd})
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
