package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/desk-booking/internal/application"
	"github.com/example/desk-booking/internal/persistence"
)

var (
	userCounter uint64
	roomCounter uint64
	cellCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user.
type UserOption func(*persistence.User)

// NewUser returns a deterministic active user with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: fmt.Sprintf("User %03d", idx),
		Role:        application.RoleUser,
		Active:      true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithUserAdmin gives the user the global admin role.
func WithUserAdmin() UserOption {
	return func(u *persistence.User) { u.Role = application.RoleAdmin }
}

// WithUserInactive deactivates the user.
func WithUserInactive() UserOption {
	return func(u *persistence.User) { u.Active = false }
}

// ----------------------------- Room fixtures -----------------------------

// NewRoom returns a deterministic 4x4 room.
func NewRoom(id string) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	if id == "" {
		id = fmt.Sprintf("room-%03d", idx)
	}
	return persistence.Room{
		ID:        id,
		Name:      "Room " + id,
		GridRows:  4,
		GridCols:  4,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// NewCell returns a desk in room at (row, col).
func NewCell(id, roomID string, row, col int) persistence.Cell {
	idx := atomic.AddUint64(&cellCounter, 1)
	if id == "" {
		id = fmt.Sprintf("cell-%03d", idx)
	}
	label := id
	return persistence.Cell{
		ID:        id,
		RoomID:    roomID,
		Row:       row,
		Col:       col,
		Type:      "desk",
		Label:     &label,
		CreatedAt: referenceTime,
	}
}

// ----------------------------- Seeded world -----------------------------

// World is a small directory used by service and scenario tests.
//
//   - R1 holds cells C1 and C2, R2 holds C3.
//   - Admin is a global admin, RoomAdmin administers R1 only.
//   - Alice and Bob are members of both rooms; Carol has no grants.
type World struct {
	Admin     persistence.User
	RoomAdmin persistence.User
	Alice     persistence.User
	Bob       persistence.User
	Carol     persistence.User
	R1, R2    persistence.Room
	C1, C2    persistence.Cell
	C3        persistence.Cell
}

// Principal returns the principal of a seeded user.
func Principal(user persistence.User) application.Principal {
	return application.Principal{UserID: user.ID, Role: user.Role}
}

// WorldStore is the subset of persistence the seed writes through.
type WorldStore interface {
	persistence.UserRepository
	persistence.RoomRepository
	persistence.RoomAccessRepository
}

// SeedWorld writes the World directory into store.
func SeedWorld(tb testing.TB, store WorldStore) World {
	tb.Helper()
	ctx := context.Background()

	w := World{
		Admin:     NewUser(WithUserID("admin"), WithUserEmail("admin@example.com"), WithUserAdmin()),
		RoomAdmin: NewUser(WithUserID("room-admin"), WithUserEmail("room-admin@example.com")),
		Alice:     NewUser(WithUserID("alice"), WithUserEmail("alice@example.com")),
		Bob:       NewUser(WithUserID("bob"), WithUserEmail("bob@example.com")),
		Carol:     NewUser(WithUserID("carol"), WithUserEmail("carol@example.com")),
		R1:        NewRoom("R1"),
		R2:        NewRoom("R2"),
	}
	w.C1 = NewCell("C1", w.R1.ID, 0, 0)
	w.C2 = NewCell("C2", w.R1.ID, 0, 1)
	w.C3 = NewCell("C3", w.R2.ID, 0, 0)

	for _, u := range []persistence.User{w.Admin, w.RoomAdmin, w.Alice, w.Bob, w.Carol} {
		if err := store.CreateUser(ctx, u); err != nil {
			tb.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	for _, r := range []persistence.Room{w.R1, w.R2} {
		if err := store.CreateRoom(ctx, r); err != nil {
			tb.Fatalf("seed room %s: %v", r.ID, err)
		}
	}
	for _, c := range []persistence.Cell{w.C1, w.C2, w.C3} {
		if err := store.CreateCell(ctx, c); err != nil {
			tb.Fatalf("seed cell %s: %v", c.ID, err)
		}
	}
	grants := []persistence.RoomAccess{
		{RoomID: w.R1.ID, UserID: w.RoomAdmin.ID, Role: application.AccessAdmin},
		{RoomID: w.R1.ID, UserID: w.Alice.ID, Role: application.AccessMember},
		{RoomID: w.R2.ID, UserID: w.Alice.ID, Role: application.AccessMember},
		{RoomID: w.R1.ID, UserID: w.Bob.ID, Role: application.AccessMember},
		{RoomID: w.R2.ID, UserID: w.Bob.ID, Role: application.AccessMember},
	}
	for _, g := range grants {
		g.CreatedAt = referenceTime
		if err := store.UpsertRoomAccess(ctx, g); err != nil {
			tb.Fatalf("seed grant %s/%s: %v", g.RoomID, g.UserID, err)
		}
	}
	return w
}
