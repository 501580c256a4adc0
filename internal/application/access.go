package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/desk-booking/internal/persistence"
)

// AccessResolver answers room authorization questions. It has no side effects.
type AccessResolver struct {
	grants AccessStore
}

// NewAccessResolver constructs an AccessResolver.
func NewAccessResolver(grants AccessStore) *AccessResolver {
	return &AccessResolver{grants: grants}
}

// IsRoomAdmin reports whether the principal may administer the room.
func (r *AccessResolver) IsRoomAdmin(ctx context.Context, principal Principal, roomID string) (bool, error) {
	if principal.IsAdmin() {
		return true, nil
	}
	grant, ok, err := r.lookup(ctx, principal.UserID, roomID)
	if err != nil || !ok {
		return false, err
	}
	return grant.Role == AccessAdmin, nil
}

// HasRoomAccess reports whether the principal holds any grant on the room.
func (r *AccessResolver) HasRoomAccess(ctx context.Context, principal Principal, roomID string) (bool, error) {
	if principal.IsAdmin() {
		return true, nil
	}
	_, ok, err := r.lookup(ctx, principal.UserID, roomID)
	return ok, err
}

// AdministeredRooms lists the rooms the principal administers. all is true for
// global admins, in which case rooms is nil.
func (r *AccessResolver) AdministeredRooms(ctx context.Context, principal Principal) (rooms []string, all bool, err error) {
	if principal.IsAdmin() {
		return nil, true, nil
	}
	if r == nil || r.grants == nil {
		return nil, false, fmt.Errorf("access store not configured")
	}
	grants, err := r.grants.ListRoomAccessForUser(ctx, principal.UserID)
	if err != nil {
		return nil, false, err
	}
	for _, g := range grants {
		if g.Role == AccessAdmin {
			rooms = append(rooms, g.RoomID)
		}
	}
	return rooms, false, nil
}

func (r *AccessResolver) lookup(ctx context.Context, userID, roomID string) (persistence.RoomAccess, bool, error) {
	if r == nil || r.grants == nil {
		return persistence.RoomAccess{}, false, fmt.Errorf("access store not configured")
	}
	if userID == "" || roomID == "" {
		return persistence.RoomAccess{}, false, nil
	}
	grant, err := r.grants.GetRoomAccess(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.RoomAccess{}, false, nil
		}
		return persistence.RoomAccess{}, false, err
	}
	return grant, true, nil
}

// requireRoomAdmin returns ErrForbidden unless the principal administers the room.
func (r *AccessResolver) requireRoomAdmin(ctx context.Context, principal Principal, roomID, action string) error {
	ok, err := r.IsRoomAdmin(ctx, principal, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return newBookingError(ErrForbidden, map[string]string{"room_id": roomID, "user_id": principal.UserID},
			"user %s is not an admin of room %s and cannot %s", principal.UserID, roomID, action)
	}
	return nil
}

// requireRoomAccess returns ErrForbidden unless the principal holds a grant on the room.
func (r *AccessResolver) requireRoomAccess(ctx context.Context, principal Principal, roomID, action string) error {
	ok, err := r.HasRoomAccess(ctx, principal, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return newBookingError(ErrForbidden, map[string]string{"room_id": roomID, "user_id": principal.UserID},
			"user %s has no access to room %s and cannot %s", principal.UserID, roomID, action)
	}
	return nil
}
