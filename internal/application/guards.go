package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/desk-booking/internal/persistence"
	"github.com/example/desk-booking/internal/scheduler"
)

// bookingGuards holds the checks every booking path runs before writing.
type bookingGuards struct {
	store BookingStore
}

// checkCellConflict refuses a candidate blocked by another user's fixed
// assignment or by an approved reservation with a colliding segment.
func (g bookingGuards) checkCellConflict(ctx context.Context, cellID string, r scheduler.Range, segment scheduler.Segment, userID string) error {
	existing, err := g.cellBookings(ctx, cellID, r)
	if err != nil {
		return err
	}
	conflict, found := scheduler.DetectCellConflict(existing, scheduler.Candidate{
		CellID:  cellID,
		UserID:  userID,
		Range:   r,
		Segment: segment,
	})
	if !found {
		return nil
	}
	return conflictError(conflict)
}

// checkUserDailyExclusivity refuses the range when the user already holds an
// active booking on any of its days, in any room.
func (g bookingGuards) checkUserDailyExclusivity(ctx context.Context, userID string, r scheduler.Range) error {
	existing, err := g.userBookings(ctx, userID, r)
	if err != nil {
		return err
	}
	conflict, found := scheduler.DetectDuplicate(existing, userID, r)
	if !found {
		return nil
	}
	return conflictError(conflict)
}

func (g bookingGuards) cellBookings(ctx context.Context, cellID string, r scheduler.Range) ([]scheduler.Booking, error) {
	if g.store == nil {
		return nil, fmt.Errorf("booking store not configured")
	}
	assignments, err := g.store.ListFixedAssignments(ctx, persistence.AssignmentFilter{CellID: cellID, Overlapping: &r})
	if err != nil {
		return nil, err
	}
	reservations, err := g.store.ListReservations(ctx, persistence.ReservationFilter{
		CellID:      cellID,
		Statuses:    []scheduler.Status{scheduler.StatusApproved},
		Overlapping: &r,
	})
	if err != nil {
		return nil, err
	}
	return collectBookings(reservations, assignments), nil
}

func (g bookingGuards) userBookings(ctx context.Context, userID string, r scheduler.Range) ([]scheduler.Booking, error) {
	if g.store == nil {
		return nil, fmt.Errorf("booking store not configured")
	}
	assignments, err := g.store.ListFixedAssignments(ctx, persistence.AssignmentFilter{UserID: userID, Overlapping: &r})
	if err != nil {
		return nil, err
	}
	reservations, err := g.store.ListReservations(ctx, persistence.ReservationFilter{
		UserID:      userID,
		Statuses:    scheduler.ActiveStatuses(),
		Overlapping: &r,
	})
	if err != nil {
		return nil, err
	}
	return collectBookings(reservations, assignments), nil
}

func collectBookings(reservations []persistence.Reservation, assignments []persistence.FixedAssignment) []scheduler.Booking {
	out := make([]scheduler.Booking, 0, len(reservations)+len(assignments))
	for _, a := range assignments {
		out = append(out, assignmentBooking(a))
	}
	for _, r := range reservations {
		out = append(out, reservationBooking(r))
	}
	return out
}

func conflictError(c scheduler.Conflict) error {
	details := map[string]string{
		"cell_id":      c.With.CellID,
		"room_id":      c.With.RoomID,
		"user_id":      c.With.UserID,
		"date":         c.Day.String(),
		"booking_id":   c.With.ID,
		"booking_kind": string(c.With.Kind),
	}
	switch c.Type {
	case scheduler.ConflictFixedAssignment:
		return newBookingError(ErrFixedAssignmentConflict, details,
			"cell %s is assigned to user %s on %s", c.With.CellID, c.With.UserID, c.Day)
	case scheduler.ConflictSlot:
		details["time_segment"] = string(c.With.Segment)
		return newBookingError(ErrSlotConflict, details,
			"cell %s is already booked for %s on %s", c.With.CellID, c.With.Segment, c.Day)
	case scheduler.ConflictDuplicate:
		if c.With.Kind == scheduler.KindFixedAssignment {
			details["source"] = "fixed_assignment"
			return newBookingError(ErrDuplicateBooking, details,
				"user %s already has a fixed assignment on %s (room %s, cell %s)",
				c.With.UserID, c.Day, c.With.RoomID, c.With.CellID)
		}
		details["source"] = string(c.With.Status) + "_reservation"
		return newBookingError(ErrDuplicateBooking, details,
			"user %s already has a %s reservation on %s (room %s, cell %s)",
			c.With.UserID, c.With.Status, c.Day, c.With.RoomID, c.With.CellID)
	}
	return fmt.Errorf("unknown conflict type %q", c.Type)
}

// mapBookingRepoError translates storage failures. Claim collisions raised by
// concurrent writers surface as the same kinds the guards report.
func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	var bErr *BookingError
	if errors.As(err, &bErr) {
		return err
	}
	switch {
	case errors.Is(err, persistence.ErrCellSlotTaken):
		return newBookingError(ErrSlotConflict, nil, "the desk was taken by a concurrent booking")
	case errors.Is(err, persistence.ErrUserDayTaken):
		return newBookingError(ErrDuplicateBooking, map[string]string{"source": "concurrent_booking"},
			"the user already holds a booking on one of the requested days")
	case errors.Is(err, persistence.ErrStaleWrite):
		return newBookingError(ErrInvalidTransition, nil, "the booking was changed by another request")
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("cell_id", "related records are missing")
	}
	return err
}

func validateRange(r scheduler.Range, vErr *ValidationError) {
	if r.Start.IsZero() {
		vErr.add("date_start", "date_start is required")
	}
	if r.End.IsZero() {
		vErr.add("date_end", "date_end is required")
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		vErr.add("date_end", "date_end must not be before date_start")
	}
}

// checkAssignmentSpan bounds assignments to one calendar year. A configured
// cap below the default tightens the bound but never loosens it.
func checkAssignmentSpan(r scheduler.Range, maxDays int) error {
	if err := scheduler.CheckAssignmentSpan(r); err != nil {
		return newBookingError(ErrRangeTooLong, map[string]string{
			"date_start": r.Start.String(),
			"date_end":   r.End.String(),
		}, "assignment %s ends more than one year after it starts", r)
	}
	if maxDays > 0 && maxDays < scheduler.MaxAssignmentDays {
		return checkSpan(r, maxDays)
	}
	return nil
}

func checkSpan(r scheduler.Range, maxDays int) error {
	if err := scheduler.CheckSpan(r, maxDays); err != nil {
		return newBookingError(ErrRangeTooLong, map[string]string{
			"date_start": r.Start.String(),
			"date_end":   r.End.String(),
		}, "range %s spans %d days, at most %d allowed", r, r.Len(), maxDays)
	}
	return nil
}
