package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an event is not legal from the current status.
	ErrInvalidTransition = errors.New("scheduler: invalid status transition")
	// ErrAlreadyCancelled is returned when cancelling a reservation that is already cancelled.
	ErrAlreadyCancelled = errors.New("scheduler: reservation already cancelled")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("scheduler: invalid status")
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a stored or requested status value.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the reservation still counts toward daily exclusivity.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusApproved:
		return true
	case StatusRejected, StatusCancelled:
		return false
	}
	return false
}

// HoldsCell reports whether a reservation in this status occupies its cell.
// Pending reservations are tentative and only claim the user's day.
func (s Status) HoldsCell() bool {
	return s == StatusApproved
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// ActiveStatuses lists statuses that count as active bookings.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusApproved}
}

// Event is an action applied to a reservation.
type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventCancel  Event = "cancel"
)

// Transition returns the status reached by applying event to from.
func Transition(from Status, event Event) (Status, error) {
	switch event {
	case EventApprove:
		if from == StatusPending {
			return StatusApproved, nil
		}
	case EventReject:
		if from == StatusPending {
			return StatusRejected, nil
		}
	case EventCancel:
		switch from {
		case StatusPending, StatusApproved:
			return StatusCancelled, nil
		case StatusCancelled:
			return from, ErrAlreadyCancelled
		case StatusRejected:
		}
	default:
		return from, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event)
	}
	return from, fmt.Errorf("%w: cannot %s a %s reservation", ErrInvalidTransition, event, from)
}
