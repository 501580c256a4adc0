package application

import (
	"errors"
	"fmt"
	"maps"
)

var (
	// ErrUnauthenticated is returned when the caller has no valid session.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when the acting principal lacks rights for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when creating a directory entry that already exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidTransition is returned when a reservation cannot move to the requested status.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrSlotConflict is returned when an approved reservation already occupies the slot.
	ErrSlotConflict = errors.New("application: slot conflict")
	// ErrFixedAssignmentConflict is returned when another user holds a fixed assignment on the cell.
	ErrFixedAssignmentConflict = errors.New("application: fixed assignment conflict")
	// ErrDuplicateBooking is returned when the user already has an active booking that day.
	ErrDuplicateBooking = errors.New("application: duplicate booking")
	// ErrRangeTooLong is returned when a date range exceeds the configured limit.
	ErrRangeTooLong = errors.New("application: range too long")
	// ErrAlreadyCancelled is returned when cancelling a cancelled reservation.
	ErrAlreadyCancelled = errors.New("application: already cancelled")
	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrUnknownOperation is returned by the dispatcher for unregistered operation names.
	ErrUnknownOperation = errors.New("application: unknown operation")
)

// BookingError carries a human readable explanation and the identifiers of the
// booking that caused a refusal. It unwraps to one of the sentinels above.
type BookingError struct {
	Err     error
	Message string
	Details map[string]string
}

func newBookingError(kind error, details map[string]string, format string, args ...any) *BookingError {
	return &BookingError{Err: kind, Message: fmt.Sprintf(format, args...), Details: details}
}

// Error implements the error interface.
func (e *BookingError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the sentinel kind.
func (e *BookingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DetailMap returns a copy of the details.
func (e *BookingError) DetailMap() map[string]string {
	if e == nil || len(e.Details) == 0 {
		return nil
	}
	return maps.Clone(e.Details)
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
