package persistence

import (
	"errors"
	"fmt"

	"github.com/example/desk-booking/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrCellSlotTaken is returned when a cell half-day claim is already held.
	ErrCellSlotTaken = errors.New("persistence: cell slot already claimed")
	// ErrUserDayTaken is returned when a user day claim is already held.
	ErrUserDayTaken = errors.New("persistence: user day already claimed")
	// ErrStaleWrite is returned when a conditional update matched no row because
	// the record changed since it was read.
	ErrStaleWrite = errors.New("persistence: record changed concurrently")
	// ErrConstraintViolation is returned for check and foreign key failures.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)

// StaleStatusError is the ErrStaleWrite raised by a status change whose
// expected status no longer held. Current is the status found instead.
type StaleStatusError struct {
	ReservationID string
	Current       scheduler.Status
}

func (e *StaleStatusError) Error() string {
	return fmt.Sprintf("%v: reservation %s is %s", ErrStaleWrite, e.ReservationID, e.Current)
}

func (e *StaleStatusError) Unwrap() error { return ErrStaleWrite }
