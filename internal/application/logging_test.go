package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthenticated, KindUnauthenticated},
		{ErrSessionExpired, KindUnauthenticated},
		{ErrSessionRevoked, KindUnauthenticated},
		{newBookingError(ErrForbidden, nil, "no"), KindForbidden},
		{fmt.Errorf("wrap: %w", ErrNotFound), KindNotFound},
		{ErrAlreadyExists, KindAlreadyExists},
		{ErrInvalidTransition, KindInvalidTransition},
		{ErrSlotConflict, KindSlotConflict},
		{ErrFixedAssignmentConflict, KindFixedAssignmentConflict},
		{ErrDuplicateBooking, KindDuplicateBooking},
		{ErrRangeTooLong, KindRangeTooLong},
		{ErrAlreadyCancelled, KindAlreadyCancelled},
		{ErrUnknownOperation, KindUnknownOperation},
		{fieldError("cell_id", "required"), KindValidationFailed},
		{errors.New("disk on fire"), KindUnexpected},
	}

	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if KindDuplicateBooking != "DuplicateBookingError" {
		t.Fatalf("duplicate booking kind must keep its wire name, got %q", KindDuplicateBooking)
	}
}
