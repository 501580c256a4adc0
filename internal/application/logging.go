package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/desk-booking/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// Error kinds reported on the wire and in logs.
const (
	KindUnauthenticated         = "Unauthenticated"
	KindForbidden               = "Forbidden"
	KindNotFound                = "NotFound"
	KindAlreadyExists           = "AlreadyExists"
	KindInvalidTransition       = "InvalidTransition"
	KindSlotConflict            = "SlotConflict"
	KindFixedAssignmentConflict = "FixedAssignmentConflict"
	KindDuplicateBooking        = "DuplicateBookingError"
	KindRangeTooLong            = "RangeTooLong"
	KindAlreadyCancelled        = "AlreadyCancelled"
	KindValidationFailed        = "ValidationFailed"
	KindUnknownOperation        = "UnknownOperation"
	KindUnexpected              = "Unexpected"
)

// ErrorKind maps sentinel and validation errors to a stable label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionRevoked):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrSlotConflict):
		return KindSlotConflict
	case errors.Is(err, ErrFixedAssignmentConflict):
		return KindFixedAssignmentConflict
	case errors.Is(err, ErrDuplicateBooking):
		return KindDuplicateBooking
	case errors.Is(err, ErrRangeTooLong):
		return KindRangeTooLong
	case errors.Is(err, ErrAlreadyCancelled):
		return KindAlreadyCancelled
	case errors.Is(err, ErrUnknownOperation):
		return KindUnknownOperation
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindValidationFailed
	}

	return KindUnexpected
}
