package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/desk-booking/internal/application"
)

var (
	errBadRequestBody = &application.ValidationError{FieldErrors: map[string]string{
		"body": `body must be a JSON object {"operation": ..., "payload": ...}`,
	}}
	errMissingSessionToken = &application.BookingError{
		Err:     application.ErrUnauthenticated,
		Message: "a bearer session token is required",
	}
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorBody struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeData(ctx context.Context, w http.ResponseWriter, data any) {
	r.writeJSON(ctx, w, http.StatusOK, dataResponse{Data: data})
}

// handleServiceError writes the error envelope for err. Unexpected errors are
// logged and answered with a generic message.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	body := errorBody{Kind: kind, Message: err.Error()}

	var bErr *application.BookingError
	if errors.As(err, &bErr) {
		body.Details = bErr.DetailMap()
	}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		body.Fields = vErr.FieldErrors
	}

	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err)
		body.Message = http.StatusText(status)
	} else {
		logger.WarnContext(ctx, "request refused", "status", status, "error_kind", kind, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Error: body})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case application.KindUnauthenticated:
		return http.StatusUnauthorized
	case application.KindForbidden:
		return http.StatusForbidden
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindAlreadyExists,
		application.KindInvalidTransition,
		application.KindSlotConflict,
		application.KindFixedAssignmentConflict,
		application.KindDuplicateBooking,
		application.KindAlreadyCancelled:
		return http.StatusConflict
	case application.KindRangeTooLong, application.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case application.KindUnknownOperation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
