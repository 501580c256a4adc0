package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/desk-booking/internal/application"
)

// maxDispatchBody caps the size of a dispatch request body.
const maxDispatchBody = 1 << 20

type dispatcher interface {
	DispatchJSON(ctx context.Context, principal application.Principal, operation string, payload json.RawMessage) (any, error)
}

// DispatchHandler serves POST /v1/dispatch.
type DispatchHandler struct {
	dispatcher dispatcher
	responder  responder
	logger     *slog.Logger
}

// NewDispatchHandler constructs a DispatchHandler.
func NewDispatchHandler(d dispatcher, logger *slog.Logger) *DispatchHandler {
	base := defaultLogger(logger)
	return &DispatchHandler{dispatcher: d, responder: newResponder(base), logger: base}
}

type dispatchRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

// Dispatch decodes the envelope and runs the named operation for the
// authenticated principal.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.dispatcher == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.responder.handleServiceError(ctx, w, application.ErrUnauthenticated)
		return
	}

	var req dispatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDispatchBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil || req.Operation == "" {
		handlerLogger(ctx, h.logger, "DispatchHandler", "").WarnContext(ctx, "failed to decode dispatch envelope", "error", err)
		h.responder.handleServiceError(ctx, w, errBadRequestBody)
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(`{}`)
	}

	result, err := h.dispatcher.DispatchJSON(ctx, principal, req.Operation, req.Payload)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	handlerLogger(ctx, h.logger, "DispatchHandler", req.Operation).DebugContext(ctx, "operation dispatched")
	h.responder.writeData(ctx, w, result)
}
