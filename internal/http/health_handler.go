package http

import (
	"context"
	"log/slog"
	"net/http"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	store     pinger
	responder responder
	logger    *slog.Logger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(store pinger, logger *slog.Logger) *HealthHandler {
	base := defaultLogger(logger)
	return &HealthHandler{store: store, responder: newResponder(base), logger: base}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Check reports whether the store answers.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			handlerLogger(ctx, h.logger, "HealthHandler", "Check").ErrorContext(ctx, "store ping failed", "error", err)
			h.responder.writeJSON(ctx, w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
}
