package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/desk-booking/internal/application"
)

const sessionCookieName = "session_token"

type sessionRevoker interface {
	RevokeSession(ctx context.Context, token string) error
}

// AuthHandler serves session endpoints. Sessions are issued out of band by the
// CLI, so only logout is exposed.
type AuthHandler struct {
	service   sessionRevoker
	responder responder
	logger    *slog.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service sessionRevoker, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

// DeleteCurrentSession revokes the token the request was authenticated with.
func (h *AuthHandler) DeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	token, ok := SessionTokenFromContext(ctx)
	if !ok {
		h.responder.handleServiceError(ctx, w, application.ErrUnauthenticated)
		return
	}
	if err := h.service.RevokeSession(ctx, token); err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	clearSessionCookie(w)
	handlerLogger(ctx, h.logger, "AuthHandler", "DeleteCurrentSession").InfoContext(ctx, "session revoked")
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
}
