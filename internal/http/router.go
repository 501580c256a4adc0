package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires handlers into the router. Nil handlers leave their routes
// unregistered.
type RouterConfig struct {
	Dispatch *DispatchHandler
	Auth     *AuthHandler
	Health   *HealthHandler
	// Session guards every /v1 route.
	Session func(http.Handler) http.Handler
	// Middleware wraps the whole mux, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	guard := cfg.Session
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}

	if cfg.Dispatch != nil {
		mux.Handle("/v1/dispatch", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Dispatch.Dispatch(w, r)
		})))
	}

	if cfg.Auth != nil {
		mux.Handle("/v1/sessions/current", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})))
	}

	if cfg.Health != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				methodNotAllowed(w, http.MethodGet, http.MethodHead)
				return
			}
			cfg.Health.Check(w, r)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
