package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httptransport "github.com/example/desk-booking/internal/http"
)

// ServeCmd runs the dispatch API until SIGINT or SIGTERM.
type ServeCmd struct {
	Addr string `help:"Listen address; overrides the configured host and port."`
}

func (c *ServeCmd) Run(rt *runtime) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, rt, nil)
}

// serve blocks until ctx is done. When ready is set it receives the bound
// address once the listener is open.
func (c *ServeCmd) serve(ctx context.Context, rt *runtime, ready chan<- string) error {
	a, err := rt.openMigrated(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Error("failed to close resources", "error", cerr)
		}
	}()

	logger := a.logger
	svc := a.services
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Dispatch: httptransport.NewDispatchHandler(svc.Dispatcher, logger),
		Auth:     httptransport.NewAuthHandler(svc.Auth, logger),
		Health:   httptransport.NewHealthHandler(a.store, logger),
		Session:  httptransport.RequireSession(svc.Auth, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Timeout(a.cfg.HTTP.RequestTimeout),
		},
	})

	addr := a.cfg.HTTP.Address()
	if c.Addr != "" {
		addr = c.Addr
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready <- ln.Addr().String()
	}

	shutdownTimeout := a.cfg.HTTP.ShutdownTimeout
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("deskbook API listening", "addr", ln.Addr().String(), "driver", a.cfg.Database.Driver)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("deskbook API stopped")
	return nil
}
