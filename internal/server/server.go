// Package server provides shared HTTP server utilities.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server timeouts.
const (
	ReadHeaderTimeout = 1 * time.Second
	ReadTimeout       = 5 * time.Second
	// WriteTimeout leaves room for a slow round trip to the hosted backend
	// while rendering the notes pages.
	WriteTimeout    = 15 * time.Second
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 10 * time.Second
)

// Listen creates a TCP listener on the given address.
// Use "127.0.0.1:0" for a random available port.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// Serve starts an HTTP server on the given listener and registers graceful
// shutdown when the context is canceled. The server is configured with
// standard timeouts.
func Serve(
	ctx context.Context,
	grp *errgroup.Group,
	srv *http.Server,
	listener net.Listener,
	shutdownTimeout time.Duration,
) {
	srv.ReadHeaderTimeout = ReadHeaderTimeout
	srv.ReadTimeout = ReadTimeout
	srv.WriteTimeout = WriteTimeout
	srv.IdleTimeout = IdleTimeout

	grp.Go(func() error {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Start listens on addr and serves handler until ctx is canceled. An empty
// addr disables the server. The bound address is returned so callers can use
// random ports.
func Start(
	ctx context.Context,
	grp *errgroup.Group,
	logger *slog.Logger,
	name string,
	addr string,
	handler http.Handler,
) (string, error) {
	if addr == "" {
		logger.DebugContext(ctx, "server disabled", slog.String("server", name))
		return "", nil
	}
	listener, err := Listen(ctx, addr)
	if err != nil {
		return "", err
	}
	bound := listener.Addr().String()
	logger.InfoContext(ctx,
		"starting "+name+" server...",
		slog.String("address", bound),
	)
	srv := &http.Server{Handler: handler} //nolint:gosec // Serve() sets timeouts
	Serve(ctx, grp, srv, listener, ShutdownTimeout)
	return bound, nil
}
