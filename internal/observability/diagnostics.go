package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// DiagnosticsServer exposes /healthz and, when a metrics handler is given,
// the Prometheus /metrics endpoint for the duration of a run.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer starts serving at addr. metrics may be nil. Requests
// are traced with tracer when it is not nil.
func NewDiagnosticsServer(
	addr string, metrics http.Handler, tracer trace.Tracer, logger *slog.Logger,
) (*DiagnosticsServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	var handler http.Handler = mux
	if tracer != nil {
		handler = HTTPMiddleware(tracer, mux)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: handler} //nolint:gosec // local diagnostics endpoint.

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
