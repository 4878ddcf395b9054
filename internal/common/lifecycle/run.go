package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
)

// Run starts services and blocks until a shutdown signal, a call to
// mgr.Shutdown, or a service failure. The manager's hooks then run.
// This is the standard main loop for Ember binaries.
//
// Usage:
//
//	lifecycle.Run(ctx, mgr, electorService, httpService)
func Run(ctx context.Context, mgr *Manager, services ...Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	supervisor := NewSupervisor(services...)
	if err := supervisor.Start(ctx); err != nil {
		slog.Error("Startup failed", "error", err)
		mgr.Execute()
		return err
	}

	signalled := make(chan struct{})
	go func() {
		mgr.WaitForSignal()
		close(signalled)
	}()

	var runErr error
	select {
	case <-signalled:
	case runErr = <-supervisor.Errors():
		slog.Error("Service error", "error", runErr)
		mgr.Shutdown()
		<-signalled
	}

	err := mgr.Execute()
	cancel()
	if runErr != nil {
		return runErr
	}
	return err
}

// HTTPService wraps an http.Server as a Service. Stopping the server is
// left to a listener shutdown hook.
type HTTPService struct {
	server *http.Server
	name   string
}

// NewHTTPService creates a Service from an http.Server.
func NewHTTPService(name string, server *http.Server) *HTTPService {
	return &HTTPService{
		server: server,
		name:   name,
	}
}

func (s *HTTPService) Name() string { return s.name }

func (s *HTTPService) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	slog.Info("Starting HTTP server", "addr", ln.Addr().String())

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *HTTPService) Shutdown(ctx context.Context) error {
	slog.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *HTTPService) Health() error {
	return nil
}
