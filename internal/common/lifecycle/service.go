// Package lifecycle provides infrastructure for managing application services
// with coordinated startup, shutdown, and health monitoring.
//
// Long-running components (the socket listener, leader elector, presence
// janitor) implement Service and are started by a Supervisor. Stopping is
// owned by the Manager, which runs shutdown hooks phase by phase.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"
)

// startupGrace is how long a service has to fail before it counts as started
const startupGrace = 100 * time.Millisecond

// Service represents a long-running component.
type Service interface {
	// Name returns the service identifier for logging
	Name() string

	// Start runs the service. It should block until ctx is cancelled
	// or return an error if the service fails.
	Start(ctx context.Context) error

	// Health returns nil if the service is healthy, error otherwise.
	Health() error
}

// Supervisor starts services in order and reports the first failure.
type Supervisor struct {
	services []Service
	mu       sync.RWMutex
	running  bool
	errCh    chan error
}

// NewSupervisor creates a supervisor for the given services.
func NewSupervisor(services ...Service) *Supervisor {
	return &Supervisor{
		services: services,
		errCh:    make(chan error, len(services)),
	}
}

// Start launches every service. An immediate failure of any service
// aborts startup and is returned; later failures arrive on Errors.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	s.mu.Unlock()

	for _, svc := range s.services {
		slog.Info("Starting service", "service", svc.Name())

		started := make(chan error, 1)
		go func(service Service) {
			err := service.Start(ctx)
			select {
			case started <- err:
			default:
			}
			if err != nil {
				s.errCh <- fmt.Errorf("service %s failed: %w", service.Name(), err)
			}
		}(svc)

		select {
		case err := <-started:
			if err != nil {
				return fmt.Errorf("service %s failed to start: %w", svc.Name(), err)
			}
		case <-time.After(startupGrace):
			// Service started (or is starting async) - continue
		}

		slog.Info("Service started", "service", svc.Name())
	}
	return nil
}

// Errors delivers failures of services that had already started
func (s *Supervisor) Errors() <-chan error {
	return s.errCh
}

// Health returns the health status of all services.
// Returns nil only if ALL services are healthy.
func (s *Supervisor) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, svc := range s.services {
		if err := svc.Health(); err != nil {
			return fmt.Errorf("service %s unhealthy: %w", svc.Name(), err)
		}
	}
	return nil
}

// ServiceFunc adapts a simple function to the Service interface.
type ServiceFunc struct {
	name      string
	startFunc func(ctx context.Context) error
	healthFn  func() error
}

// NewServiceFunc creates a Service from a start function.
func NewServiceFunc(name string, start func(ctx context.Context) error) *ServiceFunc {
	return &ServiceFunc{
		name:      name,
		startFunc: start,
		healthFn:  func() error { return nil },
	}
}

// Background wraps a non-blocking start function, like an elector or
// janitor Start, so the service blocks until ctx is cancelled.
func Background(name string, start func(ctx context.Context) error) *ServiceFunc {
	return NewServiceFunc(name, func(ctx context.Context) error {
		if err := start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
}

func (s *ServiceFunc) Name() string                    { return s.name }
func (s *ServiceFunc) Start(ctx context.Context) error { return s.startFunc(ctx) }
func (s *ServiceFunc) Health() error                   { return s.healthFn() }
func (s *ServiceFunc) WithHealth(fn func() error) *ServiceFunc {
	s.healthFn = fn
	return s
}
