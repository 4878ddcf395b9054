// Package lifecycle provides graceful shutdown orchestration
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownPhase defines the order of shutdown phases
type ShutdownPhase int

const (
	// PhaseListener stops accepting new connections and fails readiness
	PhaseListener ShutdownPhase = iota
	// PhaseSessions closes open sockets and waits for session cleanup
	PhaseSessions
	// PhaseBus closes the event bus
	PhaseBus
	// PhaseLeader releases leader election locks
	PhaseLeader
	// PhasePresence stops the presence janitor
	PhasePresence
	// PhaseDatabase closes database and Redis connections
	PhaseDatabase
	// PhaseFinal performs any final cleanup
	PhaseFinal
)

var phaseOrder = []ShutdownPhase{
	PhaseListener, PhaseSessions, PhaseBus, PhaseLeader, PhasePresence, PhaseDatabase, PhaseFinal,
}

func (p ShutdownPhase) String() string {
	switch p {
	case PhaseListener:
		return "listener"
	case PhaseSessions:
		return "sessions"
	case PhaseBus:
		return "bus"
	case PhaseLeader:
		return "leader"
	case PhasePresence:
		return "presence"
	case PhaseDatabase:
		return "database"
	case PhaseFinal:
		return "final"
	default:
		return "unknown"
	}
}

// ShutdownHook is a function called during shutdown
type ShutdownHook struct {
	Name     string
	Phase    ShutdownPhase
	Timeout  time.Duration
	Shutdown func(ctx context.Context) error
}

// Manager orchestrates graceful shutdown
type Manager struct {
	mu              sync.Mutex
	hooks           []ShutdownHook
	shutdownTimeout time.Duration
	done            chan struct{}
	once            sync.Once
	executed        bool
}

// NewManager creates a new lifecycle manager
func NewManager() *Manager {
	return &Manager{
		hooks:           make([]ShutdownHook, 0),
		shutdownTimeout: 30 * time.Second,
		done:            make(chan struct{}),
	}
}

// SetShutdownTimeout sets the overall shutdown timeout
func (m *Manager) SetShutdownTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = timeout
}

// RegisterHook adds a shutdown hook
func (m *Manager) RegisterHook(hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hook.Timeout == 0 {
		hook.Timeout = 10 * time.Second
	}
	m.hooks = append(m.hooks, hook)
}

// RegisterListenerShutdown registers a hook that stops accepting connections
func (m *Manager) RegisterListenerShutdown(name string, shutdown func(ctx context.Context) error) {
	m.RegisterHook(ShutdownHook{
		Name:     name,
		Phase:    PhaseListener,
		Timeout:  5 * time.Second,
		Shutdown: shutdown,
	})
}

// RegisterSessionShutdown registers a hook that closes open sockets
func (m *Manager) RegisterSessionShutdown(name string, shutdown func(ctx context.Context) error) {
	m.RegisterHook(ShutdownHook{
		Name:     name,
		Phase:    PhaseSessions,
		Timeout:  15 * time.Second,
		Shutdown: shutdown,
	})
}

// RegisterBusShutdown registers an event bus shutdown hook
func (m *Manager) RegisterBusShutdown(name string, shutdown func(ctx context.Context) error) {
	m.RegisterHook(ShutdownHook{
		Name:     name,
		Phase:    PhaseBus,
		Timeout:  5 * time.Second,
		Shutdown: shutdown,
	})
}

// RegisterLeaderShutdown registers a leader election shutdown hook
func (m *Manager) RegisterLeaderShutdown(name string, shutdown func(ctx context.Context) error) {
	m.RegisterHook(ShutdownHook{
		Name:     name,
		Phase:    PhaseLeader,
		Timeout:  5 * time.Second,
		Shutdown: shutdown,
	})
}

// RegisterPresenceShutdown registers a presence shutdown hook
func (m *Manager) RegisterPresenceShutdown(name string, shutdown func(ctx context.Context) error) {
	m.RegisterHook(ShutdownHook{
		Name:     name,
		Phase:    PhasePresence,
		Timeout:  5 * time.Second,
		Shutdown: shutdown,
	})
}

// RegisterDatabaseShutdown registers a database shutdown hook
func (m *Manager) RegisterDatabaseShutdown(name string, shutdown func(ctx context.Context) error) {
	m.RegisterHook(ShutdownHook{
		Name:     name,
		Phase:    PhaseDatabase,
		Timeout:  10 * time.Second,
		Shutdown: shutdown,
	})
}

// StopFunc adapts a blocking Stop method to a shutdown hook
func StopFunc(stop func()) func(ctx context.Context) error {
	return func(context.Context) error {
		stop()
		return nil
	}
}

// CloseFunc adapts a Close method to a shutdown hook
func CloseFunc(closeFn func() error) func(ctx context.Context) error {
	return func(context.Context) error {
		return closeFn()
	}
}

// WaitForSignal blocks until SIGINT or SIGTERM is received
func (m *Manager) WaitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case <-m.done:
		slog.Info("Shutdown triggered programmatically")
	}
}

// Shutdown triggers graceful shutdown
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		close(m.done)
	})
}

// Done is closed once Shutdown has been called
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Execute runs the shutdown sequence. Hooks within a phase run in parallel;
// phases run in order.
// Only the first call runs the hooks.
func (m *Manager) Execute() error {
	m.mu.Lock()
	if m.executed {
		m.mu.Unlock()
		return nil
	}
	m.executed = true
	hooks := make([]ShutdownHook, len(m.hooks))
	copy(hooks, m.hooks)
	timeout := m.shutdownTimeout
	m.mu.Unlock()

	slog.Info("Starting graceful shutdown", "hooks", len(hooks), "timeout", timeout)

	// Create overall context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Group hooks by phase
	phaseHooks := make(map[ShutdownPhase][]ShutdownHook)
	for _, hook := range hooks {
		phaseHooks[hook.Phase] = append(phaseHooks[hook.Phase], hook)
	}

	// Execute phases in order
	for _, phase := range phaseOrder {
		if len(phaseHooks[phase]) == 0 {
			continue
		}

		slog.Info("Executing shutdown phase", "phase", phase.String(), "hooks", len(phaseHooks[phase]))

		// Execute hooks in parallel within each phase
		var wg sync.WaitGroup
		for _, hook := range phaseHooks[phase] {
			wg.Add(1)
			go func(h ShutdownHook) {
				defer wg.Done()
				m.executeHook(ctx, h)
			}(hook)
		}
		wg.Wait()

		// Check if context was cancelled
		if ctx.Err() != nil {
			slog.Warn("Shutdown timeout reached, forcing exit")
			return ctx.Err()
		}
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

// executeHook runs a single shutdown hook with its own timeout
func (m *Manager) executeHook(parentCtx context.Context, hook ShutdownHook) {
	ctx, cancel := context.WithTimeout(parentCtx, hook.Timeout)
	defer cancel()

	slog.Debug("Executing shutdown hook", "hook", hook.Name, "timeout", hook.Timeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- hook.Shutdown(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Shutdown hook failed", "error", err, "hook", hook.Name, "phase", hook.Phase.String())
		} else {
			slog.Debug("Shutdown hook completed", "hook", hook.Name)
		}
	case <-ctx.Done():
		slog.Warn("Shutdown hook timed out", "hook", hook.Name)
	}
}
