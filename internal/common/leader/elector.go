// Package leader provides distributed leader election over Redis or MongoDB.
//
// An Elector repeatedly tries to take a named lock with a TTL and keeps
// refreshing it while it holds it. Work that must run on one instance at a
// time checks IsPrimary or hooks the leadership callbacks.
package leader

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go.ember.chat/internal/common/metrics"
)

// Elector is a participant in a leader election
type Elector interface {
	Start(ctx context.Context) error
	Stop()
	IsPrimary() bool
	InstanceID() string
	OnBecomeLeader(fn func())
	OnLoseLeadership(fn func())
}

// Config holds configuration for leader election
type Config struct {
	// InstanceID uniquely identifies this instance (defaults to hostname)
	InstanceID string

	// LockName is the name of the lock to acquire (e.g., "presence-janitor")
	LockName string

	// TTL is how long the lock is valid before expiring (default: 30s)
	TTL time.Duration

	// RefreshInterval is how often to refresh the lock while primary (default: 10s)
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(lockName string) *Config {
	return &Config{
		InstanceID:      defaultInstanceID(),
		LockName:        lockName,
		TTL:             30 * time.Second,
		RefreshInterval: 10 * time.Second,
	}
}

func defaultInstanceID() string {
	if host, _ := os.Hostname(); host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return "instance-" + uuid.NewString()
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.InstanceID == "" {
		out.InstanceID = defaultInstanceID()
	}
	if out.LockName == "" {
		out.LockName = "default-leader"
	}
	if out.TTL <= 0 {
		out.TTL = 30 * time.Second
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = 10 * time.Second
	}
	return &out
}

// lock is a backend able to hold a named TTL lock for one instance
type lock interface {
	// acquire takes the lock if it is free, expired or already ours
	acquire(ctx context.Context) bool

	// refresh extends a lock we hold; false means we no longer hold it
	refresh(ctx context.Context) bool

	// release drops the lock if we hold it
	release(ctx context.Context)

	// prepare runs once before the election loop starts
	prepare(ctx context.Context)

	name() string
}

// elector drives a lock through the acquire/refresh cycle
type elector struct {
	lock             lock
	config           *Config
	isPrimary        atomic.Bool
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	started          atomic.Bool
	mu               sync.Mutex
	onBecomeLeader   func()
	onLoseLeadership func()
}

func newElector(l lock, cfg *Config) *elector {
	ctx, cancel := context.WithCancel(context.Background())
	return &elector{
		lock:   l,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnBecomeLeader sets a callback for when this instance becomes leader
func (e *elector) OnBecomeLeader(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBecomeLeader = fn
}

// OnLoseLeadership sets a callback for when this instance loses leadership
func (e *elector) OnLoseLeadership(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLoseLeadership = fn
}

// Start begins the leader election process
func (e *elector) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	e.lock.prepare(ctx)

	e.wg.Add(1)
	go e.electionLoop()

	slog.Info("Leader election started",
		"backend", e.lock.name(),
		"instanceId", e.config.InstanceID,
		"lockName", e.config.LockName,
		"ttl", e.config.TTL,
		"refreshInterval", e.config.RefreshInterval)

	return nil
}

// Stop stops the leader election and releases the lock if held
func (e *elector) Stop() {
	e.cancel()
	e.wg.Wait()

	if e.isPrimary.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.lock.release(ctx)
		e.demote("stopped")
	}

	slog.Info("Leader election stopped", "instanceId", e.config.InstanceID)
}

// IsPrimary returns true if this instance is currently the leader
func (e *elector) IsPrimary() bool {
	return e.isPrimary.Load()
}

// InstanceID returns the instance ID of this elector
func (e *elector) InstanceID() string {
	return e.config.InstanceID
}

func (e *elector) electionLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.RefreshInterval)
	defer ticker.Stop()

	// Try to acquire immediately
	e.tryAcquireOrRefresh()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.tryAcquireOrRefresh()
		}
	}
}

func (e *elector) tryAcquireOrRefresh() {
	ctx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
	defer cancel()

	if e.isPrimary.Load() {
		if e.lock.refresh(ctx) {
			return
		}
		slog.Warn("Lost leadership - refresh failed",
			"instanceId", e.config.InstanceID,
			"lockName", e.config.LockName)
		e.demote("refresh failed")
	}

	if e.lock.acquire(ctx) {
		e.promote()
	}
}

func (e *elector) promote() {
	if e.isPrimary.Swap(true) {
		return
	}
	metrics.LeaderElectionState.Set(1)
	slog.Info("Acquired leadership",
		"instanceId", e.config.InstanceID,
		"lockName", e.config.LockName)

	e.mu.Lock()
	fn := e.onBecomeLeader
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *elector) demote(reason string) {
	if !e.isPrimary.Swap(false) {
		return
	}
	metrics.LeaderElectionState.Set(0)
	slog.Debug("Leadership released", "reason", reason, "lockName", e.config.LockName)

	e.mu.Lock()
	fn := e.onLoseLeadership
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Static is an Elector that is always primary. It is used when election
// is disabled and only one instance runs.
type Static struct {
	id        string
	onBecome  func()
	startOnce sync.Once
}

// NewStatic creates an always-primary elector
func NewStatic(instanceID string) *Static {
	if instanceID == "" {
		instanceID = defaultInstanceID()
	}
	return &Static{id: instanceID}
}

func (s *Static) Start(context.Context) error {
	s.startOnce.Do(func() {
		metrics.LeaderElectionState.Set(1)
		if s.onBecome != nil {
			s.onBecome()
		}
	})
	return nil
}

func (s *Static) Stop() { metrics.LeaderElectionState.Set(0) }

func (s *Static) IsPrimary() bool { return true }

func (s *Static) InstanceID() string { return s.id }

func (s *Static) OnBecomeLeader(fn func()) { s.onBecome = fn }

func (s *Static) OnLoseLeadership(func()) {}
