package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"

	"go.ember.chat/internal/common/leader"
	"go.ember.chat/internal/common/metrics"
)

// exercise runs the shared Store contract against a store in region "r1"
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	a1, first, err := s.CreateSession(ctx, "A", 0)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !first {
		t.Error("Expected first session for A")
	}
	if a1.Region != "r1" || a1.ID == "" {
		t.Errorf("Unexpected session: %+v", a1)
	}

	a2, first, _ := s.CreateSession(ctx, "A", 1)
	if first {
		t.Error("Expected second session not to be first")
	}
	s.CreateSession(ctx, "B", 0)

	online, err := s.FilterOnline(ctx, []string{"C", "B", "A"})
	if err != nil {
		t.Fatalf("FilterOnline failed: %v", err)
	}
	if len(online) != 2 || online[0] != "B" || online[1] != "A" {
		t.Errorf("Expected [B A], got %v", online)
	}

	last, _ := s.DeleteSession(ctx, "A", a1)
	if last {
		t.Error("Expected A to keep a session")
	}
	last, _ = s.DeleteSession(ctx, "A", a2)
	if !last {
		t.Error("Expected A's last session to be reported")
	}
	if ok, _ := s.IsOnline(ctx, "A"); ok {
		t.Error("Expected A to be offline")
	}

	if err := s.ClearRegion(ctx, "r1"); err != nil {
		t.Fatalf("ClearRegion failed: %v", err)
	}
	if ok, _ := s.IsOnline(ctx, "B"); ok {
		t.Error("Expected B to be offline after clearing the region")
	}

	empty, _ := s.FilterOnline(ctx, nil)
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", empty)
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore("r1"))
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore("r1")
	s.now = func() time.Time { return now }

	s.Heartbeat(ctx, "r1", time.Minute)
	s.CreateSession(ctx, "A", 0)

	swept, _ := s.Sweep(ctx)
	if len(swept) != 0 {
		t.Errorf("Expected nothing swept, got %v", swept)
	}

	now = now.Add(2 * time.Minute)
	swept, _ = s.Sweep(ctx)
	if len(swept) != 1 || swept[0] != "r1" {
		t.Errorf("Expected [r1] swept, got %v", swept)
	}
	if ok, _ := s.IsOnline(ctx, "A"); ok {
		t.Error("Expected A to be offline after the sweep")
	}
}

// failingStore fails every call
type failingStore struct{ calls int }

var errDown = errors.New("redis down")

func (f *failingStore) CreateSession(context.Context, string, uint8) (Session, bool, error) {
	f.calls++
	return Session{}, false, errDown
}

func (f *failingStore) DeleteSession(context.Context, string, Session) (bool, error) {
	f.calls++
	return false, errDown
}

func (f *failingStore) FilterOnline(context.Context, []string) ([]string, error) {
	f.calls++
	return nil, errDown
}

func (f *failingStore) IsOnline(context.Context, string) (bool, error) {
	f.calls++
	return false, errDown
}

func (f *failingStore) ClearRegion(context.Context, string) error {
	f.calls++
	return errDown
}

func (f *failingStore) Heartbeat(context.Context, string, time.Duration) error {
	f.calls++
	return errDown
}

func (f *failingStore) Sweep(context.Context) ([]string, error) {
	f.calls++
	return nil, errDown
}

func TestGuarded_PassesThrough(t *testing.T) {
	exercise(t, NewGuarded(NewMemoryStore("r1"), "r1", BreakerConfig{}))
}

func TestGuarded_DegradesAndOpens(t *testing.T) {
	ctx := context.Background()
	inner := &failingStore{}
	g := NewGuarded(inner, "r1", BreakerConfig{Failures: 2, Timeout: time.Minute})

	session, first, err := g.CreateSession(ctx, "A", 0)
	if err != nil || first {
		t.Errorf("Expected degraded create, got first=%v err=%v", first, err)
	}
	if session.ID == "" || session.Region != "r1" {
		t.Errorf("Expected a local session, got %+v", session)
	}

	if _, err := g.FilterOnline(ctx, []string{"A"}); err != nil {
		t.Errorf("Expected no error from FilterOnline, got %v", err)
	}

	if g.State() != gobreaker.StateOpen {
		t.Fatalf("Expected breaker open, got %s", g.State())
	}
	if v := testutil.ToFloat64(metrics.PresenceCircuitBreakerState); v != metrics.CircuitBreakerOpen {
		t.Errorf("Expected breaker gauge %d, got %v", metrics.CircuitBreakerOpen, v)
	}

	before := testutil.ToFloat64(metrics.PresenceOperations.WithLabelValues("is_online", "rejected"))
	online, err := g.IsOnline(ctx, "A")
	if err != nil || online {
		t.Errorf("Expected degraded IsOnline, got %v %v", online, err)
	}
	if inner.calls != 2 {
		t.Errorf("Expected open breaker to skip the store, got %d calls", inner.calls)
	}
	after := testutil.ToFloat64(metrics.PresenceOperations.WithLabelValues("is_online", "rejected"))
	if after != before+1 {
		t.Errorf("Expected rejected counter to increase by 1, got %v -> %v", before, after)
	}

	last, err := g.DeleteSession(ctx, "A", session)
	if err != nil || last {
		t.Errorf("Expected degraded delete, got last=%v err=%v", last, err)
	}

	if err := g.Heartbeat(ctx, "r1", time.Second); err == nil {
		t.Error("Expected heartbeat to report the open breaker")
	}
}

func TestJanitor_SweepsOnlyAsLeader(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	store := NewMemoryStore("r1")
	store.now = func() time.Time { return now }
	store.Heartbeat(ctx, "r2", time.Second)

	cfg := JanitorConfig{Region: "r1", HeartbeatTTL: time.Minute, SweepInterval: time.Hour}

	follower := NewJanitor(store, followerElector{}, cfg)
	now = now.Add(time.Minute)
	follower.tick(ctx)
	if _, ok := store.regions["r2"]; !ok {
		t.Fatal("Expected follower not to sweep")
	}

	before := testutil.ToFloat64(metrics.PresenceRegionsSwept)
	j := NewJanitor(store, leader.NewStatic("solo"), cfg)
	j.tick(ctx)

	if _, ok := store.regions["r2"]; ok {
		t.Error("Expected stale region r2 to be swept")
	}
	if _, ok := store.regions["r1"]; !ok {
		t.Error("Expected own region to survive")
	}
	if after := testutil.ToFloat64(metrics.PresenceRegionsSwept); after != before+1 {
		t.Errorf("Expected swept counter +1, got %v -> %v", before, after)
	}
}

func TestJanitor_StartClearsRegion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("r1")
	store.CreateSession(ctx, "A", 0)

	j := NewJanitor(store, leader.NewStatic("solo"), JanitorConfig{
		Region:        "r1",
		HeartbeatTTL:  time.Minute,
		SweepInterval: time.Hour,
	})
	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer j.Stop()

	if ok, _ := store.IsOnline(ctx, "A"); ok {
		t.Error("Expected sessions of the previous run to be cleared")
	}
}

// followerElector never becomes primary
type followerElector struct{}

func (followerElector) Start(context.Context) error { return nil }

func (followerElector) Stop() {}

func (followerElector) IsPrimary() bool { return false }

func (followerElector) InstanceID() string { return "follower" }

func (followerElector) OnBecomeLeader(func()) {}

func (followerElector) OnLoseLeadership(func()) {}
