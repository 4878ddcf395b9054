//go:build integration

// This file contains integration tests that require Docker
package leader

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"go.ember.chat/internal/common/testutil"
)

func TestRedisElectorIntegration_SingleLeader(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	svc, err := testutil.StartRedis(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start Redis: %v", err)
	}
	defer svc.Terminate(ctx)

	client := redis.NewClient(&redis.Options{Addr: svc.Endpoint})
	defer client.Close()

	cfg := func(id string) *Config {
		return &Config{InstanceID: id, LockName: "janitor", TTL: 2 * time.Second, RefreshInterval: 200 * time.Millisecond}
	}

	a := NewRedisElector(client, cfg("a"))
	b := NewRedisElector(client, cfg("b"))
	a.Start(ctx)
	time.Sleep(300 * time.Millisecond)
	b.Start(ctx)
	time.Sleep(500 * time.Millisecond)

	if !a.IsPrimary() || b.IsPrimary() {
		t.Fatalf("Expected only a to be primary, got a=%v b=%v", a.IsPrimary(), b.IsPrimary())
	}

	leader, err := CurrentRedisLeader(ctx, client, "janitor")
	if err != nil || leader != "a" {
		t.Errorf("Expected leader a, got %q (%v)", leader, err)
	}

	// Handover after a releases
	a.Stop()
	deadline := time.Now().Add(3 * time.Second)
	for !b.IsPrimary() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if !b.IsPrimary() {
		t.Error("Expected b to take over")
	}
	b.Stop()
}
