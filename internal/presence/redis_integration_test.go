//go:build integration

// This file contains integration tests that require Docker
package presence

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"go.ember.chat/internal/common/testutil"
)

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	svc, err := testutil.StartRedis(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start Redis: %v", err)
	}
	t.Cleanup(func() { svc.Terminate(context.Background()) })

	client := redis.NewClient(&redis.Options{Addr: svc.Endpoint})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	exercise(t, NewRedisStore(startRedis(ctx, t), "r1"))
}

func TestRedisStoreIntegration_Sweep(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	client := startRedis(ctx, t)

	live := NewRedisStore(client, "live")
	dead := NewRedisStore(client, "dead")

	live.Heartbeat(ctx, "live", time.Minute)
	dead.Heartbeat(ctx, "dead", 200*time.Millisecond)
	live.CreateSession(ctx, "A", 0)
	dead.CreateSession(ctx, "B", 0)
	dead.CreateSession(ctx, "A", 0)

	time.Sleep(400 * time.Millisecond)

	swept, err := live.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(swept) != 1 || swept[0] != "dead" {
		t.Errorf("Expected [dead] swept, got %v", swept)
	}

	online, _ := live.FilterOnline(ctx, []string{"A", "B"})
	if len(online) != 1 || online[0] != "A" {
		t.Errorf("Expected only A online, got %v", online)
	}

	n, _ := client.SCard(ctx, keyUser("A")).Result()
	if n != 1 {
		t.Errorf("Expected A to keep 1 session, got %d", n)
	}
}
