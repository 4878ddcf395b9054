package leader

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Lua scripts for atomic check-and-act on a lock we own
var (
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
)

// NewRedisElector creates a leader elector using SET NX PX on a Redis key
func NewRedisElector(client *redis.Client, cfg *Config) Elector {
	if cfg == nil {
		cfg = DefaultConfig("default-leader")
	}
	cfg = cfg.withDefaults()
	return newElector(&redisLock{client: client, config: cfg}, cfg)
}

type redisLock struct {
	client *redis.Client
	config *Config
}

func (l *redisLock) name() string { return "redis" }

func (l *redisLock) key() string { return "leader:" + l.config.LockName }

func (l *redisLock) prepare(context.Context) {}

func (l *redisLock) acquire(ctx context.Context) bool {
	ok, err := l.client.SetNX(ctx, l.key(), l.config.InstanceID, l.config.TTL).Result()
	if err != nil {
		slog.Error("Failed to acquire Redis leader lock",
			"error", err,
			"lockName", l.config.LockName)
		return false
	}
	if ok {
		return true
	}

	// Lock exists - it may be ours from before a restart
	owner, err := l.client.Get(ctx, l.key()).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Failed to check lock owner", "error", err)
		}
		return false
	}
	if owner == l.config.InstanceID {
		return l.refresh(ctx)
	}

	slog.Debug("Lock held by another instance",
		"instanceId", l.config.InstanceID,
		"owner", owner,
		"lockName", l.config.LockName)
	return false
}

func (l *redisLock) refresh(ctx context.Context) bool {
	result, err := refreshScript.Run(ctx, l.client, []string{l.key()},
		l.config.InstanceID, l.config.TTL.Milliseconds()).Int()
	if err != nil {
		slog.Error("Failed to refresh Redis leader lock",
			"error", err,
			"lockName", l.config.LockName)
		return false
	}
	return result != 0
}

func (l *redisLock) release(ctx context.Context) {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key()}, l.config.InstanceID).Int()
	if err != nil {
		slog.Error("Failed to release Redis leader lock",
			"error", err,
			"lockName", l.config.LockName)
		return
	}
	if result > 0 {
		slog.Info("Released Redis leader lock",
			"instanceId", l.config.InstanceID,
			"lockName", l.config.LockName)
	}
}

// CurrentRedisLeader returns the instance holding the lock, empty if none
func CurrentRedisLeader(ctx context.Context, client *redis.Client, lockName string) (string, error) {
	owner, err := client.Get(ctx, "leader:"+lockName).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}
