package leader

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"go.ember.chat/internal/config"
)

// New creates the elector selected by cfg. With election disabled the
// instance is always primary.
func New(cfg config.LeaderConfig, lockName string, rdb *redis.Client, db *mongo.Database) (Elector, error) {
	if !cfg.Enabled {
		return NewStatic(cfg.InstanceID), nil
	}

	ec := &Config{
		InstanceID:      cfg.InstanceID,
		LockName:        lockName,
		TTL:             cfg.TTL,
		RefreshInterval: cfg.RefreshInterval,
	}

	switch cfg.Backend {
	case "redis", "":
		if rdb == nil {
			return nil, fmt.Errorf("redis leader election requires a redis client")
		}
		return NewRedisElector(rdb, ec), nil
	case "mongo":
		if db == nil {
			return nil, fmt.Errorf("mongo leader election requires a database")
		}
		return NewMongoElector(db, ec), nil
	default:
		return nil, fmt.Errorf("unknown leader backend: %s", cfg.Backend)
	}
}
