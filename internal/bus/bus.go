// Package bus provides topic-based pub/sub transport for encoded events.
//
// Every socket connection owns one Subscriber and changes its topic set
// as the session's visibility changes. Payloads are opaque bytes; encoding
// lives in the events package.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"go.ember.chat/internal/config"
)

// Backend identifies a bus implementation
type Backend string

const (
	BackendRedis    Backend = "redis"    // Redis pub/sub
	BackendNATS     Backend = "nats"     // External NATS
	BackendEmbedded Backend = "embedded" // In-process NATS for dev
	BackendMemory   Backend = "memory"   // Single-process, tests
)

var (
	// ErrClosed is returned by operations on a closed bus or subscriber
	ErrClosed = errors.New("bus closed")

	// ErrUnknownBackend indicates an unsupported bus type in configuration
	ErrUnknownBackend = errors.New("unknown bus backend")
)

// Message is a payload received on a topic
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher sends payloads to topics
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber receives payloads for a mutable set of topics
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) error
	Unsubscribe(ctx context.Context, topics ...string) error

	// Receive blocks until a message arrives, ctx is done or the subscriber closes
	Receive(ctx context.Context) (Message, error)

	Close() error
}

// Bus creates subscribers and publishes to all of them
type Bus interface {
	Publisher

	// NewSubscriber opens a subscriber with no topics
	NewSubscriber(ctx context.Context) (Subscriber, error)

	// Backend reports which implementation is in use
	Backend() Backend

	// Ping checks the transport is reachable
	Ping(ctx context.Context) error

	Close() error
}

// New creates the bus selected by cfg. The Redis client is only used
// when the Redis backend is selected.
func New(cfg config.BusConfig, rdb *redis.Client) (Bus, error) {
	switch Backend(cfg.Type) {
	case BackendRedis, "":
		if rdb == nil {
			return nil, fmt.Errorf("redis bus requires a redis client")
		}
		return NewRedisBus(rdb), nil
	case BackendNATS:
		return NewNATSBus(cfg.NATSURL, cfg.BufferSize)
	case BackendEmbedded:
		return NewEmbeddedBus(EmbeddedConfig{
			Host:       cfg.EmbeddedHost,
			Port:       cfg.EmbeddedPort,
			BufferSize: cfg.BufferSize,
		})
	case BackendMemory:
		return NewMemoryBus(cfg.BufferSize), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Type)
	}
}

const defaultBufferSize = 256

func bufferSize(n int) int {
	if n <= 0 {
		return defaultBufferSize
	}
	return n
}
