package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"go.ember.chat/internal/common/metrics"
)

// RedisBus publishes over Redis pub/sub channels
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus creates a bus on an existing Redis client. The client is
// shared with presence and is not closed by the bus.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Backend() Backend { return BackendRedis }

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		metrics.BusPublishErrors.WithLabelValues(string(BackendRedis)).Inc()
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	metrics.BusPublished.WithLabelValues(string(BackendRedis)).Inc()
	return nil
}

// NewSubscriber opens a dedicated pub/sub connection
func (b *RedisBus) NewSubscriber(ctx context.Context) (Subscriber, error) {
	ps := b.client.Subscribe(ctx)
	return &redisSubscriber{ps: ps}, nil
}

func (b *RedisBus) Close() error {
	return nil
}

type redisSubscriber struct {
	ps *redis.PubSub
}

func (s *redisSubscriber) Subscribe(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	return translate(s.ps.Subscribe(ctx, topics...))
}

func (s *redisSubscriber) Unsubscribe(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	return translate(s.ps.Unsubscribe(ctx, topics...))
}

func (s *redisSubscriber) Receive(ctx context.Context) (Message, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return Message{}, translate(err)
	}
	metrics.BusReceived.WithLabelValues(string(BackendRedis)).Inc()
	return Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}, nil
}

func (s *redisSubscriber) Close() error {
	return translate(s.ps.Close())
}

func translate(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return err
}
