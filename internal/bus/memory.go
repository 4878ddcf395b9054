package bus

import (
	"context"
	"log/slog"
	"sync"

	"go.ember.chat/internal/common/metrics"
)

// MemoryBus delivers messages between subscribers of one process
type MemoryBus struct {
	mu         sync.RWMutex
	topics     map[string]map[*memorySubscriber]struct{}
	subs       map[*memorySubscriber]struct{}
	bufferSize int
	closed     bool
}

// NewMemoryBus creates an in-process bus. Each subscriber buffers up to
// size messages; further messages are dropped until it catches up.
func NewMemoryBus(size int) *MemoryBus {
	return &MemoryBus{
		topics:     make(map[string]map[*memorySubscriber]struct{}),
		subs:       make(map[*memorySubscriber]struct{}),
		bufferSize: bufferSize(size),
	}
}

func (b *MemoryBus) Backend() Backend { return BackendMemory }

func (b *MemoryBus) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Publish delivers payload to every current subscriber of topic
func (b *MemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		metrics.BusPublishErrors.WithLabelValues(string(BackendMemory)).Inc()
		return ErrClosed
	}

	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			slog.Warn("Dropping message for slow subscriber", "topic", topic)
		}
	}

	metrics.BusPublished.WithLabelValues(string(BackendMemory)).Inc()
	return nil
}

func (b *MemoryBus) NewSubscriber(context.Context) (Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscriber{
		bus:    b,
		topics: make(map[string]struct{}),
		ch:     make(chan Message, b.bufferSize),
		done:   make(chan struct{}),
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Close closes every subscriber and rejects further use
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*memorySubscriber]struct{})
	b.topics = make(map[string]map[*memorySubscriber]struct{})
	b.closed = true
	b.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
	}
	return nil
}

func (b *MemoryBus) add(sub *memorySubscriber, topic string) {
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[*memorySubscriber]struct{})
		b.topics[topic] = set
	}
	set[sub] = struct{}{}
}

func (b *MemoryBus) remove(sub *memorySubscriber, topic string) {
	set, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.topics, topic)
	}
}

type memorySubscriber struct {
	bus    *MemoryBus
	topics map[string]struct{}
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

func (s *memorySubscriber) Subscribe(_ context.Context, topics ...string) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.bus.closed || s.isClosed() {
		return ErrClosed
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
		s.bus.add(s, t)
	}
	return nil
}

func (s *memorySubscriber) Unsubscribe(_ context.Context, topics ...string) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	for _, t := range topics {
		delete(s.topics, t)
		s.bus.remove(s, t)
	}
	return nil
}

func (s *memorySubscriber) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.ch:
		metrics.BusReceived.WithLabelValues(string(BackendMemory)).Inc()
		return msg, nil
	case <-s.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *memorySubscriber) Close() error {
	s.bus.mu.Lock()
	for t := range s.topics {
		s.bus.remove(s, t)
	}
	s.topics = make(map[string]struct{})
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.shutdown()
	return nil
}

func (s *memorySubscriber) shutdown() {
	s.once.Do(func() { close(s.done) })
}

func (s *memorySubscriber) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
