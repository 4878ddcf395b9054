package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"go.ember.chat/internal/common/metrics"
)

// NATSBus publishes over NATS core subjects
type NATSBus struct {
	conn       *nats.Conn
	backend    Backend
	bufferSize int
}

// NewNATSBus connects to a NATS server
func NewNATSBus(url string, size int) (*NATSBus, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSBus{conn: conn, backend: BackendNATS, bufferSize: bufferSize(size)}, nil
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("ember-socket"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (b *NATSBus) Backend() Backend { return b.backend }

// Conn returns the underlying connection
func (b *NATSBus) Conn() *nats.Conn { return b.conn }

// Connected reports whether the NATS connection is up
func (b *NATSBus) Connected() bool { return b.conn.IsConnected() }

func (b *NATSBus) Ping(ctx context.Context) error {
	if b.conn.IsClosed() {
		return ErrClosed
	}
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected: %s", b.conn.Status())
	}
	return b.conn.FlushWithContext(ctx)
}

func (b *NATSBus) Publish(_ context.Context, topic string, payload []byte) error {
	if err := b.conn.Publish(topic, payload); err != nil {
		metrics.BusPublishErrors.WithLabelValues(string(b.backend)).Inc()
		if err == nats.ErrConnectionClosed {
			return ErrClosed
		}
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	metrics.BusPublished.WithLabelValues(string(b.backend)).Inc()
	return nil
}

func (b *NATSBus) NewSubscriber(context.Context) (Subscriber, error) {
	if b.conn.IsClosed() {
		return nil, ErrClosed
	}
	return &natsSubscriber{
		conn:    b.conn,
		backend: b.backend,
		subs:    make(map[string]*nats.Subscription),
		ch:      make(chan *nats.Msg, b.bufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Close drains the connection
func (b *NATSBus) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	return b.conn.Drain()
}

type natsSubscriber struct {
	conn    *nats.Conn
	backend Backend

	mu   sync.Mutex
	subs map[string]*nats.Subscription
	ch   chan *nats.Msg
	done chan struct{}
	once sync.Once
}

func (s *natsSubscriber) Subscribe(_ context.Context, topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range topics {
		if _, ok := s.subs[t]; ok {
			continue
		}
		sub, err := s.conn.ChanSubscribe(t, s.ch)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", t, err)
		}
		s.subs[t] = sub
	}

	// Make sure the server has registered interest before returning
	if err := s.conn.Flush(); err != nil {
		slog.Debug("NATS flush after subscribe failed", "error", err)
	}
	return nil
}

func (s *natsSubscriber) Unsubscribe(_ context.Context, topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range topics {
		sub, ok := s.subs[t]
		if !ok {
			continue
		}
		delete(s.subs, t)
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			return fmt.Errorf("failed to unsubscribe from %s: %w", t, err)
		}
	}
	return nil
}

func (s *natsSubscriber) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.ch:
		metrics.BusReceived.WithLabelValues(string(s.backend)).Inc()
		return Message{Topic: msg.Subject, Payload: msg.Data}, nil
	case <-s.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *natsSubscriber) Close() error {
	s.mu.Lock()
	for t, sub := range s.subs {
		sub.Unsubscribe()
		delete(s.subs, t)
	}
	s.mu.Unlock()

	s.once.Do(func() { close(s.done) })
	return nil
}
