package socket

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"go.ember.chat/internal/bus"
	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/events"
)

// worker handles messages sent by an authenticated client
type worker struct {
	conn    *conn
	pub     bus.Publisher
	userID  string
	limiter *rate.Limiter
	log     *slog.Logger
}

func newWorker(c *conn, pub bus.Publisher, userID string, cfg Config, log *slog.Logger) *worker {
	limit := rate.Inf
	if cfg.MessageRate > 0 {
		limit = rate.Limit(cfg.MessageRate)
	}
	burst := cfg.MessageBurst
	if burst <= 0 {
		burst = 1
	}

	return &worker{
		conn:    c,
		pub:     pub,
		userID:  userID,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (w *worker) run(ctx context.Context) error {
	for {
		frameType, data, err := w.conn.read()
		if err != nil {
			return err
		}

		if !w.limiter.Allow() {
			metrics.SocketClientMessages.WithLabelValues("unknown", "rate_limited").Inc()
			continue
		}

		msg, err := w.conn.codec.decode(frameType, data)
		if err != nil {
			metrics.SocketClientMessages.WithLabelValues("unknown", "malformed").Inc()
			if err := w.conn.write(events.MalformedData(err.Error())); err != nil {
				return err
			}
			continue
		}

		if err := w.handle(ctx, msg); err != nil {
			return err
		}
		metrics.SocketClientMessages.WithLabelValues(msg.Type, "handled").Inc()
	}
}

// handle returns an error only when the connection is no longer writable
func (w *worker) handle(ctx context.Context, msg *events.ClientMessage) error {
	switch msg.Type {
	case events.ClientAuthenticate:
		return w.conn.write(events.AlreadyAuthenticated)

	case events.ClientBeginTyping:
		w.publish(ctx, msg.Channel, &events.ChannelStartTyping{ID: msg.Channel, User: w.userID})

	case events.ClientEndTyping:
		w.publish(ctx, msg.Channel, &events.ChannelStopTyping{ID: msg.Channel, User: w.userID})

	case events.ClientPing:
		// An edge proxy may have answered already
		if !msg.HasResponded() {
			return w.conn.write(&events.Pong{Data: *msg.Data})
		}
	}
	return nil
}

func (w *worker) publish(ctx context.Context, topic string, ev events.Event) {
	if err := events.Publish(ctx, w.pub, topic, ev); err != nil {
		w.log.Warn("Failed to publish typing", "channelId", topic, "error", err)
	}
}
