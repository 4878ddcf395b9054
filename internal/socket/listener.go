package socket

import (
	"context"
	"log/slog"

	"go.ember.chat/internal/bus"
	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/events"
	"go.ember.chat/internal/state"
)

// listener forwards bus events through the session state to the client.
// It owns the state: nothing else touches it while the loop runs.
type listener struct {
	state  *state.State
	sub    bus.Subscriber
	conn   *conn
	log    *slog.Logger
	active map[string]struct{}
}

func newListener(st *state.State, sub bus.Subscriber, c *conn, log *slog.Logger) *listener {
	return &listener{
		state:  st,
		sub:    sub,
		conn:   c,
		log:    log,
		active: make(map[string]struct{}),
	}
}

func (l *listener) run(ctx context.Context) error {
	for {
		if err := l.apply(ctx); err != nil {
			return err
		}

		msg, err := l.sub.Receive(ctx)
		if err != nil {
			return err
		}

		ev, err := events.Decode(msg.Payload)
		if err != nil {
			metrics.SocketEventDecodeErrors.Inc()
			l.log.Warn("Failed to decode event", "topic", msg.Topic, "error", err)
			continue
		}

		out := l.state.HandleIncomingEvent(ctx, ev)
		if out == nil {
			continue
		}
		if err := l.conn.write(out); err != nil {
			return err
		}
		metrics.SocketEventsDelivered.WithLabelValues(out.EventType()).Inc()
	}
}

// apply pushes the pending subscription change to the bus. A reset is
// diffed against the topics already held.
func (l *listener) apply(ctx context.Context) error {
	change := l.state.ApplyState()

	var add, remove []string
	switch change.Kind {
	case state.ChangeNone:
		return nil

	case state.ChangeReset:
		metrics.StateSubscriptionChanges.WithLabelValues("reset").Inc()
		desired := make(map[string]struct{})
		for _, topic := range l.state.Subscriptions() {
			desired[topic] = struct{}{}
			if _, ok := l.active[topic]; !ok {
				add = append(add, topic)
			}
		}
		for topic := range l.active {
			if _, ok := desired[topic]; !ok {
				remove = append(remove, topic)
			}
		}

	case state.ChangeUpdate:
		add, remove = change.Add, change.Remove
	}

	if len(remove) > 0 {
		if err := l.sub.Unsubscribe(ctx, remove...); err != nil {
			return err
		}
		for _, topic := range remove {
			delete(l.active, topic)
		}
		metrics.StateSubscriptionChanges.WithLabelValues("unsubscribe").Add(float64(len(remove)))
		l.log.Debug("Unsubscribed", "topics", remove)
	}

	if len(add) > 0 {
		if err := l.sub.Subscribe(ctx, add...); err != nil {
			return err
		}
		for _, topic := range add {
			l.active[topic] = struct{}{}
		}
		metrics.StateSubscriptionChanges.WithLabelValues("subscribe").Add(float64(len(add)))
		l.log.Debug("Subscribed", "topics", add)
	}

	return nil
}
