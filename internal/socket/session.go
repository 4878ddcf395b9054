package socket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"go.ember.chat/internal/auth"
	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
	"go.ember.chat/internal/state"
)

const cleanupTimeout = 5 * time.Second

// serve runs a connection from handshake to presence cleanup
func (s *Server) serve(ctx context.Context, c *conn, token string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.ws.Close()

	go c.keepalive(ctx, s.cfg.PingInterval)

	if token == "" {
		var err error
		if token, err = s.awaitAuthenticate(c); err != nil {
			return
		}
	}

	user, err := s.deps.Auth.Authenticate(ctx, token)
	if err != nil {
		s.reject(c, err)
		return
	}

	log := slog.With("connId", c.id, "userId", user.ID)
	log.Info("Session authenticated", "username", user.Username)
	metrics.SocketSessions.WithLabelValues("authenticated").Inc()

	if err := c.write(events.Authenticated{}); err != nil {
		return
	}

	s.runSession(ctx, cancel, c, user, log)
}

// awaitAuthenticate reads until the client sends Authenticate. Any other
// valid message is ignored.
func (s *Server) awaitAuthenticate(c *conn) (string, error) {
	for {
		frameType, data, err := c.read()
		if err != nil {
			return "", err
		}

		msg, err := c.codec.decode(frameType, data)
		if err != nil {
			metrics.SocketClientMessages.WithLabelValues("unknown", "malformed").Inc()
			if err := c.write(events.MalformedData(err.Error())); err != nil {
				return "", err
			}
			continue
		}

		if msg.Type == events.ClientAuthenticate {
			metrics.SocketClientMessages.WithLabelValues(msg.Type, "handled").Inc()
			return msg.Token, nil
		}
		metrics.SocketClientMessages.WithLabelValues(msg.Type, "ignored").Inc()
	}
}

// reject tells the client why authentication failed and closes
func (s *Server) reject(c *conn, err error) {
	var frame events.WebSocketError
	switch {
	case errors.Is(err, auth.ErrInvalidSession):
		frame = events.InvalidSession
		metrics.SocketSessions.WithLabelValues("invalid_session").Inc()
	case errors.Is(err, auth.ErrOnboardingNotFinished):
		frame = events.OnboardingNotFinished
		metrics.SocketSessions.WithLabelValues("onboarding").Inc()
	default:
		slog.Error("Failed to authenticate socket", "connId", c.id, "error", err)
		frame = events.InternalError("authenticate")
		metrics.SocketSessions.WithLabelValues("auth_error").Inc()
	}

	_ = c.write(frame)
	c.close(websocket.ClosePolicyViolation, frame.Kind)
}

func (s *Server) runSession(ctx context.Context, cancel context.CancelFunc, c *conn, user *models.User, log *slog.Logger) {
	session, first, err := s.deps.Presence.CreateSession(ctx, user.ID, 0)
	if err != nil {
		log.Warn("Failed to create presence session", "error", err)
	}

	st := state.New(*user, s.deps.Store, s.deps.Presence)
	started := time.Now()

	defer func() {
		metrics.SocketSessionDuration.Observe(time.Since(started).Seconds())
		if session.ID == "" {
			return
		}

		cleanup, done := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer done()

		last, err := s.deps.Presence.DeleteSession(cleanup, user.ID, session)
		if err != nil {
			log.Warn("Failed to delete presence session", "error", err)
			return
		}
		if last {
			if err := st.BroadcastPresenceChange(cleanup, s.deps.Bus, false); err != nil {
				log.Warn("Failed to broadcast offline presence", "error", err)
			}
		}
	}()

	ready, readyErr := st.GenerateReadyPayload(ctx)
	if readyErr != nil {
		log.Error("Failed to generate ready payload", "error", readyErr)
		metrics.SocketSessions.WithLabelValues("ready_failed").Inc()
		_ = c.write(events.InternalError("ready"))
		return
	}

	sub, subErr := s.deps.Bus.NewSubscriber(ctx)
	if subErr != nil {
		log.Error("Failed to open bus subscriber", "error", subErr)
		_ = c.write(events.InternalError("subscribe"))
		return
	}
	defer sub.Close()

	l := newListener(st, sub, c, log)

	// Subscribe before Ready goes out so nothing published after the
	// snapshot is missed
	if err := l.apply(ctx); err != nil {
		log.Error("Failed to subscribe", "error", err)
		_ = c.write(events.InternalError("subscribe"))
		return
	}
	if err := c.write(ready); err != nil {
		return
	}

	if first {
		if err := st.BroadcastPresenceChange(ctx, s.deps.Bus, true); err != nil {
			log.Warn("Failed to broadcast online presence", "error", err)
		}
	}

	w := newWorker(c, s.deps.Bus, user.ID, s.cfg, log)

	// Either loop ending ends the session
	done := make(chan error, 2)
	go func() { done <- l.run(ctx) }()
	go func() { done <- w.run(ctx) }()

	reason := <-done
	cancel()
	_ = c.ws.Close()
	<-done

	log.Debug("Session ended", "reason", reason, "duration", time.Since(started))
}
