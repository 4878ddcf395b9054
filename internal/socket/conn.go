package socket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go.ember.chat/internal/events"
)

// conn wraps a websocket with a mutex guarded writer. Reads happen on a
// single goroutine at a time: the handshake, then the worker.
type conn struct {
	id    string
	ws    *websocket.Conn
	codec codec

	writeTimeout time.Duration
	pongTimeout  time.Duration

	mu sync.Mutex
}

func newConn(id string, ws *websocket.Conn, c codec, cfg Config) *conn {
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}

	cn := &conn{
		id:           id,
		ws:           ws,
		codec:        c,
		writeTimeout: cfg.WriteTimeout,
		pongTimeout:  cfg.PongTimeout,
	}
	if cn.writeTimeout <= 0 {
		cn.writeTimeout = DefaultConfig().WriteTimeout
	}

	cn.extendDeadline()
	ws.SetPongHandler(func(string) error {
		cn.extendDeadline()
		return nil
	})
	return cn
}

func (c *conn) extendDeadline() {
	if c.pongTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
	}
}

// write encodes and sends one event
func (c *conn) write(ev events.Event) error {
	frameType, data, err := c.codec.encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(frameType, data)
}

// read returns the next data frame
func (c *conn) read() (int, []byte, error) {
	frameType, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	c.extendDeadline()
	return frameType, data, nil
}

// keepalive sends ping frames until ctx is done
func (c *conn) keepalive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}

// close sends a close frame and closes the underlying connection
func (c *conn) close(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = c.ws.Close()
}
