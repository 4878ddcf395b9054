package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedConfig holds configuration for the in-process NATS server
type EmbeddedConfig struct {
	// Host is the bind address (default: 127.0.0.1)
	Host string

	// Port is the server port; -1 picks a random free port
	Port int

	// BufferSize is the per-subscriber message buffer
	BufferSize int
}

// EmbeddedBus is a NATS bus backed by a server running in this process
type EmbeddedBus struct {
	*NATSBus
	server *server.Server
}

// NewEmbeddedBus starts a NATS server and connects a bus to it
func NewEmbeddedBus(cfg EmbeddedConfig) (*EmbeddedBus, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 4222
	}

	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server failed to start within timeout")
	}

	slog.Info("Embedded NATS server started", "url", ns.ClientURL())

	conn, err := connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, err
	}

	return &EmbeddedBus{
		NATSBus: &NATSBus{conn: conn, backend: BackendEmbedded, bufferSize: bufferSize(cfg.BufferSize)},
		server:  ns,
	}, nil
}

// ClientURL returns the URL other processes can connect to
func (e *EmbeddedBus) ClientURL() string {
	return e.server.ClientURL()
}

// Close drains the connection and shuts the server down
func (e *EmbeddedBus) Close() error {
	slog.Info("Shutting down embedded NATS server")

	e.NATSBus.conn.Close()
	e.server.Shutdown()
	e.server.WaitForShutdown()
	return nil
}
