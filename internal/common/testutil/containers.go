// Package testutil starts throwaway backing services for integration tests
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ServiceContainer wraps a generic container exposing a single port
type ServiceContainer struct {
	Container testcontainers.Container
	Endpoint  string
}

// StartMongo starts a standalone MongoDB and returns its connection URI
func StartMongo(ctx context.Context, t *testing.T) (*ServiceContainer, error) {
	t.Helper()
	return start(ctx, "mongo:7", "27017/tcp", "mongodb://")
}

// StartRedis starts a Redis server and returns its address
func StartRedis(ctx context.Context, t *testing.T) (*ServiceContainer, error) {
	t.Helper()
	return start(ctx, "redis:7-alpine", "6379/tcp", "")
}

func start(ctx context.Context, image string, port nat.Port, scheme string) (*ServiceContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(port)},
			WaitingFor:   wait.ForListeningPort(port),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", image, err)
	}

	endpoint, err := container.PortEndpoint(ctx, port, "")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}

	return &ServiceContainer{
		Container: container,
		Endpoint:  scheme + endpoint,
	}, nil
}

// Terminate stops and removes the container
func (s *ServiceContainer) Terminate(ctx context.Context) error {
	if s.Container != nil {
		return s.Container.Terminate(ctx)
	}
	return nil
}
