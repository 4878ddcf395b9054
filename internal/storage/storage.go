// Package storage provides read access to the documents the socket needs.
// Writes happen elsewhere; the socket only ever reads.
package storage

import (
	"context"

	"go.ember.chat/internal/models"
)

// Storage defines the read operations used by the socket.
// Missing entities yield repository.ErrNotFound.
// All implementations must be wrapped with instrumentation.
type Storage interface {
	// User operations
	FetchUser(ctx context.Context, id string) (*models.User, error)
	FetchUsers(ctx context.Context, ids []string) ([]models.User, error)
	FetchUserBySessionToken(ctx context.Context, tokenHash string) (*models.User, error)
	FetchMutualServerIDs(ctx context.Context, userA, userB string) ([]string, error)
	FetchMutualChannelIDs(ctx context.Context, userA, userB string) ([]string, error)

	// Server operations
	FetchServer(ctx context.Context, id string) (*models.Server, error)
	FetchServers(ctx context.Context, ids []string) ([]models.Server, error)

	// Member operations
	FetchMember(ctx context.Context, serverID, userID string) (*models.Member, error)
	FetchAllMemberships(ctx context.Context, userID string) ([]models.Member, error)

	// Channel operations
	FetchChannel(ctx context.Context, id string) (*models.Channel, error)
	FetchChannels(ctx context.Context, ids []string) ([]models.Channel, error)
	FindDirectMessages(ctx context.Context, userID string) ([]models.Channel, error)

	// Emoji operations
	FetchEmojiByParentIDs(ctx context.Context, parentIDs []string) ([]models.Emoji, error)
}
