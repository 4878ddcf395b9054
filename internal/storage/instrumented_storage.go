package storage

import (
	"context"

	"go.ember.chat/internal/common/repository"
	"go.ember.chat/internal/models"
)

const (
	collectionUsers    = "users"
	collectionServers  = "servers"
	collectionMembers  = "server_members"
	collectionChannels = "channels"
	collectionEmojis   = "emojis"
	collectionSessions = "sessions"
)

// instrumentedStorage wraps a Storage with metrics and logging
type instrumentedStorage struct {
	inner Storage
}

// newInstrumentedStorage creates an instrumented wrapper around a Storage
func newInstrumentedStorage(inner Storage) Storage {
	return &instrumentedStorage{inner: inner}
}

// === User operations ===

func (s *instrumentedStorage) FetchUser(ctx context.Context, id string) (*models.User, error) {
	return repository.Instrument(ctx, collectionUsers, "FetchUser", func() (*models.User, error) {
		return s.inner.FetchUser(ctx, id)
	})
}

func (s *instrumentedStorage) FetchUsers(ctx context.Context, ids []string) ([]models.User, error) {
	return repository.Instrument(ctx, collectionUsers, "FetchUsers", func() ([]models.User, error) {
		return s.inner.FetchUsers(ctx, ids)
	})
}

func (s *instrumentedStorage) FetchUserBySessionToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return repository.Instrument(ctx, collectionSessions, "FetchUserBySessionToken", func() (*models.User, error) {
		return s.inner.FetchUserBySessionToken(ctx, tokenHash)
	})
}

func (s *instrumentedStorage) FetchMutualServerIDs(ctx context.Context, userA, userB string) ([]string, error) {
	return repository.Instrument(ctx, collectionMembers, "FetchMutualServerIDs", func() ([]string, error) {
		return s.inner.FetchMutualServerIDs(ctx, userA, userB)
	})
}

func (s *instrumentedStorage) FetchMutualChannelIDs(ctx context.Context, userA, userB string) ([]string, error) {
	return repository.Instrument(ctx, collectionChannels, "FetchMutualChannelIDs", func() ([]string, error) {
		return s.inner.FetchMutualChannelIDs(ctx, userA, userB)
	})
}

// === Server operations ===

func (s *instrumentedStorage) FetchServer(ctx context.Context, id string) (*models.Server, error) {
	return repository.Instrument(ctx, collectionServers, "FetchServer", func() (*models.Server, error) {
		return s.inner.FetchServer(ctx, id)
	})
}

func (s *instrumentedStorage) FetchServers(ctx context.Context, ids []string) ([]models.Server, error) {
	return repository.Instrument(ctx, collectionServers, "FetchServers", func() ([]models.Server, error) {
		return s.inner.FetchServers(ctx, ids)
	})
}

// === Member operations ===

func (s *instrumentedStorage) FetchMember(ctx context.Context, serverID, userID string) (*models.Member, error) {
	return repository.Instrument(ctx, collectionMembers, "FetchMember", func() (*models.Member, error) {
		return s.inner.FetchMember(ctx, serverID, userID)
	})
}

func (s *instrumentedStorage) FetchAllMemberships(ctx context.Context, userID string) ([]models.Member, error) {
	return repository.Instrument(ctx, collectionMembers, "FetchAllMemberships", func() ([]models.Member, error) {
		return s.inner.FetchAllMemberships(ctx, userID)
	})
}

// === Channel operations ===

func (s *instrumentedStorage) FetchChannel(ctx context.Context, id string) (*models.Channel, error) {
	return repository.Instrument(ctx, collectionChannels, "FetchChannel", func() (*models.Channel, error) {
		return s.inner.FetchChannel(ctx, id)
	})
}

func (s *instrumentedStorage) FetchChannels(ctx context.Context, ids []string) ([]models.Channel, error) {
	return repository.Instrument(ctx, collectionChannels, "FetchChannels", func() ([]models.Channel, error) {
		return s.inner.FetchChannels(ctx, ids)
	})
}

func (s *instrumentedStorage) FindDirectMessages(ctx context.Context, userID string) ([]models.Channel, error) {
	return repository.Instrument(ctx, collectionChannels, "FindDirectMessages", func() ([]models.Channel, error) {
		return s.inner.FindDirectMessages(ctx, userID)
	})
}

// === Emoji operations ===

func (s *instrumentedStorage) FetchEmojiByParentIDs(ctx context.Context, parentIDs []string) ([]models.Emoji, error) {
	return repository.Instrument(ctx, collectionEmojis, "FetchEmojiByParentIDs", func() ([]models.Emoji, error) {
		return s.inner.FetchEmojiByParentIDs(ctx, parentIDs)
	})
}
