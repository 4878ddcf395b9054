package storage

import (
	"context"
	"sort"
	"sync"

	"go.ember.chat/internal/common/repository"
	"go.ember.chat/internal/models"
)

// MemoryStorage is an in-memory Storage used for development and tests.
// Documents are copied on the way in; callers may mutate what they passed.
type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[string]models.User
	servers  map[string]models.Server
	members  map[models.MemberCompositeKey]models.Member
	channels map[string]models.Channel
	emojis   map[string]models.Emoji
	sessions map[string]models.Session
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]models.User),
		servers:  make(map[string]models.Server),
		members:  make(map[models.MemberCompositeKey]models.Member),
		channels: make(map[string]models.Channel),
		emojis:   make(map[string]models.Emoji),
		sessions: make(map[string]models.Session),
	}
}

// Instrumented returns the storage wrapped with metrics and logging
func (s *MemoryStorage) Instrumented() Storage {
	return newInstrumentedStorage(s)
}

// === Seeding ===

func (s *MemoryStorage) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStorage) PutServer(srv models.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[srv.ID] = srv
}

func (s *MemoryStorage) PutMember(m models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemoryStorage) DeleteMember(key models.MemberCompositeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, key)
}

func (s *MemoryStorage) PutChannel(c models.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ID] = c
}

func (s *MemoryStorage) PutEmoji(e models.Emoji) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emojis[e.ID] = e
}

func (s *MemoryStorage) PutSession(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.TokenHash] = sess
}

// === User operations ===

func (s *MemoryStorage) FetchUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStorage) FetchUsers(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for _, id := range dedupe(ids) {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *MemoryStorage) FetchUserBySessionToken(ctx context.Context, tokenHash string) (*models.User, error) {
	s.mu.RLock()
	sess, ok := s.sessions[tokenHash]
	s.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.FetchUser(ctx, sess.UserID)
}

func (s *MemoryStorage) FetchMutualServerIDs(_ context.Context, userA, userB string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	for key := range s.members {
		if key.User != userA {
			continue
		}
		if _, ok := s.members[models.MemberCompositeKey{Server: key.Server, User: userB}]; ok {
			out = append(out, key.Server)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStorage) FetchMutualChannelIDs(_ context.Context, userA, userB string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	for id, c := range s.channels {
		if c.HasRecipient(userA) && c.HasRecipient(userB) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// === Server operations ===

func (s *MemoryStorage) FetchServer(_ context.Context, id string) (*models.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	srv, ok := s.servers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &srv, nil
}

func (s *MemoryStorage) FetchServers(_ context.Context, ids []string) ([]models.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Server{}
	for _, id := range dedupe(ids) {
		if srv, ok := s.servers[id]; ok {
			out = append(out, srv)
		}
	}
	return out, nil
}

// === Member operations ===

func (s *MemoryStorage) FetchMember(_ context.Context, serverID, userID string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[models.MemberCompositeKey{Server: serverID, User: userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStorage) FetchAllMemberships(_ context.Context, userID string) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Member{}
	for key, m := range s.members {
		if key.User == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Server < out[j].ID.Server })
	return out, nil
}

// === Channel operations ===

func (s *MemoryStorage) FetchChannel(_ context.Context, id string) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.channels[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStorage) FetchChannels(_ context.Context, ids []string) ([]models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Channel{}
	for _, id := range dedupe(ids) {
		if c, ok := s.channels[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStorage) FindDirectMessages(_ context.Context, userID string) ([]models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Channel{}
	for _, c := range s.channels {
		switch {
		case c.ChannelType == models.ChannelTypeSavedMessages && c.User == userID:
			out = append(out, c)
		case c.HasRecipient(userID):
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// === Emoji operations ===

func (s *MemoryStorage) FetchEmojiByParentIDs(_ context.Context, parentIDs []string) ([]models.Emoji, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parents := make(map[string]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}

	out := []models.Emoji{}
	for _, e := range s.emojis {
		if _, ok := parents[e.Parent.ID]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
