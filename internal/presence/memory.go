package presence

import (
	"context"
	"sync"
	"time"

	"go.ember.chat/internal/common/tsid"
)

// MemoryStore keeps presence in process. It backs single-node development
// and tests.
type MemoryStore struct {
	mu         sync.Mutex
	region     string
	now        func() time.Time
	ids        *tsid.Generator
	users      map[string]map[string]struct{} // user -> session members
	regions    map[string]map[string]string   // region -> session member -> user
	heartbeats map[string]time.Time           // region -> expiry
}

// NewMemoryStore creates an in-memory store registering sessions under region
func NewMemoryStore(region string) *MemoryStore {
	return &MemoryStore{
		region:     region,
		now:        time.Now,
		ids:        tsid.NewGenerator(time.Now),
		users:      make(map[string]map[string]struct{}),
		regions:    make(map[string]map[string]string),
		heartbeats: make(map[string]time.Time),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, userID string, flags uint8) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := Session{ID: s.ids.Generate(), Region: s.region, Flags: flags}

	sessions, ok := s.users[userID]
	if !ok {
		sessions = make(map[string]struct{})
		s.users[userID] = sessions
	}
	sessions[session.member()] = struct{}{}

	region, ok := s.regions[s.region]
	if !ok {
		region = make(map[string]string)
		s.regions[s.region] = region
	}
	region[session.member()] = userID

	return session, len(sessions) == 1, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, userID string, session Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if region, ok := s.regions[session.Region]; ok {
		delete(region, session.member())
	}
	return s.removeLocked(userID, session.member()), nil
}

// removeLocked drops a session member and reports whether the user went offline
func (s *MemoryStore) removeLocked(userID, member string) bool {
	sessions, ok := s.users[userID]
	if !ok {
		return false
	}
	delete(sessions, member)
	if len(sessions) > 0 {
		return false
	}
	delete(s.users, userID)
	return true
}

func (s *MemoryStore) FilterOnline(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	online := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			online = append(online, id)
		}
	}
	return online, nil
}

func (s *MemoryStore) IsOnline(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.users[userID]
	return ok, nil
}

func (s *MemoryStore) ClearRegion(_ context.Context, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked(region)
	return nil
}

func (s *MemoryStore) clearLocked(region string) {
	for member, userID := range s.regions[region] {
		s.removeLocked(userID, member)
	}
	delete(s.regions, region)
	delete(s.heartbeats, region)
}

func (s *MemoryStore) Heartbeat(_ context.Context, region string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heartbeats[region] = s.now().Add(ttl)
	if _, ok := s.regions[region]; !ok {
		s.regions[region] = make(map[string]string)
	}
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var swept []string
	for region := range s.regions {
		if expiry, ok := s.heartbeats[region]; ok && now.Before(expiry) {
			continue
		}
		s.clearLocked(region)
		swept = append(swept, region)
	}
	return swept, nil
}
