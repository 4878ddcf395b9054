package storage

import (
	"context"
	"errors"
	"testing"

	"go.ember.chat/internal/common/repository"
	"go.ember.chat/internal/models"
)

func seeded() *MemoryStorage {
	s := NewMemoryStorage()
	s.PutUser(models.User{ID: "A", Username: "alice"})
	s.PutUser(models.User{ID: "B", Username: "bob"})
	s.PutUser(models.User{ID: "C", Username: "carol"})
	s.PutSession(models.Session{ID: "S", UserID: "A", TokenHash: "hash"})

	s.PutServer(models.Server{ID: "S1", Owner: "A", Channels: []string{"T1"}})
	s.PutServer(models.Server{ID: "S2", Owner: "B"})
	s.PutMember(models.Member{ID: models.MemberCompositeKey{Server: "S1", User: "A"}})
	s.PutMember(models.Member{ID: models.MemberCompositeKey{Server: "S1", User: "B"}})
	s.PutMember(models.Member{ID: models.MemberCompositeKey{Server: "S2", User: "B"}})

	s.PutChannel(models.Channel{ChannelType: models.ChannelTypeSavedMessages, ID: "SM", User: "A"})
	s.PutChannel(models.Channel{ChannelType: models.ChannelTypeDirectMessage, ID: "DM", Recipients: []string{"A", "B"}})
	s.PutChannel(models.Channel{ChannelType: models.ChannelTypeGroup, ID: "G", Recipients: []string{"A", "C"}})
	s.PutChannel(models.Channel{ChannelType: models.ChannelTypeText, ID: "T1", Server: "S1"})

	s.PutEmoji(models.Emoji{ID: "E1", Parent: models.EmojiParent{Type: models.EmojiParentServer, ID: "S1"}})
	s.PutEmoji(models.Emoji{ID: "E2", Parent: models.EmojiParent{Type: models.EmojiParentServer, ID: "S2"}})
	return s
}

func TestMemoryStorage_NotFound(t *testing.T) {
	s := seeded().Instrumented()
	ctx := context.Background()

	if _, err := s.FetchUser(ctx, "nobody"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for user, got %v", err)
	}
	if _, err := s.FetchServer(ctx, "nowhere"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for server, got %v", err)
	}
	if _, err := s.FetchMember(ctx, "S2", "A"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for member, got %v", err)
	}
	if _, err := s.FetchUserBySessionToken(ctx, "other"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for session, got %v", err)
	}
}

func TestMemoryStorage_SessionToken(t *testing.T) {
	s := seeded()

	u, err := s.FetchUserBySessionToken(context.Background(), "hash")
	if err != nil {
		t.Fatalf("FetchUserBySessionToken failed: %v", err)
	}
	if u.ID != "A" {
		t.Errorf("Expected user A, got %s", u.ID)
	}
}

func TestMemoryStorage_Mutuals(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	servers, err := s.FetchMutualServerIDs(ctx, "A", "B")
	if err != nil {
		t.Fatalf("FetchMutualServerIDs failed: %v", err)
	}
	if len(servers) != 1 || servers[0] != "S1" {
		t.Errorf("Expected [S1], got %v", servers)
	}

	channels, err := s.FetchMutualChannelIDs(ctx, "A", "C")
	if err != nil {
		t.Fatalf("FetchMutualChannelIDs failed: %v", err)
	}
	if len(channels) != 1 || channels[0] != "G" {
		t.Errorf("Expected [G], got %v", channels)
	}

	none, _ := s.FetchMutualServerIDs(ctx, "A", "C")
	if len(none) != 0 {
		t.Errorf("Expected no mutual servers, got %v", none)
	}
}

func TestMemoryStorage_FindDirectMessages(t *testing.T) {
	s := seeded()

	channels, err := s.FindDirectMessages(context.Background(), "A")
	if err != nil {
		t.Fatalf("FindDirectMessages failed: %v", err)
	}

	ids := make([]string, 0, len(channels))
	for _, c := range channels {
		ids = append(ids, c.ID)
	}
	if len(ids) != 3 || ids[0] != "DM" || ids[1] != "G" || ids[2] != "SM" {
		t.Errorf("Expected [DM G SM], got %v", ids)
	}
}

func TestMemoryStorage_BatchFetches(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	users, _ := s.FetchUsers(ctx, []string{"A", "A", "missing", "C"})
	if len(users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users))
	}

	servers, _ := s.FetchServers(ctx, nil)
	if servers == nil || len(servers) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", servers)
	}

	emojis, _ := s.FetchEmojiByParentIDs(ctx, []string{"S1"})
	if len(emojis) != 1 || emojis[0].ID != "E1" {
		t.Errorf("Expected [E1], got %v", emojis)
	}

	memberships, _ := s.FetchAllMemberships(ctx, "B")
	if len(memberships) != 2 || memberships[0].ID.Server != "S1" {
		t.Errorf("Expected memberships of S1 and S2, got %v", memberships)
	}
}

func TestMemoryStorage_CopiesOnRead(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	u, _ := s.FetchUser(ctx, "A")
	u.Username = "mallory"

	again, _ := s.FetchUser(ctx, "A")
	if again.Username != "alice" {
		t.Errorf("Expected stored user to be unchanged, got %s", again.Username)
	}
}
