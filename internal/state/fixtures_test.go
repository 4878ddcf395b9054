package state

import (
	"context"
	"testing"

	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
	"go.ember.chat/internal/permissions"
	"go.ember.chat/internal/presence"
	"go.ember.chat/internal/storage"
)

const view = int64(permissions.ViewChannel)

func active() *bool {
	b := true
	return &b
}

// world is a small platform: U is a plain member of server S (owned by O)
// which has a visible channel T1 and a hidden channel T2. U is friends with
// V and has a direct message D with V.
func world() *storage.MemoryStorage {
	s := storage.NewMemoryStorage()

	s.PutUser(models.User{ID: "U", Username: "u", Relations: []models.Relationship{{ID: "V", Status: models.RelationshipFriend}}})
	s.PutUser(models.User{ID: "V", Username: "v", Relations: []models.Relationship{{ID: "U", Status: models.RelationshipFriend}}})
	s.PutUser(models.User{ID: "O", Username: "o"})

	s.PutServer(models.Server{ID: "S", Owner: "O", DefaultPermissions: view, Channels: []string{"T1", "T2"}})
	s.PutMember(models.Member{ID: models.MemberCompositeKey{Server: "S", User: "U"}})
	s.PutMember(models.Member{ID: models.MemberCompositeKey{Server: "S", User: "O"}})

	s.PutChannel(models.Channel{ChannelType: models.ChannelTypeText, ID: "T1", Server: "S", Name: "general"})
	s.PutChannel(models.Channel{
		ChannelType:        models.ChannelTypeText,
		ID:                 "T2",
		Server:             "S",
		Name:               "staff",
		DefaultPermissions: &models.OverrideField{Deny: view},
	})
	s.PutChannel(models.Channel{ChannelType: models.ChannelTypeDirectMessage, ID: "D", Active: active(), Recipients: []string{"U", "V"}})
	return s
}

// ready builds a session for userID and flushes its initial subscriptions
func ready(t *testing.T, store *storage.MemoryStorage, userID string) (*State, *events.Ready) {
	t.Helper()
	ctx := context.Background()

	user, err := store.FetchUser(ctx, userID)
	if err != nil {
		t.Fatalf("FetchUser failed: %v", err)
	}

	s := New(*user, store, presence.NewMemoryStore("test"))
	payload, err := s.GenerateReadyPayload(ctx)
	if err != nil {
		t.Fatalf("GenerateReadyPayload failed: %v", err)
	}
	s.ApplyState()
	return s, payload
}

func channelIDs(channels []models.Channel) []string {
	ids := make([]string, 0, len(channels))
	for _, c := range channels {
		ids = append(ids, c.ID)
	}
	return ids
}

func eventTypes(ev events.Event) []string {
	bulk, ok := ev.(*events.Bulk)
	if !ok {
		return []string{ev.EventType()}
	}
	types := make([]string, 0, len(bulk.V))
	for _, e := range bulk.V {
		types = append(types, e.EventType())
	}
	return types
}
