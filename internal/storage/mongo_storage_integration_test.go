//go:build integration

// This file contains integration tests that require Docker
package storage

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoutil "go.ember.chat/internal/common/mongo"
	"go.ember.chat/internal/common/repository"
	"go.ember.chat/internal/common/testutil"
	"go.ember.chat/internal/models"
)

func startMongoStorage(ctx context.Context, t *testing.T) (Storage, *mongo.Database) {
	t.Helper()

	svc, err := testutil.StartMongo(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start MongoDB: %v", err)
	}
	t.Cleanup(func() { svc.Terminate(context.Background()) })

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(svc.Endpoint))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	db := client.Database("ember_test")
	if err := mongoutil.NewIndexInitializer(db).Initialize(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}
	return NewMongoStorage(db), db
}

func insert(ctx context.Context, t *testing.T, db *mongo.Database, collection string, docs ...interface{}) {
	t.Helper()
	if _, err := db.Collection(collection).InsertMany(ctx, docs); err != nil {
		t.Fatalf("Failed to seed %s: %v", collection, err)
	}
}

func TestMongoStorageIntegration_Reads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	s, db := startMongoStorage(ctx, t)

	insert(ctx, t, db, collectionUsers,
		models.User{ID: "A", Username: "alice", Relations: []models.Relationship{{ID: "B", Status: models.RelationshipFriend}}},
		models.User{ID: "B", Username: "bob"},
	)
	insert(ctx, t, db, collectionSessions, models.Session{ID: "S", UserID: "A", TokenHash: "hash"})
	insert(ctx, t, db, collectionServers, models.Server{ID: "S1", Owner: "A", Channels: []string{"T1"}})
	insert(ctx, t, db, collectionMembers,
		models.Member{ID: models.MemberCompositeKey{Server: "S1", User: "A"}},
		models.Member{ID: models.MemberCompositeKey{Server: "S1", User: "B"}},
	)
	insert(ctx, t, db, collectionChannels,
		models.Channel{ChannelType: models.ChannelTypeText, ID: "T1", Server: "S1", Name: "general"},
		models.Channel{ChannelType: models.ChannelTypeDirectMessage, ID: "DM", Recipients: []string{"A", "B"}},
		models.Channel{ChannelType: models.ChannelTypeSavedMessages, ID: "SM", User: "A"},
	)
	insert(ctx, t, db, collectionEmojis, models.Emoji{ID: "E1", Parent: models.EmojiParent{Type: models.EmojiParentServer, ID: "S1"}, Name: "wave"})

	u, err := s.FetchUserBySessionToken(ctx, "hash")
	if err != nil {
		t.Fatalf("FetchUserBySessionToken failed: %v", err)
	}
	if u.ID != "A" || u.RelationshipWith("B") != models.RelationshipFriend {
		t.Errorf("Unexpected user: %+v", u)
	}

	if _, err := s.FetchUser(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	member, err := s.FetchMember(ctx, "S1", "B")
	if err != nil {
		t.Fatalf("FetchMember failed: %v", err)
	}
	if member.ID.User != "B" {
		t.Errorf("Expected member B, got %s", member.ID.User)
	}

	mutualServers, err := s.FetchMutualServerIDs(ctx, "A", "B")
	if err != nil {
		t.Fatalf("FetchMutualServerIDs failed: %v", err)
	}
	if len(mutualServers) != 1 || mutualServers[0] != "S1" {
		t.Errorf("Expected [S1], got %v", mutualServers)
	}

	mutualChannels, err := s.FetchMutualChannelIDs(ctx, "A", "B")
	if err != nil {
		t.Fatalf("FetchMutualChannelIDs failed: %v", err)
	}
	if len(mutualChannels) != 1 || mutualChannels[0] != "DM" {
		t.Errorf("Expected [DM], got %v", mutualChannels)
	}

	dms, err := s.FindDirectMessages(ctx, "A")
	if err != nil {
		t.Fatalf("FindDirectMessages failed: %v", err)
	}
	if len(dms) != 2 {
		t.Errorf("Expected 2 private channels, got %d", len(dms))
	}

	emojis, err := s.FetchEmojiByParentIDs(ctx, []string{"S1"})
	if err != nil {
		t.Fatalf("FetchEmojiByParentIDs failed: %v", err)
	}
	if len(emojis) != 1 || emojis[0].Name != "wave" {
		t.Errorf("Expected wave emoji, got %v", emojis)
	}

	empty, err := s.FetchChannels(ctx, []string{"nope"})
	if err != nil {
		t.Fatalf("FetchChannels failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", empty)
	}
}
