package mongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexDefinition defines a MongoDB index
type IndexDefinition struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptions
}

// IndexInitializer creates indexes on startup
type IndexInitializer struct {
	db *mongo.Database
}

// NewIndexInitializer creates a new index initializer
func NewIndexInitializer(db *mongo.Database) *IndexInitializer {
	return &IndexInitializer{db: db}
}

// Initialize creates all required indexes
func (i *IndexInitializer) Initialize(ctx context.Context) error {
	indexes := IndexDefinitions()

	for _, idx := range indexes {
		if err := i.createIndex(ctx, idx); err != nil {
			slog.Warn("Failed to create index (may already exist)",
				"error", err,
				"collection", idx.Collection)
		}
	}

	slog.Info("Index initialization complete", "count", len(indexes))
	return nil
}

func (i *IndexInitializer) createIndex(ctx context.Context, idx IndexDefinition) error {
	collection := i.db.Collection(idx.Collection)

	indexModel := mongo.IndexModel{
		Keys:    idx.Keys,
		Options: idx.Options,
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// IndexDefinitions lists the indexes the socket's read paths rely on
func IndexDefinitions() []IndexDefinition {
	return []IndexDefinition{
		// users
		{
			Collection: "users",
			Keys:       bson.D{{Key: "relations._id", Value: 1}},
		},

		// server_members
		{
			Collection: "server_members",
			Keys:       bson.D{{Key: "_id.user", Value: 1}},
		},
		{
			Collection: "server_members",
			Keys:       bson.D{{Key: "_id.server", Value: 1}},
		},

		// channels
		{
			Collection: "channels",
			Keys:       bson.D{{Key: "server", Value: 1}},
			Options:    options.Index().SetSparse(true),
		},
		{
			Collection: "channels",
			Keys:       bson.D{{Key: "recipients", Value: 1}, {Key: "channel_type", Value: 1}},
			Options:    options.Index().SetSparse(true),
		},
		{
			Collection: "channels",
			Keys:       bson.D{{Key: "user", Value: 1}},
			Options:    options.Index().SetSparse(true),
		},

		// emojis
		{
			Collection: "emojis",
			Keys:       bson.D{{Key: "parent.id", Value: 1}},
		},

		// sessions
		{
			Collection: "sessions",
			Keys:       bson.D{{Key: "token_hash", Value: 1}},
			Options:    options.Index().SetUnique(true),
		},

		// leader_locks (TTL index)
		{
			Collection: "leader_locks",
			Keys:       bson.D{{Key: "expiresAt", Value: 1}},
			Options:    options.Index().SetExpireAfterSeconds(0),
		},
	}
}
