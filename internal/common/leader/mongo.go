package leader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockCollection holds one document per named lock
const LockCollection = "leader_locks"

// Lock represents a distributed lock document in MongoDB
type Lock struct {
	ID         string    `bson:"_id"`        // Lock name (e.g., "presence-janitor")
	InstanceID string    `bson:"instanceId"` // Unique instance identifier
	AcquiredAt time.Time `bson:"acquiredAt"` // When lock was acquired
	ExpiresAt  time.Time `bson:"expiresAt"`  // When lock expires
}

// NewMongoElector creates a leader elector backed by a leader_locks document
func NewMongoElector(db *mongo.Database, cfg *Config) Elector {
	if cfg == nil {
		cfg = DefaultConfig("default-leader")
	}
	cfg = cfg.withDefaults()
	return newElector(&mongoLock{
		collection: db.Collection(LockCollection),
		config:     cfg,
		now:        time.Now,
	}, cfg)
}

type mongoLock struct {
	collection *mongo.Collection
	config     *Config
	now        func() time.Time
}

func (l *mongoLock) name() string { return "mongo" }

// prepare creates the TTL index so MongoDB reaps abandoned locks
func (l *mongoLock) prepare(ctx context.Context) {
	_, err := l.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(0).
			SetName("ttl_expiresAt"),
	})
	if err != nil {
		slog.Debug("Could not create TTL index (may already exist)", "error", err)
	}
}

func (l *mongoLock) acquire(ctx context.Context) bool {
	now := l.now()
	expiresAt := now.Add(l.config.TTL)

	// Matches when the lock is expired or already ours; the upsert
	// collides on _id when someone else holds it.
	filter := bson.M{
		"_id": l.config.LockName,
		"$or": []bson.M{
			{"expiresAt": bson.M{"$lt": now}},
			{"instanceId": l.config.InstanceID},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"instanceId": l.config.InstanceID,
			"acquiredAt": now,
			"expiresAt":  expiresAt,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result Lock
	err := l.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			slog.Debug("Lock already held by another instance",
				"instanceId", l.config.InstanceID,
				"lockName", l.config.LockName)
			return false
		}
		slog.Error("Failed to acquire leader lock",
			"error", err,
			"lockName", l.config.LockName)
		return false
	}

	return result.InstanceID == l.config.InstanceID
}

func (l *mongoLock) refresh(ctx context.Context) bool {
	result, err := l.collection.UpdateOne(ctx,
		bson.M{"_id": l.config.LockName, "instanceId": l.config.InstanceID},
		bson.M{"$set": bson.M{"expiresAt": l.now().Add(l.config.TTL)}},
	)
	if err != nil {
		slog.Error("Failed to refresh leader lock",
			"error", err,
			"lockName", l.config.LockName)
		return false
	}
	return result.MatchedCount > 0
}

func (l *mongoLock) release(ctx context.Context) {
	result, err := l.collection.DeleteOne(ctx, bson.M{
		"_id":        l.config.LockName,
		"instanceId": l.config.InstanceID,
	})
	if err != nil {
		slog.Error("Failed to release leader lock",
			"error", err,
			"lockName", l.config.LockName)
		return
	}
	if result.DeletedCount > 0 {
		slog.Info("Released leader lock",
			"instanceId", l.config.InstanceID,
			"lockName", l.config.LockName)
	}
}

// CurrentMongoLeader returns the instance holding an unexpired lock, empty if none
func CurrentMongoLeader(ctx context.Context, db *mongo.Database, lockName string) (string, error) {
	var lock Lock
	err := db.Collection(LockCollection).FindOne(ctx, bson.M{
		"_id":       lockName,
		"expiresAt": bson.M{"$gt": time.Now()},
	}).Decode(&lock)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return lock.InstanceID, nil
}
