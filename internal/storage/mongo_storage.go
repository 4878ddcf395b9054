package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.ember.chat/internal/common/repository"
	"go.ember.chat/internal/models"
)

// mongoStorage provides MongoDB access to chat documents
type mongoStorage struct {
	users    *mongo.Collection
	servers  *mongo.Collection
	members  *mongo.Collection
	channels *mongo.Collection
	emojis   *mongo.Collection
	sessions *mongo.Collection
}

// NewMongoStorage creates a new storage backed by MongoDB with instrumentation
func NewMongoStorage(db *mongo.Database) Storage {
	return newInstrumentedStorage(&mongoStorage{
		users:    db.Collection(collectionUsers),
		servers:  db.Collection(collectionServers),
		members:  db.Collection(collectionMembers),
		channels: db.Collection(collectionChannels),
		emojis:   db.Collection(collectionEmojis),
		sessions: db.Collection(collectionSessions),
	})
}

// === User operations ===

// FetchUser finds a user by ID
func (s *mongoStorage) FetchUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FetchUsers finds all users with the given IDs
func (s *mongoStorage) FetchUsers(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if err := findAll(ctx, s.users, bson.M{"_id": bson.M{"$in": ids}}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FetchUserBySessionToken resolves a session token hash to its user
func (s *mongoStorage) FetchUserBySessionToken(ctx context.Context, tokenHash string) (*models.User, error) {
	var session models.Session
	if err := s.sessions.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&session); err != nil {
		return nil, notFound(err)
	}
	return s.FetchUser(ctx, session.UserID)
}

// FetchMutualServerIDs finds the servers both users are members of
func (s *mongoStorage) FetchMutualServerIDs(ctx context.Context, userA, userB string) ([]string, error) {
	ids, err := s.members.Distinct(ctx, "_id.server", bson.M{"_id.user": userA})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	mutual, err := s.members.Distinct(ctx, "_id.server", bson.M{
		"_id.user":   userB,
		"_id.server": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, err
	}
	return toStrings(mutual), nil
}

// FetchMutualChannelIDs finds the direct messages and groups shared by both users
func (s *mongoStorage) FetchMutualChannelIDs(ctx context.Context, userA, userB string) ([]string, error) {
	ids, err := s.channels.Distinct(ctx, "_id", bson.M{
		"channel_type": bson.M{"$in": bson.A{models.ChannelTypeDirectMessage, models.ChannelTypeGroup}},
		"recipients":   bson.M{"$all": bson.A{userA, userB}},
	})
	if err != nil {
		return nil, err
	}
	return toStrings(ids), nil
}

// === Server operations ===

// FetchServer finds a server by ID
func (s *mongoStorage) FetchServer(ctx context.Context, id string) (*models.Server, error) {
	var server models.Server
	if err := s.servers.FindOne(ctx, bson.M{"_id": id}).Decode(&server); err != nil {
		return nil, notFound(err)
	}
	return &server, nil
}

// FetchServers finds all servers with the given IDs
func (s *mongoStorage) FetchServers(ctx context.Context, ids []string) ([]models.Server, error) {
	var servers []models.Server
	if err := findAll(ctx, s.servers, bson.M{"_id": bson.M{"$in": ids}}, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// === Member operations ===

// FetchMember finds a user's membership of a server
func (s *mongoStorage) FetchMember(ctx context.Context, serverID, userID string) (*models.Member, error) {
	var member models.Member
	err := s.members.FindOne(ctx, bson.M{"_id.server": serverID, "_id.user": userID}).Decode(&member)
	if err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

// FetchAllMemberships finds every server membership of a user
func (s *mongoStorage) FetchAllMemberships(ctx context.Context, userID string) ([]models.Member, error) {
	var members []models.Member
	if err := findAll(ctx, s.members, bson.M{"_id.user": userID}, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// === Channel operations ===

// FetchChannel finds a channel by ID
func (s *mongoStorage) FetchChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	if err := s.channels.FindOne(ctx, bson.M{"_id": id}).Decode(&channel); err != nil {
		return nil, notFound(err)
	}
	return &channel, nil
}

// FetchChannels finds all channels with the given IDs
func (s *mongoStorage) FetchChannels(ctx context.Context, ids []string) ([]models.Channel, error) {
	var channels []models.Channel
	if err := findAll(ctx, s.channels, bson.M{"_id": bson.M{"$in": ids}}, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// FindDirectMessages finds the saved messages, direct messages and groups of a user
func (s *mongoStorage) FindDirectMessages(ctx context.Context, userID string) ([]models.Channel, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{
				"channel_type": bson.M{"$in": bson.A{models.ChannelTypeDirectMessage, models.ChannelTypeGroup}},
				"recipients":   userID,
			},
			bson.M{
				"channel_type": models.ChannelTypeSavedMessages,
				"user":         userID,
			},
		},
	}

	var channels []models.Channel
	if err := findAll(ctx, s.channels, filter, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// === Emoji operations ===

// FetchEmojiByParentIDs finds every emoji owned by the given parents
func (s *mongoStorage) FetchEmojiByParentIDs(ctx context.Context, parentIDs []string) ([]models.Emoji, error) {
	var emojis []models.Emoji
	if err := findAll(ctx, s.emojis, bson.M{"parent.id": bson.M{"$in": parentIDs}}, &emojis); err != nil {
		return nil, err
	}
	return emojis, nil
}

// === Helpers ===

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, out *[]T, opts ...*options.FindOptions) error {
	cursor, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return unavailable(err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return err
	}
	if *out == nil {
		*out = []T{}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return unavailable(err)
}

func unavailable(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return err
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
