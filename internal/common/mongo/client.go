package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"go.ember.chat/internal/config"
)

// appName identifies socket connections in MongoDB server logs and currentOp
const appName = "ember-socket"

// Client wraps the MongoDB client with helper methods
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect establishes a connection to MongoDB. Reads follow the configured
// read preference; the connection check always goes to the primary's view
// of the replica set so a bad URI fails fast.
func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Client, error) {
	rp, err := ReadPreference(cfg.ReadPreference)
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetReadPreference(rp).
		SetRetryReads(true).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, rp); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(cfg.Database)
	slog.Info("Connected to MongoDB", "database", cfg.Database, "readPreference", rp.Mode().String())

	if cfg.CreateIndexes {
		if err := NewIndexInitializer(db).Initialize(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
	}

	return &Client{client: client, database: db}, nil
}

// ReadPreference parses a read preference name. Empty means primaryPreferred.
func ReadPreference(name string) (*readpref.ReadPref, error) {
	switch name {
	case "", "primaryPreferred":
		return readpref.PrimaryPreferred(), nil
	case "primary":
		return readpref.Primary(), nil
	case "secondaryPreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest(), nil
	default:
		return nil, fmt.Errorf("unknown mongodb read preference %q", name)
	}
}

// Database returns the default database
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Ping checks if the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.PrimaryPreferred())
}

// Disconnect closes the MongoDB connection
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
