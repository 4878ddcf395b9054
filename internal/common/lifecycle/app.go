package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	mongoutil "go.ember.chat/internal/common/mongo"
	"go.ember.chat/internal/common/secrets"
	"go.ember.chat/internal/config"
)

// App holds initialized infrastructure that is guaranteed to be connected.
// If you have an *App, you know the configured backends answered a ping.
//
// This is NOT a god object - it just holds the infrastructure that needs
// connection logic. Bus, presence and socket wiring belong to the binary.
type App struct {
	Config *config.Config

	// Database
	Mongo *mongoutil.Client

	// Redis, shared by the bus, presence and leader election
	Redis *redis.Client
}

// AppOptions configures which infrastructure to initialize.
type AppOptions struct {
	// NeedsMongoDB indicates MongoDB connection is required
	NeedsMongoDB bool

	// NeedsRedis forces a Redis connection even when no configured
	// backend uses it
	NeedsRedis bool
}

// Initialize loads configuration and connects infrastructure. Disconnects
// are registered on mgr for the database phase.
//
// Usage:
//
//	mgr := lifecycle.NewManager()
//	app, err := lifecycle.Initialize(ctx, mgr, lifecycle.AppOptions{
//	    NeedsMongoDB: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
func Initialize(ctx context.Context, mgr *Manager, opts AppOptions) (*App, error) {
	cfg, err := config.LoadWithFile()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return InitializeWithConfig(ctx, mgr, cfg, opts)
}

// InitializeWithConfig is Initialize with an already loaded configuration
func InitializeWithConfig(ctx context.Context, mgr *Manager, cfg *config.Config, opts AppOptions) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.NeedsSecrets() {
		provider, err := secrets.NewProvider(ctx, &cfg.Secrets)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets provider: %w", err)
		}
		slog.Info("Resolving secret references", "provider", provider.Name())
		if err := cfg.ResolveSecrets(ctx, secrets.NewResolver(provider)); err != nil {
			return nil, fmt.Errorf("failed to resolve secrets: %w", err)
		}
	}

	app := &App{Config: cfg}

	if opts.NeedsMongoDB {
		if err := app.initMongoDB(ctx, mgr); err != nil {
			return nil, err
		}
	}

	if opts.NeedsRedis || RequiresRedis(cfg) {
		if err := app.initRedis(ctx, mgr); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// RequiresRedis reports whether a configured backend uses Redis
func RequiresRedis(cfg *config.Config) bool {
	if cfg.Bus.Type == "redis" {
		return true
	}
	return cfg.Leader.Enabled && cfg.Leader.Backend == "redis"
}

// initMongoDB connects to MongoDB.
func (app *App) initMongoDB(ctx context.Context, mgr *Manager) error {
	cfg := app.Config

	slog.Info("Connecting to MongoDB", "database", cfg.MongoDB.Database)

	client, err := mongoutil.Connect(ctx, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	app.Mongo = client

	mgr.RegisterDatabaseShutdown("mongodb", func(ctx context.Context) error {
		slog.Info("Disconnecting from MongoDB")
		return client.Disconnect(ctx)
	})
	return nil
}

// initRedis connects to Redis and verifies the connection.
func (app *App) initRedis(ctx context.Context, mgr *Manager) error {
	cfg := app.Config

	slog.Info("Connecting to Redis", "addr", cfg.Redis.Addr)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	app.Redis = client

	mgr.RegisterDatabaseShutdown("redis", func(context.Context) error {
		slog.Info("Disconnecting from Redis")
		return client.Close()
	})

	slog.Info("Connected to Redis", "addr", cfg.Redis.Addr)
	return nil
}
