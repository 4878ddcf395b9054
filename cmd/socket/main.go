// Ember Socket
//
// Realtime websocket server. Authenticates clients, sends the Ready
// snapshot and keeps each session subscribed to the topics it may see.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ember.chat/internal/auth"
	"go.ember.chat/internal/bus"
	"go.ember.chat/internal/common/health"
	"go.ember.chat/internal/common/leader"
	"go.ember.chat/internal/common/lifecycle"
	"go.ember.chat/internal/config"
	"go.ember.chat/internal/presence"
	"go.ember.chat/internal/socket"
	"go.ember.chat/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const janitorLock = "ember:presence:janitor"

func main() {
	exampleConfig := flag.String("example-config", "", "write an example config file to the given path and exit")
	generateKey := flag.String("generate-key", "", "write a JWT signing key pair to the given directory and exit")
	flag.Parse()

	// Configure logging
	setupLogging()

	if *exampleConfig != "" {
		if err := config.WriteExampleConfig(*exampleConfig); err != nil {
			slog.Error("Failed to write example config", "error", err)
			os.Exit(1)
		}
		slog.Info("Example config written", "path", *exampleConfig)
		return
	}

	if *generateKey != "" {
		key, err := auth.GenerateKeyPair(*generateKey)
		if err != nil {
			slog.Error("Failed to generate key pair", "error", err)
			os.Exit(1)
		}
		slog.Info("Key pair written", "dir", *generateKey, "kid", auth.KeyID(&key.PublicKey))
		return
	}

	slog.Info("Starting Ember Socket",
		"version", version,
		"build_time", buildTime,
		"component", "socket")

	ctx := context.Background()
	mgr := lifecycle.NewManager()

	if err := run(ctx, mgr); err != nil {
		slog.Error("Socket server failed", "error", err)
		mgr.Execute()
		os.Exit(1)
	}

	slog.Info("Ember Socket stopped")
}

func run(ctx context.Context, mgr *lifecycle.Manager) error {
	// ========================================
	// 1. INFRASTRUCTURE INITIALIZATION
	// ========================================
	app, err := lifecycle.Initialize(ctx, mgr, lifecycle.AppOptions{
		NeedsMongoDB: true,
	})
	if err != nil {
		return err
	}
	cfg := app.Config

	healthChecker := health.NewChecker()
	healthChecker.AddReadinessCheck(health.MongoDBCheck(app.Mongo.Ping))
	if app.Redis != nil {
		healthChecker.AddReadinessCheck(health.RedisCheck(func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}))
	}

	// ========================================
	// 2. EVENT BUS
	// ========================================
	eventBus, err := bus.New(cfg.Bus, app.Redis)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	mgr.RegisterBusShutdown("bus", lifecycle.CloseFunc(eventBus.Close))
	healthChecker.AddReadinessCheck(health.BusCheck(string(eventBus.Backend()), eventBus.Ping))
	if nb, ok := eventBus.(interface{ Connected() bool }); ok {
		healthChecker.AddReadinessCheck(health.NATSCheck(nb.Connected))
	}

	slog.Info("Event bus ready", "backend", eventBus.Backend())

	// ========================================
	// 3. PRESENCE AND LEADER ELECTION
	// ========================================
	presenceStore := setupPresence(cfg, app)
	healthChecker.AddReadinessCheck(health.PresenceCheck(func() string {
		return presenceStore.State().String()
	}))

	elector, err := leader.New(cfg.Leader, janitorLock, app.Redis, app.Mongo.Database())
	if err != nil {
		return fmt.Errorf("failed to create leader elector: %w", err)
	}
	mgr.RegisterLeaderShutdown("elector", lifecycle.StopFunc(elector.Stop))

	janitor := presence.NewJanitor(presenceStore, elector, presence.JanitorConfig{
		Region:        cfg.Presence.Region,
		HeartbeatTTL:  cfg.Presence.HeartbeatTTL,
		SweepInterval: cfg.Presence.SweepInterval,
	})
	mgr.RegisterPresenceShutdown("janitor", lifecycle.StopFunc(janitor.Stop))

	// ========================================
	// 4. COMPONENT WIRING
	// ========================================
	store := storage.NewMongoStorage(app.Mongo.Database())

	authenticator, err := auth.New(auth.Config{
		Mode:          cfg.Auth.Mode,
		Issuer:        cfg.Auth.JWT.Issuer,
		Audience:      cfg.Auth.JWT.Audience,
		HMACSecret:    cfg.Auth.JWT.HMACSecret,
		PublicKeyPath: cfg.Auth.JWT.PublicKeyPath,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	socketServer := socket.NewServer(socket.Config{
		ReadLimit:      cfg.Socket.ReadLimit,
		WriteTimeout:   cfg.Socket.WriteTimeout,
		PingInterval:   cfg.Socket.PingInterval,
		PongTimeout:    cfg.Socket.PongTimeout,
		MessageRate:    cfg.Socket.MessageRate,
		MessageBurst:   cfg.Socket.MessageBurst,
		AllowedOrigins: cfg.Socket.AllowedOrigins,
	}, socket.Deps{
		Auth:     authenticator,
		Bus:      eventBus,
		Store:    store,
		Presence: presenceStore,
	})
	mgr.RegisterSessionShutdown("socket", socketServer.Shutdown)
	healthChecker.AddLivenessCheck(health.SessionsCheck(socketServer.Connections))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           setupHTTPRouter(cfg, healthChecker, socketServer),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	httpService := lifecycle.NewHTTPService("http-server", httpServer)
	mgr.RegisterListenerShutdown("http-server", func(ctx context.Context) error {
		healthChecker.SetDraining()
		return httpService.Shutdown(ctx)
	})

	slog.Info("Socket ready",
		"port", cfg.HTTP.Port,
		"bus", eventBus.Backend(),
		"auth", cfg.Auth.Mode,
		"region", cfg.Presence.Region,
		"leaderElection", cfg.Leader.Enabled)

	// ========================================
	// 5. RUN UNTIL SHUTDOWN
	// ========================================
	return lifecycle.Run(ctx, mgr,
		lifecycle.Background("leader-elector", elector.Start),
		lifecycle.Background("presence-janitor", janitor.Start),
		httpService,
	)
}

// setupLogging configures the slog default logger.
func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("EMBER_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// setupPresence picks the Redis store when Redis is connected and wraps
// it in the circuit breaker.
func setupPresence(cfg *config.Config, app *lifecycle.App) *presence.Guarded {
	var inner presence.Store
	if app.Redis != nil {
		inner = presence.NewRedisStore(app.Redis, cfg.Presence.Region)
	} else {
		slog.Warn("Redis not configured, presence is local to this instance")
		inner = presence.NewMemoryStore(cfg.Presence.Region)
	}

	return presence.NewGuarded(inner, cfg.Presence.Region, presence.BreakerConfig{
		Failures: cfg.Presence.BreakerFailures,
		Timeout:  cfg.Presence.BreakerTimeout,
	})
}

// setupHTTPRouter creates the HTTP router with the socket, health and metrics endpoints.
func setupHTTPRouter(cfg *config.Config, healthChecker *health.Checker, socketServer *socket.Server) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health endpoints
	healthChecker.Routes(r)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/q/metrics", promhttp.Handler())

	// Websocket endpoint
	r.Mount("/", socketServer.Routes())

	return r
}
