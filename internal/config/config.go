package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.ember.chat/internal/common/secrets"
)

// Config holds all configuration for the socket server
type Config struct {
	// HTTP server configuration
	HTTP HTTPConfig

	// MongoDB configuration
	MongoDB MongoDBConfig

	// Redis configuration, shared by the bus and presence
	Redis RedisConfig

	// Event bus configuration
	Bus BusConfig

	// Authentication configuration
	Auth AuthConfig

	// Presence configuration
	Presence PresenceConfig

	// WebSocket configuration
	Socket SocketConfig

	// Leader election configuration
	Leader LeaderConfig

	// Secrets provider configuration
	Secrets secrets.Config

	// Development mode
	DevMode bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port        int
	CORSOrigins []string
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI           string
	Database      string
	MaxPoolSize   uint64
	CreateIndexes bool

	// ReadPreference is "primary", "primaryPreferred", "secondaryPreferred" or "nearest".
	// The socket only reads, so secondaries are safe when replication lag is acceptable.
	ReadPreference string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BusConfig holds event bus configuration
type BusConfig struct {
	Type string // "redis", "nats", "embedded", "memory"

	// NATSURL is used by the nats backend
	NATSURL string

	// Embedded NATS server address
	EmbeddedHost string
	EmbeddedPort int

	// BufferSize is the per-subscriber receive buffer
	BufferSize int
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Mode string // "session" or "jwt"

	JWT JWTConfig
}

// JWTConfig holds JWT validation configuration
type JWTConfig struct {
	Issuer        string
	Audience      string
	HMACSecret    string
	PublicKeyPath string
}

// PresenceConfig holds presence tracking configuration
type PresenceConfig struct {
	// Region identifies this deployment in presence keys
	Region string

	// HeartbeatTTL is how long a region stays alive without a heartbeat
	HeartbeatTTL time.Duration

	// SweepInterval is how often the leader heartbeats and sweeps
	SweepInterval time.Duration

	// Circuit breaker around the presence store
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// SocketConfig holds WebSocket configuration
type SocketConfig struct {
	ReadLimit      int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
}

// LeaderConfig holds leader election configuration
type LeaderConfig struct {
	// Enabled controls whether leader election is active
	Enabled bool

	// Backend is "redis" or "mongo"
	Backend string

	// InstanceID uniquely identifies this instance (defaults to HOSTNAME)
	InstanceID string

	// TTL is how long the lock is valid before expiring
	TTL time.Duration

	// RefreshInterval is how often to refresh the lock while primary
	RefreshInterval time.Duration
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:        getEnvInt("HTTP_PORT", 9000),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
		},

		MongoDB: MongoDBConfig{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "ember"),
			MaxPoolSize:    uint64(getEnvInt("MONGODB_MAX_POOL_SIZE", 100)),
			CreateIndexes:  getEnvBool("MONGODB_CREATE_INDEXES", true),
			ReadPreference: getEnv("MONGODB_READ_PREFERENCE", "primaryPreferred"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},

		Bus: BusConfig{
			Type:         getEnv("BUS_TYPE", "redis"),
			NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			EmbeddedHost: getEnv("NATS_EMBEDDED_HOST", "127.0.0.1"),
			EmbeddedPort: getEnvInt("NATS_EMBEDDED_PORT", 4222),
			BufferSize:   getEnvInt("BUS_BUFFER_SIZE", 256),
		},

		Auth: AuthConfig{
			Mode: getEnv("AUTH_MODE", "session"),
			JWT: JWTConfig{
				Issuer:        getEnv("JWT_ISSUER", "ember"),
				Audience:      getEnv("JWT_AUDIENCE", ""),
				HMACSecret:    getEnv("JWT_HMAC_SECRET", ""),
				PublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", ""),
			},
		},

		Presence: PresenceConfig{
			Region:          getEnv("PRESENCE_REGION", defaultRegion()),
			HeartbeatTTL:    getEnvDuration("PRESENCE_HEARTBEAT_TTL", 90*time.Second),
			SweepInterval:   getEnvDuration("PRESENCE_SWEEP_INTERVAL", 30*time.Second),
			BreakerFailures: uint32(getEnvInt("PRESENCE_BREAKER_FAILURES", 5)),
			BreakerTimeout:  getEnvDuration("PRESENCE_BREAKER_TIMEOUT", 30*time.Second),
		},

		Socket: SocketConfig{
			ReadLimit:      int64(getEnvInt("SOCKET_READ_LIMIT", 64*1024)),
			WriteTimeout:   getEnvDuration("SOCKET_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvDuration("SOCKET_PING_INTERVAL", 30*time.Second),
			PongTimeout:    getEnvDuration("SOCKET_PONG_TIMEOUT", 60*time.Second),
			MessageRate:    getEnvFloat("SOCKET_MESSAGE_RATE", 10),
			MessageBurst:   getEnvInt("SOCKET_MESSAGE_BURST", 20),
			AllowedOrigins: getEnvSlice("SOCKET_ALLOWED_ORIGINS", nil),
		},

		Leader: LeaderConfig{
			Enabled:         getEnvBool("LEADER_ELECTION_ENABLED", true),
			Backend:         getEnv("LEADER_BACKEND", "redis"),
			InstanceID:      getEnv("HOSTNAME", ""),
			TTL:             getEnvDuration("LEADER_TTL", 30*time.Second),
			RefreshInterval: getEnvDuration("LEADER_REFRESH_INTERVAL", 10*time.Second),
		},

		Secrets: *secrets.LoadConfigFromEnv(),

		DevMode: getEnvBool("EMBER_DEV", false),
	}

	return cfg, nil
}

func defaultRegion() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		if value == "" {
			return nil
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
