package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"go.ember.chat/internal/common/secrets"
)

// TOMLConfig represents the TOML configuration file structure
type TOMLConfig struct {
	HTTP     TOMLHTTPConfig     `toml:"http"`
	MongoDB  TOMLMongoDBConfig  `toml:"mongodb"`
	Redis    TOMLRedisConfig    `toml:"redis"`
	Bus      TOMLBusConfig      `toml:"bus"`
	Auth     TOMLAuthConfig     `toml:"auth"`
	Presence TOMLPresenceConfig `toml:"presence"`
	Socket   TOMLSocketConfig   `toml:"socket"`
	Leader   TOMLLeaderConfig   `toml:"leader"`
	Secrets  secrets.Config     `toml:"secrets"`
	DevMode  bool               `toml:"dev_mode"`
}

// TOMLHTTPConfig represents HTTP configuration in TOML
type TOMLHTTPConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// TOMLMongoDBConfig represents MongoDB configuration in TOML
type TOMLMongoDBConfig struct {
	URI            string `toml:"uri"`
	Database       string `toml:"database"`
	MaxPoolSize    uint64 `toml:"max_pool_size"`
	CreateIndexes  *bool  `toml:"create_indexes"`
	ReadPreference string `toml:"read_preference"`
}

// TOMLRedisConfig represents Redis configuration in TOML
type TOMLRedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// TOMLBusConfig represents event bus configuration in TOML
type TOMLBusConfig struct {
	Type         string `toml:"type"`
	NATSURL      string `toml:"nats_url"`
	EmbeddedHost string `toml:"embedded_host"`
	EmbeddedPort int    `toml:"embedded_port"`
	BufferSize   int    `toml:"buffer_size"`
}

// TOMLAuthConfig represents auth configuration in TOML
type TOMLAuthConfig struct {
	Mode string        `toml:"mode"`
	JWT  TOMLJWTConfig `toml:"jwt"`
}

// TOMLJWTConfig represents JWT configuration in TOML
type TOMLJWTConfig struct {
	Issuer        string `toml:"issuer"`
	Audience      string `toml:"audience"`
	HMACSecret    string `toml:"hmac_secret"`
	PublicKeyPath string `toml:"public_key_path"`
}

// TOMLPresenceConfig represents presence configuration in TOML
type TOMLPresenceConfig struct {
	Region          string `toml:"region"`
	HeartbeatTTL    string `toml:"heartbeat_ttl"`
	SweepInterval   string `toml:"sweep_interval"`
	BreakerFailures uint32 `toml:"breaker_failures"`
	BreakerTimeout  string `toml:"breaker_timeout"`
}

// TOMLSocketConfig represents WebSocket configuration in TOML
type TOMLSocketConfig struct {
	ReadLimit      int64    `toml:"read_limit"`
	WriteTimeout   string   `toml:"write_timeout"`
	PingInterval   string   `toml:"ping_interval"`
	PongTimeout    string   `toml:"pong_timeout"`
	MessageRate    float64  `toml:"message_rate"`
	MessageBurst   int      `toml:"message_burst"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// TOMLLeaderConfig represents leader election configuration in TOML
type TOMLLeaderConfig struct {
	Enabled         *bool  `toml:"enabled"`
	Backend         string `toml:"backend"`
	InstanceID      string `toml:"instance_id"`
	TTL             string `toml:"ttl"`
	RefreshInterval string `toml:"refresh_interval"`
}

// ConfigPaths lists the paths to search for config files
var ConfigPaths = []string{
	"config.toml",
	"ember.toml",
	"./config/config.toml",
	"./config/ember.toml",
	"/etc/ember/config.toml",
}

// LoadWithFile loads defaults, then the config file, then env overrides.
// The file is taken from EMBER_CONFIG or the first of ConfigPaths that exists.
func LoadWithFile() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configPath := os.Getenv("EMBER_CONFIG")
	if configPath == "" {
		for _, path := range ConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	if configPath == "" {
		return cfg, nil
	}

	if err := applyFile(cfg, configPath); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// applyFile overlays the values set in a TOML file onto cfg, skipping
// any field whose environment variable is set.
func applyFile(cfg *Config, path string) error {
	var tc TOMLConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	o := overlay{}

	o.integer(&cfg.HTTP.Port, tc.HTTP.Port, "HTTP_PORT")
	o.slice(&cfg.HTTP.CORSOrigins, tc.HTTP.CORSOrigins, "CORS_ORIGINS")

	o.str(&cfg.MongoDB.URI, tc.MongoDB.URI, "MONGODB_URI")
	o.str(&cfg.MongoDB.Database, tc.MongoDB.Database, "MONGODB_DATABASE")
	if tc.MongoDB.MaxPoolSize != 0 && !envSet("MONGODB_MAX_POOL_SIZE") {
		cfg.MongoDB.MaxPoolSize = tc.MongoDB.MaxPoolSize
	}
	o.boolean(&cfg.MongoDB.CreateIndexes, tc.MongoDB.CreateIndexes, "MONGODB_CREATE_INDEXES")
	o.str(&cfg.MongoDB.ReadPreference, tc.MongoDB.ReadPreference, "MONGODB_READ_PREFERENCE")

	o.str(&cfg.Redis.Addr, tc.Redis.Addr, "REDIS_ADDR")
	o.str(&cfg.Redis.Password, tc.Redis.Password, "REDIS_PASSWORD")
	o.integer(&cfg.Redis.DB, tc.Redis.DB, "REDIS_DB")

	o.str(&cfg.Bus.Type, tc.Bus.Type, "BUS_TYPE")
	o.str(&cfg.Bus.NATSURL, tc.Bus.NATSURL, "NATS_URL")
	o.str(&cfg.Bus.EmbeddedHost, tc.Bus.EmbeddedHost, "NATS_EMBEDDED_HOST")
	o.integer(&cfg.Bus.EmbeddedPort, tc.Bus.EmbeddedPort, "NATS_EMBEDDED_PORT")
	o.integer(&cfg.Bus.BufferSize, tc.Bus.BufferSize, "BUS_BUFFER_SIZE")

	o.str(&cfg.Auth.Mode, tc.Auth.Mode, "AUTH_MODE")
	o.str(&cfg.Auth.JWT.Issuer, tc.Auth.JWT.Issuer, "JWT_ISSUER")
	o.str(&cfg.Auth.JWT.Audience, tc.Auth.JWT.Audience, "JWT_AUDIENCE")
	o.str(&cfg.Auth.JWT.HMACSecret, tc.Auth.JWT.HMACSecret, "JWT_HMAC_SECRET")
	o.str(&cfg.Auth.JWT.PublicKeyPath, tc.Auth.JWT.PublicKeyPath, "JWT_PUBLIC_KEY_PATH")

	o.str(&cfg.Presence.Region, tc.Presence.Region, "PRESENCE_REGION")
	o.duration(&cfg.Presence.HeartbeatTTL, tc.Presence.HeartbeatTTL, "PRESENCE_HEARTBEAT_TTL")
	o.duration(&cfg.Presence.SweepInterval, tc.Presence.SweepInterval, "PRESENCE_SWEEP_INTERVAL")
	if tc.Presence.BreakerFailures != 0 && !envSet("PRESENCE_BREAKER_FAILURES") {
		cfg.Presence.BreakerFailures = tc.Presence.BreakerFailures
	}
	o.duration(&cfg.Presence.BreakerTimeout, tc.Presence.BreakerTimeout, "PRESENCE_BREAKER_TIMEOUT")

	if tc.Socket.ReadLimit != 0 && !envSet("SOCKET_READ_LIMIT") {
		cfg.Socket.ReadLimit = tc.Socket.ReadLimit
	}
	o.duration(&cfg.Socket.WriteTimeout, tc.Socket.WriteTimeout, "SOCKET_WRITE_TIMEOUT")
	o.duration(&cfg.Socket.PingInterval, tc.Socket.PingInterval, "SOCKET_PING_INTERVAL")
	o.duration(&cfg.Socket.PongTimeout, tc.Socket.PongTimeout, "SOCKET_PONG_TIMEOUT")
	if tc.Socket.MessageRate != 0 && !envSet("SOCKET_MESSAGE_RATE") {
		cfg.Socket.MessageRate = tc.Socket.MessageRate
	}
	o.integer(&cfg.Socket.MessageBurst, tc.Socket.MessageBurst, "SOCKET_MESSAGE_BURST")
	o.slice(&cfg.Socket.AllowedOrigins, tc.Socket.AllowedOrigins, "SOCKET_ALLOWED_ORIGINS")

	o.boolean(&cfg.Leader.Enabled, tc.Leader.Enabled, "LEADER_ELECTION_ENABLED")
	o.str(&cfg.Leader.Backend, tc.Leader.Backend, "LEADER_BACKEND")
	o.str(&cfg.Leader.InstanceID, tc.Leader.InstanceID, "HOSTNAME")
	o.duration(&cfg.Leader.TTL, tc.Leader.TTL, "LEADER_TTL")
	o.duration(&cfg.Leader.RefreshInterval, tc.Leader.RefreshInterval, "LEADER_REFRESH_INTERVAL")

	applySecretsFile(&cfg.Secrets, &tc.Secrets)

	if tc.DevMode && !envSet("EMBER_DEV") {
		cfg.DevMode = true
	}

	return o.err
}

// applySecretsFile overlays file provider settings; EMBER_SECRETS_* env wins
func applySecretsFile(dst, file *secrets.Config) {
	o := overlay{}
	if file.Provider != "" && !envSet("EMBER_SECRETS_PROVIDER") {
		dst.Provider = file.Provider
	}
	o.str(&dst.EncryptionKey, file.EncryptionKey, "EMBER_SECRETS_ENCRYPTION_KEY")
	o.str(&dst.DataDir, file.DataDir, "EMBER_SECRETS_DATA_DIR")
	o.str(&dst.AWSRegion, file.AWSRegion, "EMBER_SECRETS_AWS_REGION")
	o.str(&dst.AWSPrefix, file.AWSPrefix, "EMBER_SECRETS_AWS_PREFIX")
	o.str(&dst.AWSEndpoint, file.AWSEndpoint, "EMBER_SECRETS_AWS_ENDPOINT")
	o.str(&dst.AWSAccessKey, file.AWSAccessKey, "EMBER_SECRETS_AWS_ACCESS_KEY")
	o.str(&dst.AWSSecretKey, file.AWSSecretKey, "EMBER_SECRETS_AWS_SECRET_KEY")
	o.str(&dst.VaultAddr, file.VaultAddr, "EMBER_SECRETS_VAULT_ADDR")
	o.str(&dst.VaultToken, file.VaultToken, "EMBER_SECRETS_VAULT_TOKEN")
	o.str(&dst.VaultMount, file.VaultMount, "EMBER_SECRETS_VAULT_MOUNT")
	o.str(&dst.VaultPath, file.VaultPath, "EMBER_SECRETS_VAULT_PATH")
	o.str(&dst.VaultNamespace, file.VaultNamespace, "EMBER_SECRETS_VAULT_NAMESPACE")
	o.str(&dst.GCPProject, file.GCPProject, "EMBER_SECRETS_GCP_PROJECT")
	o.str(&dst.GCPPrefix, file.GCPPrefix, "EMBER_SECRETS_GCP_PREFIX")
}

// overlay copies file values onto the config unless env already set them
type overlay struct {
	err error
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func (o *overlay) str(dst *string, v, env string) {
	if v != "" && !envSet(env) {
		*dst = v
	}
}

func (o *overlay) integer(dst *int, v int, env string) {
	if v != 0 && !envSet(env) {
		*dst = v
	}
}

func (o *overlay) boolean(dst *bool, v *bool, env string) {
	if v != nil && !envSet(env) {
		*dst = *v
	}
}

func (o *overlay) slice(dst *[]string, v []string, env string) {
	if len(v) > 0 && !envSet(env) {
		*dst = v
	}
}

func (o *overlay) duration(dst *time.Duration, v, env string) {
	if v == "" || envSet(env) {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if o.err == nil {
			o.err = fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return
	}
	*dst = d
}

// ResolveSecrets replaces secret: references in credential fields
func (c *Config) ResolveSecrets(ctx context.Context, r *secrets.Resolver) error {
	fields := []*string{
		&c.MongoDB.URI,
		&c.Redis.Password,
		&c.Bus.NATSURL,
		&c.Auth.JWT.HMACSecret,
	}

	for _, f := range fields {
		v, err := r.Resolve(ctx, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// NeedsSecrets reports whether any credential field is a secret reference
func (c *Config) NeedsSecrets() bool {
	for _, v := range []string{c.MongoDB.URI, c.Redis.Password, c.Bus.NATSURL, c.Auth.JWT.HMACSecret} {
		if secrets.IsReference(v) {
			return true
		}
	}
	return false
}

// Validate checks for combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.Bus.Type {
	case "redis", "nats", "embedded", "memory":
	default:
		return fmt.Errorf("unknown bus type %q", c.Bus.Type)
	}

	switch c.Auth.Mode {
	case "session":
	case "jwt":
		if c.Auth.JWT.HMACSecret == "" && c.Auth.JWT.PublicKeyPath == "" {
			return fmt.Errorf("jwt auth requires an hmac secret or a public key path")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	switch c.Leader.Backend {
	case "redis", "mongo":
	default:
		return fmt.Errorf("unknown leader backend %q", c.Leader.Backend)
	}

	if c.Presence.HeartbeatTTL <= c.Presence.SweepInterval {
		return fmt.Errorf("presence heartbeat ttl (%s) must exceed the sweep interval (%s)",
			c.Presence.HeartbeatTTL, c.Presence.SweepInterval)
	}
	if c.Socket.PongTimeout <= c.Socket.PingInterval {
		return fmt.Errorf("socket pong timeout (%s) must exceed the ping interval (%s)",
			c.Socket.PongTimeout, c.Socket.PingInterval)
	}
	return nil
}

// WriteExampleConfig writes an example configuration file
func WriteExampleConfig(path string) error {
	example := `# Ember socket configuration
# Environment variables override these settings.
# Credential fields accept "secret:<key>" references.

[http]
port = 9000
cors_origins = ["*"]

[mongodb]
uri = "mongodb://localhost:27017"
database = "ember"
max_pool_size = 100
create_indexes = true
read_preference = "primaryPreferred"  # primary, primaryPreferred, secondaryPreferred, nearest

[redis]
addr = "localhost:6379"
password = ""
db = 0

[bus]
type = "redis"  # redis, nats, embedded, or memory
nats_url = "nats://localhost:4222"
embedded_host = "127.0.0.1"
embedded_port = 4222
buffer_size = 256

[auth]
mode = "session"  # session or jwt

[auth.jwt]
issuer = "ember"
audience = ""
hmac_secret = ""
public_key_path = ""

[presence]
region = ""
heartbeat_ttl = "90s"
sweep_interval = "30s"
breaker_failures = 5
breaker_timeout = "30s"

[socket]
read_limit = 65536
write_timeout = "10s"
ping_interval = "30s"
pong_timeout = "60s"
message_rate = 10.0
message_burst = 20
allowed_origins = []

[leader]
enabled = true
backend = "redis"  # redis or mongo
instance_id = ""
ttl = "30s"
refresh_interval = "10s"

[secrets]
provider = "env"  # env, encrypted, aws-sm, vault, gcp-sm

# Encrypted provider
encryption_key = ""
data_dir = "./data/secrets"

# AWS Secrets Manager
aws_region = ""
aws_prefix = "/ember/"
aws_endpoint = ""

# HashiCorp Vault
vault_addr = ""
vault_mount = "secret"
vault_path = "ember"
vault_namespace = ""

# GCP Secret Manager
gcp_project = ""
gcp_prefix = "ember-"
`

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
