package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.ember.chat/internal/common/secrets"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Bus.Type != "redis" {
		t.Errorf("Expected redis bus, got %s", cfg.Bus.Type)
	}
	if cfg.Auth.Mode != "session" {
		t.Errorf("Expected session auth, got %s", cfg.Auth.Mode)
	}
	if cfg.Presence.HeartbeatTTL != 90*time.Second {
		t.Errorf("Expected 90s heartbeat ttl, got %s", cfg.Presence.HeartbeatTTL)
	}
	if cfg.MongoDB.ReadPreference != "primaryPreferred" {
		t.Errorf("Expected primaryPreferred reads, got %s", cfg.MongoDB.ReadPreference)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("BUS_TYPE", "nats")
	t.Setenv("SOCKET_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SOCKET_PING_INTERVAL", "5s")
	t.Setenv("EMBER_DEV", "true")

	cfg, _ := Load()

	if cfg.HTTP.Port != 9100 {
		t.Errorf("Expected port 9100, got %d", cfg.HTTP.Port)
	}
	if cfg.Bus.Type != "nats" {
		t.Errorf("Expected nats bus, got %s", cfg.Bus.Type)
	}
	if len(cfg.Socket.AllowedOrigins) != 2 || cfg.Socket.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Expected two trimmed origins, got %v", cfg.Socket.AllowedOrigins)
	}
	if cfg.Socket.PingInterval != 5*time.Second {
		t.Errorf("Expected 5s ping interval, got %s", cfg.Socket.PingInterval)
	}
	if !cfg.DevMode {
		t.Error("Expected dev mode")
	}
}

func TestLoadWithFile_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	content := `
[http]
port = 9200

[bus]
type = "embedded"

[presence]
region = "eu-west"
sweep_interval = "10s"

[leader]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("EMBER_CONFIG", path)
	t.Setenv("BUS_TYPE", "memory")

	cfg, err := LoadWithFile()
	if err != nil {
		t.Fatalf("LoadWithFile failed: %v", err)
	}

	if cfg.HTTP.Port != 9200 {
		t.Errorf("Expected file port 9200, got %d", cfg.HTTP.Port)
	}
	if cfg.Bus.Type != "memory" {
		t.Errorf("Expected env bus type memory, got %s", cfg.Bus.Type)
	}
	if cfg.Presence.Region != "eu-west" {
		t.Errorf("Expected region eu-west, got %s", cfg.Presence.Region)
	}
	if cfg.Presence.SweepInterval != 10*time.Second {
		t.Errorf("Expected 10s sweep interval, got %s", cfg.Presence.SweepInterval)
	}
	if cfg.Leader.Enabled {
		t.Error("Expected leader election disabled by file")
	}
}

func TestLoadWithFile_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ember.toml")
	os.WriteFile(path, []byte("[socket]\nping_interval = \"soon\"\n"), 0644)
	t.Setenv("EMBER_CONFIG", path)

	if _, err := LoadWithFile(); err == nil {
		t.Error("Expected invalid duration to fail")
	}
}

func TestWriteExampleConfig_Loads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := WriteExampleConfig(path); err != nil {
		t.Fatalf("WriteExampleConfig failed: %v", err)
	}

	t.Setenv("EMBER_CONFIG", path)
	cfg, err := LoadWithFile()
	if err != nil {
		t.Fatalf("LoadWithFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected example config to validate, got %v", err)
	}
	if cfg.Secrets.VaultMount != "secret" {
		t.Errorf("Expected vault mount secret, got %s", cfg.Secrets.VaultMount)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown bus", func(c *Config) { c.Bus.Type = "kafka" }},
		{"jwt without keys", func(c *Config) { c.Auth.Mode = "jwt" }},
		{"unknown auth", func(c *Config) { c.Auth.Mode = "oauth" }},
		{"unknown leader", func(c *Config) { c.Leader.Backend = "zookeeper" }},
		{"heartbeat too short", func(c *Config) { c.Presence.HeartbeatTTL = c.Presence.SweepInterval }},
		{"pong too short", func(c *Config) { c.Socket.PongTimeout = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("EMBER_SECRET_JWT_KEY", "shared")
	t.Setenv("EMBER_SECRET_REDIS", "pw")

	cfg, _ := Load()
	cfg.Auth.JWT.HMACSecret = "secret:jwt-key"
	cfg.Redis.Password = "secret:redis"

	if !cfg.NeedsSecrets() {
		t.Fatal("Expected secret references to be detected")
	}

	r := secrets.NewResolver(secrets.NewEnvProvider("EMBER_SECRET_"))
	if err := cfg.ResolveSecrets(context.Background(), r); err != nil {
		t.Fatalf("ResolveSecrets failed: %v", err)
	}

	if cfg.Auth.JWT.HMACSecret != "shared" || cfg.Redis.Password != "pw" {
		t.Errorf("Unexpected resolved values: %q %q", cfg.Auth.JWT.HMACSecret, cfg.Redis.Password)
	}
	if cfg.MongoDB.URI != "mongodb://localhost:27017" {
		t.Errorf("Expected plain URI untouched, got %s", cfg.MongoDB.URI)
	}
	if cfg.NeedsSecrets() {
		t.Error("Expected no references after resolution")
	}
}
