// Package secrets resolves configuration secrets from pluggable backends.
//
// Config values written as "secret:<key>" are looked up through the
// configured Provider at startup. "secret:<key>#<field>" selects one field
// of a secret holding a JSON object, so a single secret can carry every
// credential of a deployment. Providers are read-only; secrets are managed
// by whatever owns the backing store.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrInvalidKey     = errors.New("invalid encryption key")
	ErrProviderError  = errors.New("provider error")
)

// ReferencePrefix marks a config value that names a secret
const ReferencePrefix = "secret:"

// Provider defines the interface for secret storage backends
type Provider interface {
	// Get retrieves a secret by key
	Get(ctx context.Context, key string) (string, error)

	// Name returns the provider name for logging
	Name() string
}

// FieldProvider is implemented by backends that store structured secrets
// natively and can read a single field without JSON decoding.
type FieldProvider interface {
	GetField(ctx context.Context, key, field string) (string, error)
}

// ProviderType represents the type of secret provider
type ProviderType string

const (
	ProviderTypeEncrypted ProviderType = "encrypted"
	ProviderTypeAWSSM     ProviderType = "aws-sm"
	ProviderTypeVault     ProviderType = "vault"
	ProviderTypeGCPSM     ProviderType = "gcp-sm"
	ProviderTypeEnv       ProviderType = "env" // Simple environment variable provider
)

// Config holds configuration for the secrets provider
type Config struct {
	// Provider type
	Provider ProviderType `json:"provider" toml:"provider"`

	// Encrypted provider settings
	EncryptionKey string `json:"encryptionKey" toml:"encryption_key"`
	DataDir       string `json:"dataDir" toml:"data_dir"`

	// AWS Secrets Manager settings
	AWSRegion    string `json:"awsRegion" toml:"aws_region"`
	AWSPrefix    string `json:"awsPrefix" toml:"aws_prefix"`
	AWSEndpoint  string `json:"awsEndpoint" toml:"aws_endpoint"` // For LocalStack
	AWSAccessKey string `json:"awsAccessKey" toml:"aws_access_key"`
	AWSSecretKey string `json:"awsSecretKey" toml:"aws_secret_key"`

	// HashiCorp Vault settings
	VaultAddr      string `json:"vaultAddr" toml:"vault_addr"`
	VaultToken     string `json:"vaultToken" toml:"vault_token"`
	VaultMount     string `json:"vaultMount" toml:"vault_mount"`
	VaultPath      string `json:"vaultPath" toml:"vault_path"`
	VaultNamespace string `json:"vaultNamespace" toml:"vault_namespace"`

	// GCP Secret Manager settings
	GCPProject string `json:"gcpProject" toml:"gcp_project"`
	GCPPrefix  string `json:"gcpPrefix" toml:"gcp_prefix"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderTypeEnv,
		DataDir:    "./data/secrets",
		AWSPrefix:  "/ember/",
		VaultMount: "secret",
		VaultPath:  "ember",
		GCPPrefix:  "ember-",
	}
}

// LoadConfigFromEnv loads configuration from environment variables
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if p := os.Getenv("EMBER_SECRETS_PROVIDER"); p != "" {
		cfg.Provider = ProviderType(strings.ToLower(p))
	}

	// Encrypted provider
	if k := os.Getenv("EMBER_SECRETS_ENCRYPTION_KEY"); k != "" {
		cfg.EncryptionKey = k
	}
	if d := os.Getenv("EMBER_SECRETS_DATA_DIR"); d != "" {
		cfg.DataDir = d
	}

	// AWS
	if r := os.Getenv("EMBER_SECRETS_AWS_REGION"); r != "" {
		cfg.AWSRegion = r
	} else if r := os.Getenv("AWS_REGION"); r != "" {
		cfg.AWSRegion = r
	}
	if p := os.Getenv("EMBER_SECRETS_AWS_PREFIX"); p != "" {
		cfg.AWSPrefix = p
	}
	if e := os.Getenv("EMBER_SECRETS_AWS_ENDPOINT"); e != "" {
		cfg.AWSEndpoint = e
	}

	// Vault
	if a := os.Getenv("EMBER_SECRETS_VAULT_ADDR"); a != "" {
		cfg.VaultAddr = a
	} else if a := os.Getenv("VAULT_ADDR"); a != "" {
		cfg.VaultAddr = a
	}
	if t := os.Getenv("EMBER_SECRETS_VAULT_TOKEN"); t != "" {
		cfg.VaultToken = t
	} else if t := os.Getenv("VAULT_TOKEN"); t != "" {
		cfg.VaultToken = t
	}
	if m := os.Getenv("EMBER_SECRETS_VAULT_MOUNT"); m != "" {
		cfg.VaultMount = m
	}
	if p := os.Getenv("EMBER_SECRETS_VAULT_PATH"); p != "" {
		cfg.VaultPath = p
	}
	if n := os.Getenv("EMBER_SECRETS_VAULT_NAMESPACE"); n != "" {
		cfg.VaultNamespace = n
	}

	// GCP
	if p := os.Getenv("EMBER_SECRETS_GCP_PROJECT"); p != "" {
		cfg.GCPProject = p
	} else if p := os.Getenv("GOOGLE_CLOUD_PROJECT"); p != "" {
		cfg.GCPProject = p
	}
	if p := os.Getenv("EMBER_SECRETS_GCP_PREFIX"); p != "" {
		cfg.GCPPrefix = p
	}

	return cfg
}

// NewProvider creates a new secret provider based on configuration
func NewProvider(ctx context.Context, cfg *Config) (Provider, error) {
	if cfg == nil {
		cfg = LoadConfigFromEnv()
	}

	switch cfg.Provider {
	case ProviderTypeEncrypted:
		return NewEncryptedProvider(cfg.EncryptionKey, cfg.DataDir)
	case ProviderTypeAWSSM:
		return NewAWSSecretsManagerProvider(ctx, cfg)
	case ProviderTypeVault:
		return NewVaultProvider(cfg)
	case ProviderTypeGCPSM:
		return NewGCPSecretManagerProvider(ctx, cfg)
	case ProviderTypeEnv, "":
		return NewEnvProvider("EMBER_SECRET_"), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

// IsReference reports whether value names a secret
func IsReference(value string) bool {
	return strings.HasPrefix(value, ReferencePrefix)
}

// Resolver expands secret references, fetching each key at most once
type Resolver struct {
	provider Provider

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver over a provider
func NewResolver(p Provider) *Resolver {
	return &Resolver{provider: p, cache: make(map[string]string)}
}

// Resolve returns value unchanged unless it is a secret reference,
// in which case the referenced secret is returned.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}

	ref := strings.TrimPrefix(value, ReferencePrefix)
	key, field, _ := strings.Cut(ref, "#")
	if key == "" {
		return "", fmt.Errorf("%w: empty secret reference", ErrSecretNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache[ref]; ok {
		return v, nil
	}

	v, err := r.fetch(ctx, key, field)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret %q from %s: %w", ref, r.provider.Name(), err)
	}
	r.cache[ref] = v
	return v, nil
}

func (r *Resolver) fetch(ctx context.Context, key, field string) (string, error) {
	if field == "" {
		return r.provider.Get(ctx, key)
	}
	if fp, ok := r.provider.(FieldProvider); ok {
		return fp.GetField(ctx, key, field)
	}

	raw, err := r.provider.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return jsonField(raw, field)
}

// jsonField extracts a string field from a JSON object secret
func jsonField(raw, field string) (string, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("%w: secret is not a JSON object", ErrProviderError)
	}

	switch v := doc[field].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: field %q", ErrSecretNotFound, field)
	default:
		return "", fmt.Errorf("%w: field %q is not a string", ErrProviderError, field)
	}
}

// EnvProvider reads secrets from environment variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Get retrieves a secret from environment variables
func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(key))
	value, ok := os.LookupEnv(envKey)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return "env"
}
