package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultProvider reads KV v2 secrets from HashiCorp Vault. Each secret is
// stored at <mount>/<path>/<key>; plain references read the "value" field
// and field references read the named field.
type VaultProvider struct {
	kv   *vault.KVv2
	path string
}

// NewVaultProvider creates a new HashiCorp Vault provider
func NewVaultProvider(cfg *Config) (*VaultProvider, error) {
	if cfg.VaultAddr == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderError)
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.VaultAddr

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if cfg.VaultToken != "" {
		client.SetToken(cfg.VaultToken)
	}
	if cfg.VaultNamespace != "" {
		client.SetNamespace(cfg.VaultNamespace)
	}

	mount := cfg.VaultMount
	if mount == "" {
		mount = "secret"
	}

	return &VaultProvider{
		kv:   client.KVv2(mount),
		path: strings.Trim(cfg.VaultPath, "/"),
	}, nil
}

// Get retrieves the "value" field of a secret
func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	return p.GetField(ctx, key, "value")
}

// GetField retrieves one field of a KV secret
func (p *VaultProvider) GetField(ctx context.Context, key, field string) (string, error) {
	secret, err := p.kv.Get(ctx, p.secretPath(key))
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	switch value := secret.Data[field].(type) {
	case string:
		return value, nil
	case nil:
		return "", fmt.Errorf("%w: field %q", ErrSecretNotFound, field)
	default:
		return "", fmt.Errorf("%w: field %q is not a string", ErrProviderError, field)
	}
}

// Name returns the provider name
func (p *VaultProvider) Name() string {
	return "vault"
}

func (p *VaultProvider) secretPath(key string) string {
	if p.path == "" {
		return key
	}
	return p.path + "/" + key
}
