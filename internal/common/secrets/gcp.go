package secrets

import (
	"context"
	"fmt"
	"hash/crc32"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerProvider uses GCP Secret Manager as the backend
type GCPSecretManagerProvider struct {
	client  *secretmanager.Client
	project string
	prefix  string
}

// NewGCPSecretManagerProvider creates a new GCP Secret Manager provider
func NewGCPSecretManagerProvider(ctx context.Context, cfg *Config) (*GCPSecretManagerProvider, error) {
	if cfg.GCPProject == "" {
		return nil, fmt.Errorf("%w: GCP project is required", ErrProviderError)
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	return newGCPProvider(client, cfg.GCPProject, cfg.GCPPrefix), nil
}

func newGCPProvider(client *secretmanager.Client, project, prefix string) *GCPSecretManagerProvider {
	if prefix == "" {
		prefix = "ember-"
	}
	return &GCPSecretManagerProvider{
		client:  client,
		project: project,
		prefix:  prefix,
	}
}

// Get retrieves the latest version of a secret
func (p *GCPSecretManagerProvider) Get(ctx context.Context, key string) (string, error) {
	result, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.versionName(key),
	})
	if err != nil {
		if isGCPNotFoundError(err) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	payload := result.GetPayload()
	if payload == nil {
		return "", ErrSecretNotFound
	}
	if payload.DataCrc32C != nil && int64(crc32.Checksum(payload.Data, castagnoli)) != payload.GetDataCrc32C() {
		return "", fmt.Errorf("%w: checksum mismatch for %q", ErrProviderError, key)
	}
	return string(payload.Data), nil
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Name returns the provider name
func (p *GCPSecretManagerProvider) Name() string {
	return "gcp-sm"
}

// Close closes the GCP client
func (p *GCPSecretManagerProvider) Close() error {
	return p.client.Close()
}

// versionName maps a key to the latest version. Keys may pin a version
// with "<key>@<version>".
func (p *GCPSecretManagerProvider) versionName(key string) string {
	name, version, ok := strings.Cut(key, "@")
	if !ok || version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s%s/versions/%s", p.project, p.prefix, name, version)
}

// isGCPNotFoundError checks if the error is a GCP not found error
func isGCPNotFoundError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.NotFound
}
