package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// AWSSecretsManagerProvider uses AWS Secrets Manager as the backend
type AWSSecretsManagerProvider struct {
	client *secretsmanager.Client
	prefix string
}

// NewAWSSecretsManagerProvider creates a new AWS Secrets Manager provider
func NewAWSSecretsManagerProvider(ctx context.Context, cfg *Config) (*AWSSecretsManagerProvider, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.AWSRegion != "" {
		opts = append(opts, config.WithRegion(cfg.AWSRegion))
	}

	// Use explicit credentials if provided
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var smOpts []func(*secretsmanager.Options)
	if cfg.AWSEndpoint != "" {
		smOpts = append(smOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		})
	}

	return newAWSProvider(secretsmanager.NewFromConfig(awsCfg, smOpts...), cfg.AWSPrefix), nil
}

func newAWSProvider(client *secretsmanager.Client, prefix string) *AWSSecretsManagerProvider {
	if prefix == "" {
		prefix = "/ember/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &AWSSecretsManagerProvider{client: client, prefix: prefix}
}

// Get retrieves the current version of a secret. Keys may select a
// staging label with "<key>@<stage>", e.g. "mongodb@AWSPREVIOUS" during a
// rotation rollback.
func (p *AWSSecretsManagerProvider) Get(ctx context.Context, key string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{}
	name, stage, ok := strings.Cut(key, "@")
	input.SecretId = aws.String(p.prefix + name)
	if ok && stage != "" {
		input.VersionStage = aws.String(stage)
	}

	result, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	if result.SecretString != nil {
		return *result.SecretString, nil
	}
	if len(result.SecretBinary) > 0 {
		return string(result.SecretBinary), nil
	}

	return "", ErrSecretNotFound
}

// Name returns the provider name
func (p *AWSSecretsManagerProvider) Name() string {
	return "aws-sm"
}
