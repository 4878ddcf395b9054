//go:build integration

// This file contains integration tests that require Docker and LocalStack
package secrets

import (
	"context"
	"errors"
	"testing"

	"go.ember.chat/internal/common/testutil"
)

func TestAWSSecretsManagerIntegration_Get(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	ls, err := testutil.StartLocalStack(ctx, t)
	if err != nil {
		t.Fatalf("Failed to start LocalStack: %v", err)
	}
	defer ls.Terminate(ctx)

	if err := ls.CreateSecret(ctx, "/ember/jwt-secret", "from-aws"); err != nil {
		t.Fatalf("Failed to seed secret: %v", err)
	}

	p, err := NewAWSSecretsManagerProvider(ctx, &Config{
		AWSRegion:    "us-east-1",
		AWSPrefix:    "/ember",
		AWSEndpoint:  ls.Endpoint,
		AWSAccessKey: "test",
		AWSSecretKey: "test",
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	v, err := p.Get(ctx, "jwt-secret")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "from-aws" {
		t.Errorf("Expected from-aws, got %s", v)
	}

	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("Expected ErrSecretNotFound, got %v", err)
	}

	resolved, err := NewResolver(p).Resolve(ctx, "secret:jwt-secret")
	if err != nil || resolved != "from-aws" {
		t.Errorf("Expected resolver to return from-aws, got %q (%v)", resolved, err)
	}

	if err := ls.CreateSecret(ctx, "/ember/socket", `{"redis_password":"pw"}`); err != nil {
		t.Fatalf("Failed to seed JSON secret: %v", err)
	}
	field, err := NewResolver(p).Resolve(ctx, "secret:socket#redis_password")
	if err != nil || field != "pw" {
		t.Errorf("Expected JSON field pw, got %q (%v)", field, err)
	}

	current, err := p.Get(ctx, "jwt-secret@AWSCURRENT")
	if err != nil || current != "from-aws" {
		t.Errorf("Expected staged read to return from-aws, got %q (%v)", current, err)
	}
}
