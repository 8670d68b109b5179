package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI defines the Secrets Manager operations used by the
// secret store.
type SecretsManagerAPI interface {
	// GetSecretValue retrieves a secret value.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretStore reads the Givebutter API key from AWS Secrets Manager. The key
// is rotated out of band, so the store never writes.
type SecretStore struct {
	// client is the Secrets Manager API client.
	client SecretsManagerAPI

	// secretARN is the ARN of the secret storing the API key.
	secretARN string
}

// APIKey returns the current API key from Secrets Manager.
func (s *SecretStore) APIKey(ctx context.Context) (string, error) {
	output, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret from Secrets Manager: %w", err)
	}

	if output.SecretString == nil {
		return "", errors.New("secret has no string value")
	}

	key := strings.TrimSpace(*output.SecretString)
	if key == "" {
		return "", errors.New("secret value is empty")
	}

	return key, nil
}

// NewSecretStore creates a new Secrets Manager-backed secret store.
func NewSecretStore(client SecretsManagerAPI, secretARN string) (*SecretStore, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	if secretARN == "" {
		return nil, errors.New("secret ARN is required")
	}

	return &SecretStore{
		client:    client,
		secretARN: secretARN,
	}, nil
}
