package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/require"
)

type mockSecretsManagerAPI struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsManagerAPI) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getSecretValueFunc != nil {
		return m.getSecretValueFunc(ctx, params, optFns...)
	}
	return &secretsmanager.GetSecretValueOutput{}, nil
}

func TestNewSecretStore(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		client    SecretsManagerAPI
		errMsg    string
		secretARN string
		wantErr   bool
	}{
		"valid inputs": {
			client:    &mockSecretsManagerAPI{},
			secretARN: "arn:aws:secretsmanager:us-east-1:123456789012:secret:api-key",
			wantErr:   false,
		},
		"nil client": {
			client:    nil,
			secretARN: "arn:aws:secretsmanager:us-east-1:123456789012:secret:api-key",
			wantErr:   true,
			errMsg:    "secrets manager client is required",
		},
		"empty secret ARN": {
			client:    &mockSecretsManagerAPI{},
			secretARN: "",
			wantErr:   true,
			errMsg:    "secret ARN is required",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, err := NewSecretStore(tc.client, tc.secretARN)

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
				require.Nil(t, store)
			} else {
				require.NoError(t, err)
				require.NotNil(t, store)
			}
		})
	}
}

func TestSecretStore_APIKey(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		client  *mockSecretsManagerAPI
		errMsg  string
		want    string
		wantErr bool
	}{
		"returns key": {
			client: &mockSecretsManagerAPI{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return &secretsmanager.GetSecretValueOutput{
						SecretString: aws.String("gb_live_key_123"),
					}, nil
				},
			},
			want:    "gb_live_key_123",
			wantErr: false,
		},
		"trims surrounding whitespace": {
			client: &mockSecretsManagerAPI{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return &secretsmanager.GetSecretValueOutput{
						SecretString: aws.String("  gb_live_key_123\n"),
					}, nil
				},
			},
			want:    "gb_live_key_123",
			wantErr: false,
		},
		"errors when secret has no string value": {
			client: &mockSecretsManagerAPI{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return &secretsmanager.GetSecretValueOutput{SecretString: nil}, nil
				},
			},
			wantErr: true,
			errMsg:  "secret has no string value",
		},
		"errors when secret value is empty": {
			client: &mockSecretsManagerAPI{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return &secretsmanager.GetSecretValueOutput{
						SecretString: aws.String("   "),
					}, nil
				},
			},
			wantErr: true,
			errMsg:  "secret value is empty",
		},
		"errors on secrets manager error": {
			client: &mockSecretsManagerAPI{
				getSecretValueFunc: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return nil, errors.New("secrets manager error")
				},
			},
			wantErr: true,
			errMsg:  "getting secret from Secrets Manager",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, err := NewSecretStore(tc.client, "arn:aws:secretsmanager:us-east-1:123456789012:secret:api-key")
			require.NoError(t, err)

			got, err := store.APIKey(context.Background())

			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errMsg)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.want, got)
			}
		})
	}
}
