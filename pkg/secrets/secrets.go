package secrets

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	feedconfig "github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/util"
)

type SecretsManager struct {
	client *secretsmanager.Client
}

func New(ctx context.Context, region string) (SecretsManager, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return SecretsManager{}, util.WrapErr("failed to load aws config", err)
	}

	return SecretsManager{client: secretsmanager.NewFromConfig(cfg)}, nil
}

func (s SecretsManager) GetSecret(ctx context.Context, secretName string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	}

	result, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		return "", util.WrapErr("failed to get secret value", err)
	}
	if result.SecretString == nil {
		return "", errors.New("secret has no string value")
	}

	return *result.SecretString, nil
}

// RemoteAPIToken resolves the token for the remote post source. Secrets Manager is only
// consulted when enabled; otherwise the token comes from the environment, possibly empty.
func RemoteAPIToken(ctx context.Context, cfg feedconfig.Config) (string, error) {
	if !cfg.SecretsEnabled {
		return cfg.RemoteAPIToken, nil
	}

	manager, err := New(ctx, cfg.SecretsRegion)
	if err != nil {
		return "", err
	}
	return manager.GetSecret(ctx, cfg.RemoteTokenSecretName)
}
