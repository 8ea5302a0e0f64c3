package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const lookupTimeout = 10 * time.Second

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reports secrets available when every configured secret can
// be read. Values are never retained.
type SecretsManager struct {
	client    SecretsManagerAPI
	secretIDs []string
	region    string
}

// SecretsManagerOption configures a SecretsManager checker.
type SecretsManagerOption func(*SecretsManager)

// WithSecretsManagerClient sets a custom client (useful for testing).
func WithSecretsManagerClient(c SecretsManagerAPI) SecretsManagerOption {
	return func(s *SecretsManager) { s.client = c }
}

// WithRegion sets the AWS region used when no client is injected.
func WithRegion(region string) SecretsManagerOption {
	return func(s *SecretsManager) { s.region = region }
}

// NewSecretsManager creates a checker for secretIDs.
func NewSecretsManager(ctx context.Context, secretIDs []string, opts ...SecretsManagerOption) (*SecretsManager, error) {
	if len(secretIDs) == 0 {
		return nil, fmt.Errorf("secretsmanager checker: at least one secret id required")
	}
	s := &SecretsManager{secretIDs: secretIDs}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if s.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(s.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = secretsmanager.NewFromConfig(cfg)
	}
	return s, nil
}

// Available implements Checker.
func (s *SecretsManager) Available(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	for _, id := range s.secretIDs {
		out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(id),
		})
		if err != nil {
			return false, fmt.Errorf("reading secret %s: %w", id, err)
		}
		if out.SecretString == nil && len(out.SecretBinary) == 0 {
			return false, nil
		}
	}
	return true, nil
}
