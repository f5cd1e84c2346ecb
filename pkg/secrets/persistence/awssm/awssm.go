// Package awssm mirrors managed secrets into AWS Secrets Manager for
// disaster recovery and restores them before a manager's first
// reconciliation pass.
package awssm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/numtide/cluster-secrets/pkg/secrets/persistence"
)

// ClientAPI defines the AWS Secrets Manager operations the bridge needs.
// This allows for mocking in tests.
type ClientAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// Options configures the bridge.
type Options struct {
	// Prefix namespaces all mirrored secrets in AWS, typically the manager
	// identity. Required.
	Prefix string

	// Region defaults to us-east-1.
	Region string

	// Endpoint optionally points at a custom endpoint, e.g. LocalStack.
	Endpoint string

	// AccessKeyID and SecretAccessKey optionally configure static
	// credentials for testing setups; the default credential chain is used
	// otherwise.
	AccessKeyID     string
	SecretAccessKey string
}

// Bridge is the AWS Secrets Manager persistence bridge.
type Bridge struct {
	client  ClientAPI
	options Options
}

var _ persistence.Bridge = &Bridge{}

// BridgeOption configures optional behavior for New.
type BridgeOption func(*Bridge)

// WithClient sets a custom Secrets Manager client (for testing).
func WithClient(client ClientAPI) BridgeOption {
	return func(b *Bridge) {
		b.client = client
	}
}

// New creates the bridge. Unless a client is injected, the default AWS
// credential chain is loaded, honoring the Options overrides.
func New(ctx context.Context, opts Options, bridgeOpts ...BridgeOption) (*Bridge, error) {
	if opts.Prefix == "" {
		return nil, fmt.Errorf("prefix must be set")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	b := &Bridge{options: opts}
	for _, opt := range bridgeOpts {
		opt(b)
	}

	if b.client == nil {
		configOpts := []func(*config.LoadOptions) error{
			config.WithRegion(opts.Region),
		}
		if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
			))
		}

		cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if opts.Endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &opts.Endpoint
			})
		}
		b.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return b, nil
}

// envelope is the JSON document stored per mirrored secret. Data values are
// base64-encoded by encoding/json's []byte handling.
type envelope struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace"`
	Labels    map[string]string `json:"labels,omitempty"`
	Data      map[string][]byte `json:"data"`
}

func (b *Bridge) remoteName(namespace, name string) string {
	return b.options.Prefix + "/" + namespace + "/" + name
}

// Sync mirrors one secret. Creating an already-mirrored name falls through
// to writing a new version, so repeated syncs of the same secret are safe.
func (b *Bridge) Sync(ctx context.Context, secret *corev1.Secret) error {
	payload, err := json.Marshal(envelope{
		Name:      secret.Name,
		Namespace: secret.Namespace,
		Labels:    secret.Labels,
		Data:      secret.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode secret %q: %w", secret.Name, err)
	}

	remote := b.remoteName(secret.Namespace, secret.Name)
	_, err = b.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(remote),
		SecretString: aws.String(string(payload)),
	})
	if err == nil {
		return nil
	}

	var exists *types.ResourceExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("failed to create mirror %q: %w", remote, err)
	}

	if _, err := b.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(remote),
		SecretString: aws.String(string(payload)),
	}); err != nil {
		return fmt.Errorf("failed to update mirror %q: %w", remote, err)
	}
	return nil
}

// Restore fetches every mirrored secret under the bridge prefix and decodes
// it back into a Secret object. Undecodable mirrors are skipped with a log
// line rather than failing the whole restore.
func (b *Bridge) Restore(ctx context.Context) ([]corev1.Secret, error) {
	logger := log.FromContext(ctx)

	var restored []corev1.Secret
	var nextToken *string
	for {
		out, err := b.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
			NextToken: nextToken,
			Filters: []types.Filter{{
				Key:    types.FilterNameStringTypeName,
				Values: []string{b.options.Prefix + "/"},
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list mirrors: %w", err)
		}

		for _, entry := range out.SecretList {
			if entry.Name == nil {
				continue
			}
			value, err := b.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: entry.Name,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to fetch mirror %q: %w", *entry.Name, err)
			}
			if value.SecretString == nil {
				logger.Info("skipping mirror without string value", "mirror", *entry.Name)
				continue
			}

			var env envelope
			if err := json.Unmarshal([]byte(*value.SecretString), &env); err != nil {
				logger.Error(err, "skipping undecodable mirror", "mirror", *entry.Name)
				continue
			}

			restored = append(restored, corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:      env.Name,
					Namespace: env.Namespace,
					Labels:    env.Labels,
				},
				Type: corev1.SecretTypeOpaque,
				Data: env.Data,
			})
		}

		if out.NextToken == nil {
			return restored, nil
		}
		nextToken = out.NextToken
	}
}
