// Package commands implements the cluster-secrets subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/numtide/cluster-secrets/pkg/secrets/persistence/awssm"
)

// NewRestoreCommand reconstitutes mirrored secrets from AWS Secrets Manager
// into a cluster namespace. Run it before the manager's first reconciliation
// pass of a recovered cluster; existing secrets are left untouched.
func NewRestoreCommand() *cobra.Command {
	var (
		kubeconfig  string
		namespace   string
		prefix      string
		awsRegion   string
		awsEndpoint string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore mirrored secrets from the durable store into a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := ctrl.Log.WithName("restore")

			restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
			if err != nil {
				return fmt.Errorf("failed to load kubeconfig: %w", err)
			}
			c, err := client.New(restConfig, client.Options{Scheme: scheme.Scheme})
			if err != nil {
				return fmt.Errorf("failed to build cluster client: %w", err)
			}

			bridge, err := awssm.New(ctx, awssm.Options{
				Prefix:   prefix,
				Region:   awsRegion,
				Endpoint: awsEndpoint,
			})
			if err != nil {
				return fmt.Errorf("failed to build persistence bridge: %w", err)
			}

			restored, err := bridge.Restore(ctx)
			if err != nil {
				return fmt.Errorf("failed to restore from durable store: %w", err)
			}

			written, skipped := 0, 0
			for i := range restored {
				secret := &restored[i]
				if namespace != "" {
					secret.Namespace = namespace
				}
				if err := c.Create(ctx, secret); err != nil {
					if apierrors.IsAlreadyExists(err) {
						skipped++
						continue
					}
					return fmt.Errorf("failed to create secret %q: %w", secret.Name, err)
				}
				written++
			}

			logger.Info("restore complete", "written", written, "skipped", skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "path to the kubeconfig of the target cluster")
	cmd.Flags().StringVar(&namespace, "namespace", "", "override the namespace restored secrets are written to")
	cmd.Flags().StringVar(&prefix, "prefix", "", "durable-store prefix the secrets were mirrored under (required)")
	cmd.Flags().StringVar(&awsRegion, "aws-region", "", "AWS region of the durable store")
	cmd.Flags().StringVar(&awsEndpoint, "aws-endpoint", "", "custom AWS endpoint, e.g. LocalStack")
	_ = cmd.MarkFlagRequired("prefix")

	return cmd
}
