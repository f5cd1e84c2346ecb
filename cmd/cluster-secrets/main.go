package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/numtide/cluster-secrets/cmd/cluster-secrets/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "cluster-secrets",
		Short: "Operational tooling for managed control-plane secrets",
		Long: `cluster-secrets provides the out-of-band operations around the secrets
manager library: restoring mirrored secrets from the durable store into a
cluster before the first reconciliation pass.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctrl.SetLogger(zap.New(zap.UseDevMode(debug)))
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(commands.NewRestoreCommand())

	return rootCmd.Execute()
}
