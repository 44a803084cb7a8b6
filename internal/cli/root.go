// Package cli implements the ailabctl command line.
package cli

import (
	"os"
	"time"

	"github.com/ashureev/ailab/internal/client"
	"github.com/spf13/cobra"
)

const defaultServer = "http://127.0.0.1:8000"

type options struct {
	server  string
	timeout time.Duration
	version string
}

func (o *options) client() *client.Client {
	return client.New(o.server, nil)
}

// Execute runs the root command.
func Execute(version string) error {
	return NewRoot(version).Execute()
}

// NewRoot builds the ailabctl command tree.
func NewRoot(version string) *cobra.Command {
	opts := &options{version: version}
	server := os.Getenv("AILAB_SERVER")
	if server == "" {
		server = defaultServer
	}

	root := &cobra.Command{
		Use:           "ailabctl",
		Short:         "Talk to an AI lab partner server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "lab server base URL (env AILAB_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall request timeout")

	root.AddCommand(
		experimentsCmd(opts),
		showCmd(opts),
		demoCmd(opts),
		computeCmd(opts),
		reportsCmd(opts),
		reportCmd(opts),
		healthCmd(opts),
		versionCmd(opts),
	)
	return root
}
