// Package commands implements the dittolink command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCmd builds the dittolink command tree.
func NewRootCmd() *cobra.Command {
	opts := &sessionOptions{}

	rootCmd := &cobra.Command{
		Use:   "dittolink",
		Short: "DittoLink - link and object lifetime manager",
		Long: `DittoLink manages the named links of a container held in an object store.

Groups hold links to objects. A hard link names an object and counts
towards its link count; the object and its sub-objects are deleted when
the last hard link is removed. A soft link stores a path that is only
resolved when it is traversed.

Paths starting with '/' are resolved from the container's root group.

Use "dittolink [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittolink/config.yaml)")
	flags.StringVar(&opts.container, "container", "", "container name (overrides links.container)")
	flags.StringVar(&opts.storeType, "store", "", "store type: memory, badger or s3 (overrides store.type)")
	flags.StringVar(&opts.client, "client", "", "client tag recorded in logs (default: cli:<pid>)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(opts),
		newConfigCmd(opts),
		newMkgroupCmd(opts),
		newLnCmd(opts),
		newMoveCmd(opts, false),
		newMoveCmd(opts, true),
		newRmCmd(opts),
		newExistsCmd(opts),
		newInfoCmd(opts),
		newReadlinkCmd(opts),
		newLsCmd(opts),
		newApplyCmd(opts),
		newGCCmd(opts),
		newServeMetricsCmd(opts),
	)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, opts *sessionOptions, fn func(ctx context.Context, s *session) error) error {
	return runSession(contextOf(cmd), *opts, fn)
}

func runSession(ctx context.Context, opts sessionOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return fn(ctx, s)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dittolink %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}
