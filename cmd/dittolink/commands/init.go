package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *sessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the container's root group",
		Long: `Open the configured store and create the container's root group if the
store is new. Running init on an initialized store changes nothing.

Examples:
  # Initialize the container described by the default config
  dittolink init

  # Initialize a persistent store
  DITTOLINK_STORE_TYPE=badger dittolink init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				last, err := s.readTx(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "container %q ready on %s store %q (root %s, committed tx %d)\n",
					s.container, s.cfg.Store.Type, s.cfg.Store.Name, object.RootID, last)
				return nil
			})
		},
	}
}
