package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/spf13/cobra"
)

func newMkgroupCmd(opts *sessionOptions) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "mkgroup PATH",
		Short: "Create an object and hard link it at PATH",
		Long: `Create a new object and link it at PATH. The object starts with a link
count of one.

Examples:
  dittolink mkgroup /experiments
  dittolink mkgroup --type dataset /experiments/run1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := object.ParseObjectType(typeName)
			if err != nil {
				return err
			}
			if typ == object.TypeRoot || typ == object.TypeKV {
				return fmt.Errorf("cannot create a %s object", typ)
			}

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				id, err := s.mkobj(ctx, args[0], typ)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "group", "object type: group, dataset or datatype")
	return cmd
}

func newLnCmd(opts *sessionOptions) *cobra.Command {
	var soft bool

	cmd := &cobra.Command{
		Use:   "ln [-s] TARGET LINK",
		Short: "Create a link",
		Long: `Create a hard link at LINK to the object TARGET resolves to, or with -s a
soft link at LINK holding TARGET verbatim.

A soft link's target is not checked: it may name a path that does not
exist yet.

Examples:
  dittolink ln /experiments/run1 /latest
  dittolink ln -s /experiments/run1 /current`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, path := args[0], args[1]

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				if soft {
					return s.symlink(ctx, target, path)
				}
				count, err := s.hardlink(ctx, target, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s links=%d\n", path, count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&soft, "symbolic", "s", false, "create a soft link")
	return cmd
}

func newMoveCmd(opts *sessionOptions, isCopy bool) *cobra.Command {
	use, short := "mv SRC DST", "Move a link"
	if isCopy {
		use, short = "cp SRC DST", "Copy a link"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + ` from SRC to DST. Only the link is moved or copied, never the
object it names: copying a hard link adds one to the object's link count,
moving it leaves the count unchanged.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				return s.move(ctx, args[0], args[1], isCopy)
			})
		},
	}
}

func newRmCmd(opts *sessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove links",
		Long: `Remove the links at each PATH. When the last hard link to an object is
removed, the object and its sub-objects are deleted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				for _, path := range args {
					resp, err := s.remove(ctx, path)
					if err != nil {
						return err
					}
					if resp.Deleted {
						fmt.Fprintf(cmd.OutOrStdout(), "%s removed, object deleted\n", path)
					}
				}
				return nil
			})
		},
	}
}
