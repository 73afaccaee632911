package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittolink/internal/cli/output"
	"github.com/marmos91/dittolink/pkg/link"
	"github.com/spf13/cobra"
)

// ErrNotExist is returned by exists for a missing link so that the exit
// status reflects the answer.
var ErrNotExist = errors.New("link does not exist")

func newExistsCmd(opts *sessionOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "exists PATH",
		Short: "Check whether a link exists",
		Long: `Print whether a link exists at PATH and exit non-zero if it does not.
A hard link whose object cannot be opened does not exist. Soft links are
not followed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				ok, err := s.exists(ctx, args[0])
				if err != nil {
					return err
				}
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), ok)
				}
				if !ok {
					return ErrNotExist
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only set the exit status")
	return cmd
}

func newInfoCmd(opts *sessionOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info PATH",
		Short: "Describe a link",
		Long: `Print the kind of the link at PATH together with the object it names
and that object's link count (hard links) or the size of its value (soft
links).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				info, err := s.info(ctx, args[0])
				if err != nil {
					return err
				}

				view := infoView{Path: args[0], Kind: info.Kind.String()}
				switch info.Kind {
				case link.KindHard:
					count, err := s.linkCount(ctx, info.Address)
					if err != nil {
						return err
					}
					view.Object = info.Address.String()
					view.LinkCount = count
				case link.KindSoft:
					view.ValueSize = info.ValueSize
				}
				return output.Print(cmd.OutOrStdout(), f, view)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// infoView is the printable form of a link's info.
type infoView struct {
	Path      string `json:"path" yaml:"path"`
	Kind      string `json:"kind" yaml:"kind"`
	Object    string `json:"object,omitempty" yaml:"object,omitempty"`
	LinkCount uint64 `json:"link_count,omitempty" yaml:"link_count,omitempty"`
	ValueSize uint64 `json:"value_size,omitempty" yaml:"value_size,omitempty"`
}

func (v infoView) Headers() []string { return []string{"PATH", "KIND", "TARGET", "LINKS"} }

func (v infoView) Rows() [][]string {
	switch v.Kind {
	case link.KindHard.String():
		return [][]string{{v.Path, v.Kind, v.Object, fmt.Sprint(v.LinkCount)}}
	case link.KindSoft.String():
		return [][]string{{v.Path, v.Kind, fmt.Sprintf("%d bytes", v.ValueSize), "-"}}
	default:
		return [][]string{{v.Path, v.Kind, "-", "-"}}
	}
}

func newReadlinkCmd(opts *sessionOptions) *cobra.Command {
	var length uint64

	cmd := &cobra.Command{
		Use:   "readlink PATH",
		Short: "Print a soft link's value",
		Long: `Print the value of the soft link at PATH. With --length only that many
bytes are read; the value may then be truncated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				n := length
				if n == 0 {
					n = s.cfg.Links.MaxValueLength
				}
				value, size, err := s.readlink(ctx, args[0], n)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(value))
				if uint64(len(value)) < size {
					cmd.PrintErrf("value truncated: %d of %d bytes\n", len(value), size)
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&length, "length", 0, "bytes to read (default: links.max_value_length)")
	return cmd
}

func newLsCmd(opts *sessionOptions) *cobra.Command {
	var recursive bool
	var format string

	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List links",
		Long: `List the links of the group at PATH (default: the root group). With -r
the groups below are listed too, in pre-order. A group reachable through
a cycle of hard links is listed but not entered again.

If listing fails part way, the links gathered so far are printed before
the error is reported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				records, err := s.list(ctx, path, recursive)
				if perr := output.Print(cmd.OutOrStdout(), f, newListing(records)); perr != nil && err == nil {
					err = perr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "list recursively")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// listEntry is the printable form of one iteration record.
type listEntry struct {
	Path      string `json:"path" yaml:"path"`
	Kind      string `json:"kind" yaml:"kind"`
	Object    string `json:"object,omitempty" yaml:"object,omitempty"`
	ValueSize uint64 `json:"value_size,omitempty" yaml:"value_size,omitempty"`
}

// listing is the printable form of an iteration.
type listing []listEntry

func newListing(records []link.Record) listing {
	out := make(listing, 0, len(records))
	for _, r := range records {
		e := listEntry{Path: r.Path, Kind: r.Info.Kind.String()}
		switch r.Info.Kind {
		case link.KindHard:
			e.Object = r.Info.Address.String()
		case link.KindSoft:
			e.ValueSize = r.Info.ValueSize
		}
		out = append(out, e)
	}
	return out
}

func (l listing) Headers() []string { return []string{"KIND", "TARGET", "PATH"} }

func (l listing) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		target := e.Object
		if e.Kind == link.KindSoft.String() {
			target = fmt.Sprintf("%d bytes", e.ValueSize)
		}
		rows = append(rows, []string{e.Kind, target, e.Path})
	}
	return rows
}
