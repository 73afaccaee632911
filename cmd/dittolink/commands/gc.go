package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittolink/internal/cli/output"
	"github.com/spf13/cobra"
)

func newGCCmd(opts *sessionOptions) *cobra.Command {
	var dryRun bool
	var format string

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete objects no hard link reaches",
		Long: `Collect orphaned objects: objects that no chain of hard links from the
root group reaches, together with their metadata and attribute objects.
Orphans are left behind when a command is interrupted between creating
an object and linking it.

With --dry-run the orphans are listed but kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				c, err := s.newCollector(dryRun)
				if err != nil {
					return err
				}
				stats, err := c.RunNow(ctx)
				if err != nil {
					return fmt.Errorf("gc: %w", err)
				}
				return output.Print(cmd.OutOrStdout(), f, gcView{
					Referenced: stats.ReferencedCount,
					Existing:   stats.ExistingCount,
					Orphaned:   stats.OrphanedCount,
					Deleted:    stats.DeletedCount,
					Failed:     stats.FailedCount,
					DryRun:     dryRun || s.cfg.GC.DryRun,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// gcView is the printable result of one collection.
type gcView struct {
	Referenced uint64 `json:"referenced" yaml:"referenced"`
	Existing   uint64 `json:"existing" yaml:"existing"`
	Orphaned   uint64 `json:"orphaned" yaml:"orphaned"`
	Deleted    uint64 `json:"deleted" yaml:"deleted"`
	Failed     uint64 `json:"failed" yaml:"failed"`
	DryRun     bool   `json:"dry_run" yaml:"dry_run"`
}

func (v gcView) Headers() []string {
	return []string{"REFERENCED", "EXISTING", "ORPHANED", "DELETED", "FAILED", "DRY RUN"}
}

func (v gcView) Rows() [][]string {
	return [][]string{{
		fmt.Sprint(v.Referenced),
		fmt.Sprint(v.Existing),
		fmt.Sprint(v.Orphaned),
		fmt.Sprint(v.Deleted),
		fmt.Sprint(v.Failed),
		fmt.Sprint(v.DryRun),
	}}
}
