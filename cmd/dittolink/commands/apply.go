package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/dittolink/internal/logger"
	"github.com/marmos91/dittolink/pkg/engine"
	"github.com/marmos91/dittolink/pkg/store/object"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Batch is a set of link operations with ordering constraints.
type Batch struct {
	Tasks []BatchTask `yaml:"tasks"`
}

// BatchTask is one operation of a batch.
type BatchTask struct {
	// ID names the task for After lists (default: "<op> <path>").
	ID string `yaml:"id"`

	// Op is one of mkgroup, ln, symlink, mv, cp, rm.
	Op string `yaml:"op"`

	// Path is the link the operation creates, removes or moves from.
	Path string `yaml:"path"`

	// Target is the hard link target (ln), the soft link value (symlink)
	// or the destination (mv, cp).
	Target string `yaml:"target"`

	// Type is the object type created by mkgroup (default: group).
	Type string `yaml:"type"`

	// After lists tasks that must finish first.
	After []string `yaml:"after"`
}

// LoadBatch decodes a batch and fills in default task ids.
func LoadBatch(r io.Reader) (*Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	for i := range b.Tasks {
		t := &b.Tasks[i]
		if t.ID == "" {
			t.ID = t.Op + " " + t.Path
		}
	}
	return &b, nil
}

// run returns the engine function performing t on s.
func (t BatchTask) run(s *session) (engine.Func, error) {
	switch t.Op {
	case "mkgroup":
		name := t.Type
		if name == "" {
			name = "group"
		}
		typ, err := object.ParseObjectType(name)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			_, err := s.mkobj(ctx, t.Path, typ)
			return err
		}, nil
	case "ln":
		return func(ctx context.Context) error {
			_, err := s.hardlink(ctx, t.Target, t.Path)
			return err
		}, nil
	case "symlink":
		return func(ctx context.Context) error {
			return s.symlink(ctx, t.Target, t.Path)
		}, nil
	case "mv", "cp":
		isCopy := t.Op == "cp"
		return func(ctx context.Context) error {
			return s.move(ctx, t.Path, t.Target, isCopy)
		}, nil
	case "rm":
		return func(ctx context.Context) error {
			_, err := s.remove(ctx, t.Path)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", t.Op)
	}
}

// applyBatch submits every task of b to an engine and waits for them.
// Tasks appear in dependency order: a task may only name earlier tasks in
// After.
func applyBatch(ctx context.Context, s *session, b *Batch, out io.Writer) error {
	e := engine.New(ctx, s.cfg.Engine.Workers)

	var submitErr error
	for _, t := range b.Tasks {
		fn, err := t.run(s)
		if err == nil {
			err = e.Submit(t.ID, fn, t.After...)
		}
		if err != nil {
			submitErr = fmt.Errorf("task %s: %w", t.ID, err)
			break
		}
	}

	// Tasks already submitted still run to completion
	waitErr := e.Wait()

	for _, t := range b.Tasks {
		done, err := e.Result(t.ID)
		switch {
		case !done:
			fmt.Fprintf(out, "not run  %s\n", t.ID)
		case errors.Is(err, engine.ErrDependencyFailed):
			fmt.Fprintf(out, "skipped  %s\n", t.ID)
		case err != nil:
			fmt.Fprintf(out, "failed   %s: %v\n", t.ID, err)
		default:
			fmt.Fprintf(out, "ok       %s\n", t.ID)
		}
	}

	if submitErr != nil {
		return submitErr
	}
	return waitErr
}

func newApplyCmd(opts *sessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply FILE",
		Short: "Run a batch of link operations",
		Long: `Run the link operations listed in a YAML batch file ("-" reads stdin).
Tasks run concurrently (engine.workers) unless ordered by "after".
A task whose dependency failed is skipped.

Example batch:

  tasks:
    - id: exp
      op: mkgroup
      path: /experiments
    - id: run1
      op: mkgroup
      type: dataset
      path: /experiments/run1
      after: [exp]
    - op: symlink
      path: /current
      target: /experiments/run1
    - op: ln
      path: /latest
      target: /experiments/run1
      after: [run1]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBatch(cmd, args[0])
			if err != nil {
				return err
			}

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				logger.Info("APPLY: %d task(s) from %s workers=%d", len(b.Tasks), args[0], s.cfg.Engine.Workers)
				return applyBatch(ctx, s, b, cmd.OutOrStdout())
			})
		},
	}
}

func readBatch(cmd *cobra.Command, path string) (*Batch, error) {
	if path == "-" {
		return LoadBatch(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadBatch(f)
}
