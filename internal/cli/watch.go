package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/orchestrator"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/rename"
	"github.com/sdejongh/fylr/pkg/storage"
	"github.com/sdejongh/fylr/pkg/watch"
)

// WatchFlags holds watch command flags
type WatchFlags struct {
	Interval    time.Duration
	MinFiles    int
	Apply       bool
	Specificity int
}

var watchFlags WatchFlags

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch DIR...",
		Short: "Organize new files as they arrive",
		Long: `Watch directories for newly created files. Every interval, each directory
with enough new files is analyzed and the plan is restricted to those files.
The plan is saved as the current session, or applied right away with --apply.
Runs until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().DurationVar(&watchFlags.Interval, "interval", watch.DefaultInterval, "how often new files are processed")
	cmd.Flags().IntVar(&watchFlags.MinFiles, "min-files", 1, "wait until a directory has at least this many new files")
	cmd.Flags().BoolVar(&watchFlags.Apply, "apply", false, "move new files immediately instead of saving a plan")
	cmd.Flags().IntVar(&watchFlags.Specificity, "specificity", 0, "category granularity from 1 (broad) to 5 (fine)")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := validateSpecificity(watchFlags.Specificity); err != nil {
		return err
	}
	dirs := make([]string, 0, len(args))
	for _, arg := range args {
		dir, err := validateDirectory(arg)
		if err != nil {
			return err
		}
		dirs = append(dirs, dir)
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	handler := func(ctx context.Context, b watch.Batch) error {
		err := a.organizeBatch(ctx, orch, b)
		if a.cfg.Usage.Persist {
			if saveErr := a.usage.SaveFrom(a.governor); saveErr != nil {
				a.logger.Error(ctx, "failed to save usage", saveErr, nil)
			}
		}
		if err != nil {
			a.notices.Error(fmt.Errorf("%s: %w", b.Dir, err))
		}
		return err
	}

	w, err := watch.New(dirs, handler,
		watch.WithInterval(watchFlags.Interval),
		watch.WithMinFiles(watchFlags.MinFiles),
		watch.WithExclude(a.cfg.Scan.Exclude),
		watch.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	for _, dir := range w.Dirs() {
		fmt.Fprintf(a.stderr, "Watching %s\n", dir)
	}
	return w.Run(ctx)
}

// organizeBatch analyzes b.Dir and handles the plan entries for the new files
func (a *app) organizeBatch(ctx context.Context, orch *orchestrator.Orchestrator, b watch.Batch) error {
	p, err := orch.Analyze(ctx, b.Dir, a.cfg.Mode(), orchestrator.AnalyzeOptions{Specificity: watchFlags.Specificity})
	if err != nil {
		return err
	}

	pending := make(map[string]bool, len(b.Files))
	for _, f := range b.Files {
		pending[f] = true
	}
	p = p.Filter(func(item plan.Item) bool { return pending[item.SrcPath] })
	if p.Len() == 0 {
		a.logger.Info(ctx, "no plan entries for new files", logging.Fields{"dir": b.Dir, "files": len(b.Files)})
		return nil
	}

	if !watchFlags.Apply {
		sess := plan.NewSession(p, orch.Mode())
		if err := a.sessions.Save(sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return a.out.Plan(sess.Current(), sess.Groups())
	}

	backend, err := storage.NewLocal(b.Dir)
	if err != nil {
		return err
	}
	defer backend.Close()

	report := rename.New(backend, rename.WithLogger(a.logger)).ApplyPlan(ctx, p)
	if err := a.out.RenameReport(report); err != nil {
		return err
	}
	return report.Err()
}
