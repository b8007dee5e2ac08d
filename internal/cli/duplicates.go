package cli

import (
	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/dedupe"
	"github.com/sdejongh/fylr/pkg/output"
	"github.com/sdejongh/fylr/pkg/ratelimit"
	"github.com/sdejongh/fylr/pkg/storage"
)

// DuplicatesFlags holds duplicates command flags
type DuplicatesFlags struct {
	Recursive bool
	Remove    bool
	DryRun    bool
	Parallel  int
	ReadLimit string
}

var duplicatesFlags DuplicatesFlags

// NewDuplicatesCommand creates the duplicates command
func NewDuplicatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates DIR",
		Short: "Find files with identical content",
		Long: `Group the files of DIR by content (size, then SHA-256). With --remove the
first file of each group, in name order, is kept and the others are deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: runDuplicates,
	}

	cmd.Flags().BoolVarP(&duplicatesFlags.Recursive, "recursive", "r", false, "include subdirectories")
	cmd.Flags().BoolVar(&duplicatesFlags.Remove, "remove", false, "delete duplicates, keeping one file per group")
	cmd.Flags().BoolVar(&duplicatesFlags.DryRun, "dry-run", false, "with --remove, report deletions without performing them")
	cmd.Flags().StringVar(&duplicatesFlags.ReadLimit, "read-limit", "", "cap hashing throughput (e.g., \"20M\"); overrides scan.read_limit")
	cmd.Flags().IntVarP(&duplicatesFlags.Parallel, "parallel", "p", 0, "number of files hashed in parallel (default: CPU count)")

	return cmd
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir, err := validateDirectory(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd, duplicatesFlags.Remove)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	backend, err := storage.NewLocal(dir)
	if err != nil {
		return err
	}
	defer backend.Close()

	readLimit := a.cfg.ReadLimit()
	if duplicatesFlags.ReadLimit != "" {
		if readLimit, err = ratelimit.ParseRate(duplicatesFlags.ReadLimit); err != nil {
			return err
		}
	}

	finder, err := dedupe.NewFinder(0,
		dedupe.WithWorkers(duplicatesFlags.Parallel),
		dedupe.WithReadLimit(ratelimit.NewLimiter(readLimit)),
		dedupe.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	groups, err := finder.Find(ctx, backend, storage.ListOptions{
		Recursive: duplicatesFlags.Recursive,
		Exclude:   a.cfg.Scan.Exclude,
	})
	if err != nil {
		return err
	}

	if !duplicatesFlags.Remove {
		return a.out.Duplicates(groups)
	}
	if a.out.Name() == output.FormatHuman {
		if err := a.out.Duplicates(groups); err != nil {
			return err
		}
		if len(groups) == 0 {
			return nil
		}
	}

	report := dedupe.Remove(ctx, backend, groups, duplicatesFlags.DryRun, a.logger)
	if err := a.out.RenameReport(report); err != nil {
		return err
	}
	return reportExit(report)
}
