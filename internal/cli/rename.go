package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/output"
	"github.com/sdejongh/fylr/pkg/rename"
	"github.com/sdejongh/fylr/pkg/storage"
)

// RenameFlags holds rename command flags
type RenameFlags struct {
	Apply  bool
	DryRun bool
	Only   []string
}

var renameFlags RenameFlags

// NewRenameCommand creates the rename command
func NewRenameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename DIR",
		Short: "Generate descriptive names for the files in a directory",
		Long: `Ask the classifier for a new name for every file directly in DIR and show
the proposals. With --apply the files are renamed in place; a name already
taken gets a _<n> suffix, so no file is ever overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: runRename,
	}

	cmd.Flags().BoolVar(&renameFlags.Apply, "apply", false, "rename the files after generating names")
	cmd.Flags().BoolVar(&renameFlags.DryRun, "dry-run", false, "with --apply, report the renames without performing them")
	cmd.Flags().StringSliceVar(&renameFlags.Only, "only", nil, "limit to these file names")

	return cmd
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir, err := validateDirectory(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	backend, err := storage.NewLocal(dir)
	if err != nil {
		return err
	}
	defer backend.Close()

	entries, err := a.listFiles(ctx, backend, false)
	if err != nil {
		return err
	}
	if len(renameFlags.Only) > 0 {
		wanted := make(map[string]bool, len(renameFlags.Only))
		for _, name := range renameFlags.Only {
			wanted[name] = true
		}
		kept := entries[:0]
		for _, e := range entries {
			if wanted[e.Name] {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if len(entries) == 0 {
		if a.out.Name() == output.FormatHuman {
			fmt.Fprintf(a.stdout, "No files to rename in %s\n", dir)
		}
		return nil
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	names, err := orch.GenerateNames(ctx, entries, a.cfg.Mode())
	if err != nil {
		return err
	}

	if !renameFlags.Apply {
		return a.out.Names(names)
	}
	if a.out.Name() == output.FormatHuman {
		if err := a.out.Names(names); err != nil {
			return err
		}
	}

	reqs := rename.RequestsFromMapping(entries, names)
	bar := a.progress(len(reqs))
	renamer := rename.New(backend,
		rename.WithLogger(a.logger),
		rename.WithDryRun(renameFlags.DryRun),
		rename.WithProgress(bar.Update),
	)
	report := renamer.Apply(ctx, reqs)
	bar.Finish()

	if err := a.out.RenameReport(report); err != nil {
		return err
	}
	return reportExit(report)
}
