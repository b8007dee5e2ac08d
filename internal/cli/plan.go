package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/models"
	"github.com/sdejongh/fylr/pkg/output"
	"github.com/sdejongh/fylr/pkg/plan"
	"github.com/sdejongh/fylr/pkg/rename"
	"github.com/sdejongh/fylr/pkg/storage"
)

// PlanFlags holds plan subcommand flags
type PlanFlags struct {
	Original bool
	Yes      bool
	DryRun   bool
	Keep     bool
}

var planFlags PlanFlags

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Review, edit and apply the current plan",
		Long: `Work with the plan saved by 'fylr analyze'. Edits change only the
session; files are moved when the plan is applied.`,
	}

	cmd.AddCommand(newPlanShowCommand())
	cmd.AddCommand(newPlanMoveCommand())
	cmd.AddCommand(newPlanMkdirCommand())
	cmd.AddCommand(newPlanRmdirCommand())
	cmd.AddCommand(newPlanResetCommand())
	cmd.AddCommand(newPlanApplyCommand())
	cmd.AddCommand(newPlanDiscardCommand())

	return cmd
}

func newPlanShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			sess, err := a.loadSession()
			if err != nil {
				return err
			}
			if planFlags.Original {
				p := sess.Original()
				return a.out.Plan(p, p.Groups())
			}
			return a.out.Plan(sess.Current(), sess.Groups())
		},
	}
	cmd.Flags().BoolVar(&planFlags.Original, "original", false, "show the plan as analyzed, without edits")
	return cmd
}

// editSession loads the session, applies edit and saves the result
func editSession(cmd *cobra.Command, edit func(a *app, sess *plan.Session) (string, error)) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	sess, err := a.loadSession()
	if err != nil {
		return err
	}

	msg, err := edit(a, sess)
	if err != nil {
		return err
	}
	if err := a.sessions.Save(sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if msg != "" && a.out.Name() != output.FormatJSON {
		fmt.Fprintln(a.stdout, msg)
		return nil
	}
	return a.out.Plan(sess.Current(), sess.Groups())
}

// sourcePath resolves a file argument against the working directory, then the plan root
func sourcePath(sess *plan.Session, arg string) string {
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg)
	}
	current := sess.Current()
	if abs, err := filepath.Abs(arg); err == nil {
		if _, ok := current.Find(abs); ok {
			return abs
		}
	}
	return filepath.Join(sess.Root, filepath.FromSlash(arg))
}

func newPlanMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move FILE DIR",
		Short: "Move a planned file to another directory",
		Long: `Re-target FILE into DIR, relative to the plan root. Use "/" or "." for
the root itself. FILE may be absolute, relative to the working directory, or
relative to the plan root.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSession(cmd, func(a *app, sess *plan.Session) (string, error) {
				item, err := sess.Move(sourcePath(sess, args[0]), args[1])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s -> %s", filepath.Base(item.SrcPath), item.DstPath), nil
			})
		},
	}
}

func newPlanMkdirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir DIR",
		Short: "Add a directory to the plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSession(cmd, func(a *app, sess *plan.Session) (string, error) {
				dir, err := sess.AddDirectory(args[0])
				if err != nil {
					return "", err
				}
				return "Added " + dir, nil
			})
		},
	}
}

func newPlanRmdirCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rmdir DIR",
		Short: "Remove a directory from the plan",
		Long: `Remove DIR and its subdirectories from the plan. Files planned for them
move to the root; this needs --yes when any are present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSession(cmd, func(a *app, sess *plan.Session) (string, error) {
				moved, err := sess.RemoveDirectory(args[0], planFlags.Yes)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Removed %s (%d files moved to the root)", args[0], moved), nil
			})
		},
	}
	cmd.Flags().BoolVarP(&planFlags.Yes, "yes", "y", false, "confirm moving the directory's files to the root")
	return cmd
}

func newPlanResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard edits and restore the analyzed plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSession(cmd, func(a *app, sess *plan.Session) (string, error) {
				sess.Reset()
				return "", nil
			})
		},
	}
}

func newPlanApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Move files as the current plan says",
		Long: `Move every planned file to its destination under the plan root, creating
directories as needed. Existing files are never overwritten; a colliding
name gets a _<n> suffix. The session is discarded after a successful run
unless --keep is given.`,
		Args: cobra.NoArgs,
		RunE: runPlanApply,
	}
	cmd.Flags().BoolVar(&planFlags.DryRun, "dry-run", false, "show what would be moved without moving anything")
	cmd.Flags().BoolVar(&planFlags.Keep, "keep", false, "keep the session after applying")
	return cmd
}

func runPlanApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	sess, err := a.loadSession()
	if err != nil {
		return err
	}

	backend, err := storage.NewLocal(sess.Root)
	if err != nil {
		return fmt.Errorf("plan root: %w", err)
	}
	defer backend.Close()

	current := sess.Current()
	bar := a.progress(current.Len())
	renamer := rename.New(backend,
		rename.WithLogger(a.logger),
		rename.WithDryRun(planFlags.DryRun),
		rename.WithProgress(bar.Update),
	)
	report := renamer.ApplyPlan(ctx, current)
	bar.Finish()

	if err := a.out.RenameReport(report); err != nil {
		return err
	}

	if !planFlags.DryRun && !planFlags.Keep && len(report.Failed) == 0 && report.Status != models.StatusCancelled {
		if err := a.sessions.Delete(); err != nil {
			return fmt.Errorf("failed to discard session: %w", err)
		}
	}
	return reportExit(report)
}

func newPlanDiscardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Delete the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			if err := a.sessions.Delete(); err != nil {
				return err
			}
			if a.out.Name() == output.FormatHuman {
				fmt.Fprintln(a.stdout, "Session discarded")
			}
			return nil
		},
	}
}
