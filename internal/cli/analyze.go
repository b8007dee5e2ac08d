package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/logging"
	"github.com/sdejongh/fylr/pkg/orchestrator"
	"github.com/sdejongh/fylr/pkg/plan"
)

// AnalyzeFlags holds analyze command flags
type AnalyzeFlags struct {
	Specificity int
	NoSave      bool
}

var analyzeFlags AnalyzeFlags

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze DIR",
		Short: "Propose a new folder structure for a directory",
		Long: `Ask the classifier how the files of DIR should be organized.
The proposed plan is saved as the current session; review it with
'fylr plan show', edit it with the other plan commands, and apply it
with 'fylr plan apply'. Nothing is moved by this command.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().IntVar(&analyzeFlags.Specificity, "specificity", 0, "category granularity from 1 (broad) to 5 (fine); 0 lets the classifier decide")
	cmd.Flags().BoolVar(&analyzeFlags.NoSave, "no-save", false, "print the plan without replacing the current session")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := validateSpecificity(analyzeFlags.Specificity); err != nil {
		return err
	}
	dir, err := validateDirectory(args[0])
	if err != nil {
		return err
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

	p, err := orch.Analyze(ctx, dir, a.cfg.Mode(), orchestrator.AnalyzeOptions{Specificity: analyzeFlags.Specificity})
	if err != nil {
		return err
	}

	sess := plan.NewSession(p, orch.Mode())
	if !analyzeFlags.NoSave {
		if err := a.sessions.Save(sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		a.logger.Info(ctx, "session saved", logging.Fields{"session": sess.ID, "path": a.sessions.Path()})
	}

	return a.out.Plan(sess.Current(), sess.Groups())
}
