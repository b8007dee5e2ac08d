package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the fylr command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fylr",
		Short: "Organize and rename files with a classifier model",
		Long: `fylr asks a classifier model, online or local, how the files of a
directory should be organized or renamed. Proposals are reviewed and edited
as a plan before anything is moved, and online usage is kept within
configured token and call limits.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewRenameCommand())
	rootCmd.AddCommand(NewDuplicatesCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewUsageCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
