package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/fylr/pkg/output"
)

// NewUsageCommand creates the usage command
func NewUsageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show or reset online usage counters",
		Long: `Online requests are counted in tokens and calls against the limits in
the configuration. Once a limit is reached, requests either fail or run
offline, depending on usage.on_limit.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show usage against the limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			return a.out.Usage(a.governor.Mode(), a.governor.CheckLimits())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset the usage counters to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			a.governor.Reset()
			if err := a.usage.SaveFrom(a.governor); err != nil {
				return fmt.Errorf("failed to save usage: %w", err)
			}
			if a.out.Name() == output.FormatHuman {
				fmt.Fprintln(a.stdout, "Usage counters reset")
				return nil
			}
			return a.out.Usage(a.governor.Mode(), a.governor.CheckLimits())
		},
	})

	return cmd
}
