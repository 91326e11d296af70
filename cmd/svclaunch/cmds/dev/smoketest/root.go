package smoketest

import (
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoketest",
		Short: "Run svclaunch smoke/integration tests (dev-only)",
	}

	cmd.AddCommand(
		newE2ECmd(),
		newFailuresCmd(),
	)
	return cmd
}
