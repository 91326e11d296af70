package cmds

import (
	"github.com/go-go-golems/svclaunch/cmd/svclaunch/cmds/dev"
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(dev.NewCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newUpCmd())
	root.AddCommand(newWatchdogCmd())
	return nil
}
