package cmds

import (
	"os"

	"github.com/go-go-golems/svclaunch/pkg/watchdog"
	"github.com/spf13/cobra"
)

const watchdogCmdName = "__watchdog"

func newWatchdogCmd() *cobra.Command {
	return &cobra.Command{
		Use:                watchdogCmdName + " [parentPID] [childPID]",
		Short:              "Internal: terminate childPID once parentPID exits",
		Hidden:             true,
		DisableFlagParsing: true,
		Run: func(cmd *cobra.Command, args []string) {
			watchdog.DisableLogging()
			os.Exit(watchdog.Main(args, os.Stdout, os.Stderr))
		},
	}
}
