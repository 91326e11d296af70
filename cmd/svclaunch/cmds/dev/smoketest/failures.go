package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/config"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newFailuresCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Smoke test: crashing endpoints are retried, reported and torn down with the rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			workDir, err := os.MkdirTemp("", "svclaunch-smoketest-failures-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(workDir) }()

			bins, err := buildTestApps(ctx, filepath.Join(workDir, "bin"))
			if err != nil {
				return err
			}

			pidFile := filepath.Join(workDir, "sleeper.pid")
			cfgPath, err := writePlan(workDir, fmt.Sprintf(`retries: 2
watchdog: %s
endpoints:
  - name: sleeper
    path: %s
    args: ["--for", "1m", "--pid-file", "%s"]
    health:
      max_wait: 300ms
  - name: crasher
    path: %s
    args: ["--after", "100ms", "--code", "7"]
    health:
      max_wait: 1s
`, bins.Watchdog, bins.Sleeper, pidFile, bins.CrashAfter))
			if err != nil {
				return err
			}

			cfg, err := config.LoadFromFile(cfgPath)
			if err != nil {
				return err
			}
			launcher, err := cfg.Build(config.BuildOptions{})
			if err != nil {
				return err
			}
			endpoints, err := launcher.LaunchAll()
			if err == nil {
				launch.TerminateEndpoints(endpoints)
				return errors.New("expected launch to fail")
			}

			var agg *launch.AggregateError
			if !errors.As(err, &agg) || len(agg.Errors) != 1 || agg.Errors[0].Name != "crasher" {
				return errors.Wrap(err, "unexpected failure shape")
			}
			if !strings.Contains(agg.First().Error(), "stopped unexpectedly with error code: 7") {
				return errors.Errorf("unexpected failure message: %s", agg.First())
			}

			b, err := os.ReadFile(pidFile)
			if err != nil {
				return errors.Wrap(err, "read sleeper pid")
			}
			var pid int
			_, _ = fmt.Sscanf(string(b), "%d", &pid)
			if pid <= 0 || proc.ProcessAlive(pid) {
				return errors.Errorf("healthy endpoint (pid %d) should have been torn down", pid)
			}

			out := map[string]any{"ok": true, "error": err.Error()}
			bb, _ := json.MarshalIndent(out, "", "  ")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(bb))
			log.Info().Msg("smoketest failures ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall timeout for the smoketest")
	return cmd
}
