package smoketest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/config"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newE2ECmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "e2e",
		Short: "Smoke test: build test apps, launch a plan, validate, terminate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			workDir, err := os.MkdirTemp("", "svclaunch-smoketest-e2e-*")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(workDir) }()

			bins, err := buildTestApps(ctx, filepath.Join(workDir, "bin"))
			if err != nil {
				return err
			}
			port, err := findFreeTCPPort()
			if err != nil {
				return err
			}

			healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
			cfgPath, err := writePlan(workDir, fmt.Sprintf(`launch_delay: 100ms
window_style: normal
watchdog: %s
endpoints:
  - name: http
    path: %s
    args: ["--port", "%d", "--ready-after", "500ms"]
    health:
      type: http
      url: %s
      max_wait: 5s
  - name: sleeper
    path: %s
    args: ["--for", "1m"]
    health:
      max_wait: 500ms
  - name: stubborn
    path: %s
    args: ["--for", "1m", "--ignore-term"]
    health:
      max_wait: 500ms
`, bins.Watchdog, bins.HTTPEcho, port, healthURL, bins.Sleeper, bins.Sleeper))
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
			if err != nil {
				return err
			}
			defer launch.TerminateEndpoints(endpoints)

			if len(endpoints) != 3 {
				return errors.Errorf("expected 3 endpoints, got %d", len(endpoints))
			}
			if err := launch.ValidateEndpoints(endpoints); err != nil {
				return err
			}
			if err := getOK(healthURL); err != nil {
				return err
			}
			for _, ep := range endpoints {
				if !proc.ProcessAlive(ep.Process().PID()) {
					return errors.Errorf("endpoint %s is not alive", ep.Name())
				}
			}

			launch.TerminateEndpoints(endpoints)
			for _, ep := range endpoints {
				if !ep.Process().Exited() {
					return errors.Errorf("endpoint %s still running after terminate", ep.Name())
				}
			}

			out := map[string]any{"ok": true, "endpoints": len(endpoints)}
			b, _ := json.MarshalIndent(out, "", "  ")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			log.Info().Msg("smoketest e2e ok")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall timeout for the smoketest")
	return cmd
}
