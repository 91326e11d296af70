package cmds

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/config"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Config  string
	Timeout time.Duration
}

func AddRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Path to the launch plan (defaults to .svclaunch.yaml in the current directory)")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "Shutdown timeout for the event bus and metrics server")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
		cfgPath = config.DefaultPath(cwd)
	}
	cfgPath, err = filepath.Abs(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}

	timeout, err := cmd.Root().PersistentFlags().GetDuration("timeout")
	if err != nil {
		return rootOptions{}, err
	}
	if timeout <= 0 {
		return rootOptions{}, errors.New("timeout must be > 0")
	}
	return rootOptions{Config: cfgPath, Timeout: timeout}, nil
}

func loadPlan(opts rootOptions) (*config.File, error) {
	cfg, err := config.LoadFromFile(opts.Config)
	if err != nil {
		return nil, err
	}
	if len(cfg.Endpoints) == 0 {
		return nil, errors.Errorf("no endpoints configured in %s", opts.Config)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildOptions makes this binary the watchdog unless the plan or the
// environment names one.
func buildOptions(cfg *config.File, cmd *cobra.Command) (config.BuildOptions, error) {
	opts := config.BuildOptions{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	if cfg.Watchdog != "" || os.Getenv(launch.WatchdogEnv) != "" {
		return opts, nil
	}
	self, err := os.Executable()
	if err != nil {
		return config.BuildOptions{}, errors.Wrap(err, "resolve executable")
	}
	opts.WatchdogCommand = []string{self, watchdogCmdName}
	return opts, nil
}
