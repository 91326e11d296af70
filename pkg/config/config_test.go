package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/health"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/go-go-golems/svclaunch/pkg/watchdog"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == "__watchdog" {
		watchdog.DisableLogging()
		os.Exit(watchdog.Main(os.Args[2:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

const samplePlan = `
launch_delay: 250ms
retries: 2
window_style: hidden
watchdog: ./bin/svc-watchdog
env:
  APP_ENV: test
endpoints:
  - name: api
    path: ./bin/api
    args: ["--port", "8081"]
    workdir: data
    health:
      type: http
      url: http://127.0.0.1:8081/health
      max_wait: 5s
      poll_interval: 100ms
  - path: sleep
    args: ["30"]
  - name: site
    webapp:
      path: site
      port: 9000
`

func writePlan(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := DefaultPath(dir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writePlan(t, samplePlan)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	require.Equal(t, filepath.Dir(path), cfg.BaseDir)
	require.Equal(t, 250*time.Millisecond, cfg.LaunchDelay.Std())
	require.Equal(t, uint(2), cfg.Retries)
	require.Equal(t, "hidden", cfg.WindowStyle)
	require.Equal(t, map[string]string{"APP_ENV": "test"}, cfg.Env)
	require.Len(t, cfg.Endpoints, 3)

	api := cfg.Endpoints[0]
	require.Equal(t, []string{"--port", "8081"}, api.Args)
	require.Equal(t, HealthHTTP, api.Health.Type)
	require.Equal(t, 5*time.Second, api.Health.MaxWait.Std())
	require.Equal(t, 100*time.Millisecond, api.Health.PollInterval.Std())
	require.Equal(t, 9000, cfg.Endpoints[2].WebApp.Port)
	require.NoError(t, cfg.Validate())

	require.Equal(t, filepath.Join(cfg.BaseDir, "bin/api"), cfg.resolveExe(api.Path))
	require.Equal(t, "sleep", cfg.resolveExe("sleep"))
	require.Equal(t, filepath.Join(cfg.BaseDir, "data"), cfg.resolvePath("data"))
	require.Equal(t, "/abs/dir", cfg.resolvePath("/abs/dir"))
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Endpoints)
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte("launch_delay: soon\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "soon")
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"no path":       "endpoints:\n  - name: a\n",
		"both":          "endpoints:\n  - path: x\n    webapp: {path: s, port: 1}\n",
		"bad port":      "endpoints:\n  - webapp: {path: s, port: 0}\n",
		"webapp path":   "endpoints:\n  - webapp: {port: 80}\n",
		"duplicate":     "endpoints:\n  - {name: a, path: x}\n  - {name: a, path: y}\n",
		"unknown type":  "endpoints:\n  - path: x\n    health: {type: tcp}\n",
		"http url":      "endpoints:\n  - path: x\n    health: {type: http}\n",
		"window style":  "window_style: fullscreen\nendpoints:\n  - path: x\n",
		"default names": "endpoints:\n  - path: x\n  - {name: endpoint-0, path: y}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte(body))
			require.NoError(t, err)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestBuild_LaunchesPlan(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	cfg, err := Parse([]byte(`
window_style: normal
endpoints:
  - name: one
    path: sleep
    args: ["5"]
    health: {max_wait: 200ms}
  - path: sleep
    args: ["5"]
    health: {max_wait: 200ms}
`))
	require.NoError(t, err)

	l, err := cfg.Build(BuildOptions{WatchdogCommand: []string{self, "__watchdog"}})
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	endpoints, err := l.LaunchAll()
	require.NoError(t, err)
	defer launch.TerminateEndpoints(endpoints)

	require.Equal(t, "one", endpoints[0].Name())
	require.Equal(t, "endpoint-1", endpoints[1].Name())
	require.Equal(t, proc.WindowNormal, endpoints[0].Process().WindowStyle())
	require.Equal(t, []string{"5"}, endpoints[1].Process().Args())
}

func TestBuild_RejectsInvalidPlan(t *testing.T) {
	cfg := &File{Endpoints: []Endpoint{{Name: "a"}}}
	_, err := cfg.Build(BuildOptions{})
	require.Error(t, err)
}

func TestValidatorFor(t *testing.T) {
	exit, ok := validatorFor(Health{}).(*health.ExitWait)
	require.True(t, ok)
	require.Equal(t, health.DefaultMaxWait, exit.MaxWait)

	_, ok = validatorFor(Health{Type: HealthHTTP, URL: "http://127.0.0.1:1/"}).(*health.HTTPOK)
	require.True(t, ok)
}
