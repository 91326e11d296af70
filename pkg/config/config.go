package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/health"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".svclaunch.yaml"

const (
	HealthExit = "exit"
	HealthHTTP = "http"
)

// File is a launch plan.
type File struct {
	LaunchDelay Duration          `yaml:"launch_delay,omitempty" json:"launch_delay,omitempty"`
	Retries     uint              `yaml:"retries,omitempty" json:"retries,omitempty"`
	WindowStyle string            `yaml:"window_style,omitempty" json:"window_style,omitempty"`
	Watchdog    string            `yaml:"watchdog,omitempty" json:"watchdog,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Endpoints   []Endpoint        `yaml:"endpoints" json:"endpoints"`

	// BaseDir anchors relative paths; LoadFromFile sets it to the file's directory.
	BaseDir string `yaml:"-" json:"base_dir,omitempty"`
}

type Endpoint struct {
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Path    string   `yaml:"path,omitempty" json:"path,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	WorkDir string   `yaml:"workdir,omitempty" json:"workdir,omitempty"`
	WebApp  *WebApp  `yaml:"webapp,omitempty" json:"webapp,omitempty"`
	Health  Health   `yaml:"health,omitempty" json:"health,omitempty"`
}

type WebApp struct {
	Path   string `yaml:"path" json:"path"`
	Port   int    `yaml:"port" json:"port"`
	Server string `yaml:"server,omitempty" json:"server,omitempty"`
}

type Health struct {
	Type         string   `yaml:"type,omitempty" json:"type,omitempty"` // "exit" | "http"
	URL          string   `yaml:"url,omitempty" json:"url,omitempty"`
	MaxWait      Duration `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
	PollInterval Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`
}

// Duration reads Go duration strings such as "1.5s" or "250ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Wrap(err, "decode duration")
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "decode duration")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func DefaultPath(repoRoot string) string {
	return filepath.Join(repoRoot, DefaultConfigFilename)
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(err, "resolve config dir")
	}
	cfg.BaseDir = abs
	return cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

func Parse(b []byte) (*File, error) {
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	return &cfg, nil
}

func (f *File) Validate() error {
	if _, err := proc.ParseWindowStyle(f.WindowStyle); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, ep := range f.Endpoints {
		name := ep.Name
		if name == "" {
			name = endpointName(i)
		}
		if seen[name] {
			return errors.Errorf("duplicate endpoint name %q", name)
		}
		seen[name] = true

		switch {
		case ep.Path == "" && ep.WebApp == nil:
			return errors.Errorf("endpoint %s: path or webapp is required", name)
		case ep.Path != "" && ep.WebApp != nil:
			return errors.Errorf("endpoint %s: path and webapp are mutually exclusive", name)
		case ep.WebApp != nil && ep.WebApp.Path == "":
			return errors.Errorf("endpoint %s: webapp.path is required", name)
		case ep.WebApp != nil && (ep.WebApp.Port <= 0 || ep.WebApp.Port > 65535):
			return errors.Errorf("endpoint %s: invalid webapp.port %d", name, ep.WebApp.Port)
		}

		switch ep.Health.Type {
		case "", HealthExit:
		case HealthHTTP:
			if ep.Health.URL == "" {
				return errors.Errorf("endpoint %s: health.url is required for http health", name)
			}
		default:
			return errors.Errorf("endpoint %s: unknown health type %q", name, ep.Health.Type)
		}
		if ep.Health.MaxWait < 0 || ep.Health.PollInterval < 0 {
			return errors.Errorf("endpoint %s: negative health durations", name)
		}
	}
	return nil
}

type BuildOptions struct {
	// WatchdogCommand overrides the plan's watchdog.
	WatchdogCommand []string
	Stdout          io.Writer
	Stderr          io.Writer
}

// Build validates the plan and returns a launcher configured from it.
func (f *File) Build(opts BuildOptions) (*launch.Launcher, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	style, err := proc.ParseWindowStyle(f.WindowStyle)
	if err != nil {
		return nil, err
	}

	lopts := launch.EndpointLauncherOptions{
		WatchdogCommand: opts.WatchdogCommand,
		Env:             f.Env,
	}
	if len(lopts.WatchdogCommand) == 0 && f.Watchdog != "" {
		lopts.WatchdogCommand = []string{f.resolveExe(f.Watchdog)}
	}
	lopts.Stdout = opts.Stdout
	lopts.Stderr = opts.Stderr

	l := launch.NewLauncher().
		WithLaunchDelay(f.LaunchDelay.Std()).
		WithRetries(f.Retries).
		SetWindowStyle(style).
		WithEndpointLauncherOptions(lopts)

	for i, ep := range f.Endpoints {
		name := ep.Name
		if name == "" {
			name = endpointName(i)
		}
		l.AddNamedEndpoint(name, f.launchFunc(ep), validatorFor(ep.Health))
	}
	return l, nil
}

func (f *File) launchFunc(ep Endpoint) launch.LaunchFunc {
	if ep.WebApp != nil {
		webPath := f.resolvePath(ep.WebApp.Path)
		port := ep.WebApp.Port
		server := ep.WebApp.Server
		return func(l *launch.EndpointLauncher) (*proc.Handle, error) {
			if server != "" {
				return l.LaunchIn(webPath, f.resolveExe(server), launch.WebAppArgs(webPath, port)...)
			}
			return l.LaunchWebApplication(webPath, port)
		}
	}
	exe := f.resolveExe(ep.Path)
	args := append([]string{}, ep.Args...)
	dir := ""
	if ep.WorkDir != "" {
		dir = f.resolvePath(ep.WorkDir)
	}
	return func(l *launch.EndpointLauncher) (*proc.Handle, error) {
		return l.LaunchIn(dir, exe, args...)
	}
}

func validatorFor(h Health) health.Validator {
	maxWait := h.MaxWait.Std()
	if maxWait == 0 {
		maxWait = health.DefaultMaxWait
	}
	if h.Type == HealthHTTP {
		return health.NewHTTPOK(h.URL, health.HTTPOKOptions{
			MaxWait:      maxWait,
			PollInterval: h.PollInterval.Std(),
		})
	}
	return health.NewExitWait(maxWait)
}

func (f *File) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || f.BaseDir == "" {
		return p
	}
	return filepath.Join(f.BaseDir, p)
}

// resolveExe leaves bare executable names for PATH lookup.
func (f *File) resolveExe(p string) string {
	if !strings.ContainsRune(p, os.PathSeparator) {
		return p
	}
	return f.resolvePath(p)
}

func endpointName(i int) string {
	return fmt.Sprintf("endpoint-%d", i)
}
