package launch

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	WatchdogEnv     = "SVCLAUNCH_WATCHDOG"
	WatchdogExeName = "svc-watchdog"
)

type EndpointLauncherOptions struct {
	// WatchdogCommand is the executable (plus leading arguments) that is
	// started with "<parentPID> <childPID>" for every launched process.
	// When empty it is resolved from $SVCLAUNCH_WATCHDOG, then svc-watchdog
	// next to the running executable, then svc-watchdog on PATH.
	WatchdogCommand []string

	// WebServerPath overrides the IIS Express location used by LaunchWebApplication.
	WebServerPath string

	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// EndpointLauncher spawns endpoint processes and binds a watchdog to each.
type EndpointLauncher struct {
	style     proc.WindowStyle
	opts      EndpointLauncherOptions
	parentPID int
}

func NewEndpointLauncher(style proc.WindowStyle, opts EndpointLauncherOptions) *EndpointLauncher {
	return &EndpointLauncher{style: style, opts: opts, parentPID: os.Getpid()}
}

func (l *EndpointLauncher) WindowStyle() proc.WindowStyle { return l.style }

// Launch starts exePath with args in the executable's own directory.
func (l *EndpointLauncher) Launch(exePath string, args ...string) (*proc.Handle, error) {
	return l.LaunchIn("", exePath, args...)
}

// LaunchIn starts exePath with args in workingDir. An empty workingDir
// defaults to the directory of the executable.
func (l *EndpointLauncher) LaunchIn(workingDir, exePath string, args ...string) (*proc.Handle, error) {
	exe, err := resolveExecutable(exePath)
	if err != nil {
		return nil, err
	}
	if workingDir == "" {
		workingDir = filepath.Dir(exe)
	}
	dir, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve working directory")
	}

	watchdog, err := l.watchdogCommand()
	if err != nil {
		return nil, err
	}

	child, err := proc.Spawn(proc.SpawnOptions{
		Path:        exe,
		Args:        args,
		Dir:         dir,
		WindowStyle: l.style,
		Env:         l.opts.Env,
		Stdout:      l.opts.Stdout,
		Stderr:      l.opts.Stderr,
	})
	if err != nil {
		return nil, err
	}

	wdArgs := append(append([]string{}, watchdog[1:]...), strconv.Itoa(l.parentPID), strconv.Itoa(child.PID()))
	wd, err := proc.Spawn(proc.SpawnOptions{
		Path:        watchdog[0],
		Args:        wdArgs,
		WindowStyle: proc.WindowHidden,
	})
	if err != nil {
		_ = child.Kill()
		child.WaitTimeout(killWait)
		return nil, errors.Wrap(err, "start watchdog")
	}

	log.Info().Str("path", exe).Int("pid", child.PID()).Int("watchdog_pid", wd.PID()).Msg("process started")
	return child, nil
}

// LaunchWebApplication hosts the web application at webAppPath under IIS
// Express on the given port.
func (l *EndpointLauncher) LaunchWebApplication(webAppPath string, port int) (*proc.Handle, error) {
	fullPath, err := filepath.Abs(webAppPath)
	if err != nil {
		return nil, errors.Wrap(err, "resolve web application path")
	}
	server := l.opts.WebServerPath
	if server == "" {
		server = iisExpressPath()
	}
	return l.LaunchIn(fullPath, server, WebAppArgs(fullPath, port)...)
}

// WebAppArgs is the IIS Express argument list for hosting fullPath on port.
func WebAppArgs(fullPath string, port int) []string {
	return []string{
		"/path:" + fullPath,
		"/port:" + strconv.Itoa(port),
		"/systray:false",
	}
}

func iisExpressPath() string {
	programFiles := ""
	for _, k := range []string{"ProgramFiles", "programfiles", "ProgramFiles(x86)", "programfiles(x86)"} {
		if v := os.Getenv(k); v != "" {
			programFiles = v
			break
		}
	}
	return filepath.Join(programFiles, "IIS Express", "iisexpress.exe")
}

func resolveExecutable(exePath string) (string, error) {
	if exePath == "" {
		return "", errors.New("missing executable path")
	}
	if !strings.ContainsRune(exePath, os.PathSeparator) {
		if found, err := exec.LookPath(exePath); err == nil {
			exePath = found
		}
	}
	abs, err := filepath.Abs(exePath)
	if err != nil {
		return "", errors.Wrap(err, "resolve executable path")
	}
	return abs, nil
}

func (l *EndpointLauncher) watchdogCommand() ([]string, error) {
	if len(l.opts.WatchdogCommand) > 0 {
		return l.opts.WatchdogCommand, nil
	}
	if v := os.Getenv(WatchdogEnv); v != "" {
		return []string{v}, nil
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), WatchdogExeName)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return []string{sibling}, nil
		}
	}
	if found, err := exec.LookPath(WatchdogExeName); err == nil {
		return []string{found}, nil
	}
	return nil, errors.Errorf("watchdog executable %s not found (set %s)", WatchdogExeName, WatchdogEnv)
}
