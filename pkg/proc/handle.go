package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// Process is the view of a running (or exited) process that health validators need.
type Process interface {
	PID() int
	CommandLine() string
	StartTime() time.Time
	Exited() bool
	ExitCode() int
	WaitTimeout(d time.Duration) bool
}

type SpawnOptions struct {
	Path        string
	Args        []string
	Dir         string
	WindowStyle WindowStyle
	Env         map[string]string

	// Stdout and Stderr receive the output of visible processes.
	// Hidden processes always write to the null device.
	Stdout io.Writer
	Stderr io.Writer
}

// Handle owns one spawned child process. The child runs in its own process
// group so that terminating it also terminates anything it forked.
type Handle struct {
	cmd   *exec.Cmd
	path  string
	args  []string
	dir   string
	style WindowStyle

	pid       int
	startedAt time.Time

	done     chan struct{}
	mu       sync.Mutex
	state    *os.ProcessState
	waitErr  error
	exitedAt time.Time
}

var _ Process = (*Handle)(nil)

func Spawn(opts SpawnOptions) (*Handle, error) {
	if opts.Path == "" {
		return nil, errors.New("missing executable path")
	}

	// #nosec G204 -- executable and arguments come from the caller's launch closure.
	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = mergeEnv(os.Environ(), opts.Env)
	if opts.WindowStyle.Visible() {
		cmd.Stdout = opts.Stdout
		cmd.Stderr = opts.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", opts.Path)
	}

	h := &Handle{
		cmd:       cmd,
		path:      opts.Path,
		args:      append([]string{}, opts.Args...),
		dir:       opts.Dir,
		style:     opts.WindowStyle,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.state = h.cmd.ProcessState
	h.waitErr = err
	h.exitedAt = time.Now()
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) PID() int                 { return h.pid }
func (h *Handle) Path() string             { return h.path }
func (h *Handle) Args() []string           { return append([]string{}, h.args...) }
func (h *Handle) Dir() string              { return h.dir }
func (h *Handle) WindowStyle() WindowStyle { return h.style }
func (h *Handle) StartTime() time.Time     { return h.startedAt }

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) CommandLine() string {
	return fmt.Sprintf("%s %s", h.path, strings.Join(h.args, " "))
}

func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode is -1 while the process is running. A process terminated by a
// signal reports 128+signal, as a shell does.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == nil {
		return -1
	}
	if ws, ok := h.state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return h.state.ExitCode()
}

// Signal is the signal that terminated the process, or 0 if it exited
// normally or is still running.
func (h *Handle) Signal() syscall.Signal {
	if !h.Exited() {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == nil {
		return 0
	}
	if ws, ok := h.state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ws.Signal()
	}
	return 0
}

func (h *Handle) ExitTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitedAt
}

// WaitTimeout reports whether the process exited within d. A zero or
// negative d only checks the current state.
func (h *Handle) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return h.Exited()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

// RequestClose asks the process to shut down gracefully. It returns false
// when the request cannot be delivered; hidden processes never accept it.
func (h *Handle) RequestClose() bool {
	if h.Exited() || !h.style.Visible() {
		return false
	}
	return RequestCloseGroup(h.pid) == nil
}

func (h *Handle) Kill() error {
	if h.Exited() {
		return nil
	}
	return KillGroup(h.pid)
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := append([]string{}, base...)
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}
