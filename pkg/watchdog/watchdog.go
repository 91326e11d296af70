// Package watchdog ties the lifetime of a child process to the lifetime of
// its launcher. It runs in its own OS process so that a launcher that crashes
// outright still has its children cleaned up.
package watchdog

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const Usage = "Usage: svc-watchdog [parentPID] [childPID]"

type Options struct {
	PollInterval time.Duration
	CloseTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = 3 * time.Second
	}
	return o
}

// DisableLogging silences the global logger. The watchdog command line owns
// stdout and stderr, so log lines must not reach them.
func DisableLogging() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	log.Logger = zerolog.New(io.Discard)
}

// Main implements the watchdog command line and returns the exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	parentPID, childPID, ok := parseArgs(args)
	if !ok {
		_, _ = fmt.Fprintln(stdout, Usage)
		return 1
	}
	if err := Run(parentPID, childPID, Options{}); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func parseArgs(args []string) (int, int, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	parent, err := strconv.Atoi(args[0])
	if err != nil || parent <= 0 {
		return 0, 0, false
	}
	child, err := strconv.Atoi(args[1])
	if err != nil || child <= 0 {
		return 0, 0, false
	}
	return parent, child, true
}

// Run blocks until the child exits, or until the parent exits and the child
// has been closed or killed.
func Run(parentPID, childPID int, opts Options) error {
	opts = opts.withDefaults()

	parent, err := track(parentPID)
	if err != nil {
		return errors.Wrap(err, "parent")
	}
	child, err := track(childPID)
	if err != nil {
		return errors.Wrap(err, "child")
	}

	t := time.NewTicker(opts.PollInterval)
	defer t.Stop()

	for {
		if !child.alive() {
			log.Debug().Int("child", childPID).Msg("child exited")
			return nil
		}
		if !parent.alive() {
			log.Debug().Int("parent", parentPID).Int("child", childPID).Msg("parent exited; stopping child")
			return closeChild(child, opts.CloseTimeout)
		}
		<-t.C
	}
}

type tracked struct {
	pid   int
	ticks uint64
}

func track(pid int) (tracked, error) {
	if !proc.ProcessAlive(pid) {
		return tracked{}, errors.Errorf("no running process with PID %d", pid)
	}
	ticks, err := proc.StartTicks(pid)
	if err != nil {
		return tracked{}, errors.Wrapf(err, "process %d", pid)
	}
	return tracked{pid: pid, ticks: ticks}, nil
}

// alive also fails when the PID has been recycled by a different process.
func (p tracked) alive() bool {
	if !proc.ProcessAlive(p.pid) {
		return false
	}
	ticks, err := proc.StartTicks(p.pid)
	return err == nil && ticks == p.ticks
}

func closeChild(child tracked, timeout time.Duration) error {
	if err := proc.RequestCloseGroup(child.pid); err == nil {
		deadline := time.Now().Add(timeout)
		for child.alive() && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)
		}
		if !child.alive() {
			return nil
		}
	}
	if err := proc.KillGroup(child.pid); err != nil && child.alive() {
		return errors.Wrap(err, "kill child")
	}
	return nil
}
